package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/pagedesk/internal/thumbnail"
)

// Progress tracks thumbnail generation for one session.
type Progress struct {
	State string `json:"state"` // queued, decoding, done, failed
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Error string `json:"error,omitempty"`
}

// SessionStore persists per-session editing state in redis so the HTTP
// surface and the background worker share it. All keys carry the session TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(redisURL string, ttl time.Duration) (*SessionStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &SessionStore{client: c, ttl: ttl}, nil
}

func (s *SessionStore) Close() error { return s.client.Close() }

func (s *SessionStore) docKey(id string) string      { return fmt.Sprintf("session:%s:doc", id) }
func (s *SessionStore) thumbsKey(id string) string   { return fmt.Sprintf("session:%s:thumbs", id) }
func (s *SessionStore) progressKey(id string) string { return fmt.Sprintf("session:%s:progress", id) }

// SaveDocument stores the raw uploaded bytes plus filename and page count.
func (s *SessionStore) SaveDocument(ctx context.Context, id, filename string, data []byte, totalPages int) error {
	key := s.docKey(id)
	if err := s.client.HSet(ctx, key, map[string]interface{}{
		"filename": filename,
		"data":     data,
		"pages":    totalPages,
	}).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// GetDocument returns the stored document. found is false for unknown or
// expired sessions.
func (s *SessionStore) GetDocument(ctx context.Context, id string) (filename string, data []byte, totalPages int, found bool, err error) {
	res, err := s.client.HGetAll(ctx, s.docKey(id)).Result()
	if err != nil {
		return "", nil, 0, false, err
	}
	if len(res) == 0 {
		return "", nil, 0, false, nil
	}
	pages := 0
	fmt.Sscanf(res["pages"], "%d", &pages)
	return res["filename"], []byte(res["data"]), pages, true, nil
}

// SaveThumbnails stores the full ordered thumbnail set as JSON.
func (s *SessionStore) SaveThumbnails(ctx context.Context, id string, thumbs []thumbnail.PageThumbnail) error {
	payload, err := json.Marshal(thumbs)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.thumbsKey(id), payload, s.ttl).Err()
}

// GetThumbnails returns the stored set; nil when none exist yet.
func (s *SessionStore) GetThumbnails(ctx context.Context, id string) ([]thumbnail.PageThumbnail, error) {
	payload, err := s.client.Get(ctx, s.thumbsKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var thumbs []thumbnail.PageThumbnail
	if err := json.Unmarshal(payload, &thumbs); err != nil {
		return nil, err
	}
	return thumbs, nil
}

// SetProgress records thumbnail generation progress.
func (s *SessionStore) SetProgress(ctx context.Context, id string, p Progress) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.progressKey(id), payload, s.ttl).Err()
}

// GetProgress returns the current progress; found is false when the session
// has no recorded progress.
func (s *SessionStore) GetProgress(ctx context.Context, id string) (Progress, bool, error) {
	payload, err := s.client.Get(ctx, s.progressKey(id)).Bytes()
	if err == redis.Nil {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, err
	}
	var p Progress
	if err := json.Unmarshal(payload, &p); err != nil {
		return Progress{}, false, err
	}
	return p, true, nil
}

// DiscardDocument drops the stored bytes and thumbnails but keeps the
// progress record, so a failure reason stays visible to the client.
func (s *SessionStore) DiscardDocument(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.docKey(id), s.thumbsKey(id)).Err()
}

// Delete removes all keys for a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.docKey(id), s.thumbsKey(id), s.progressKey(id)).Err()
}
