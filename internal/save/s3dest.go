package save

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/local/pagedesk/internal/storage"
)

// S3Provider acquires S3 objects as native save destinations. Availability
// depends on a configured bucket and is evaluated on every call, never
// cached, so flipping the configuration takes effect on the next save.
type S3Provider struct {
	Bucket string
	Prefix string

	// Password, when set, encrypts every uploaded export with a key derived
	// from it. Downloading such objects requires the same password.
	Password string

	// newClient allows tests to stub the AWS client.
	newClient func(ctx context.Context, bucket string) (*storage.S3Client, error)
}

// NewS3Provider builds a provider over the given bucket and key prefix.
func NewS3Provider(bucket, prefix, password string) *S3Provider {
	return &S3Provider{Bucket: bucket, Prefix: prefix, Password: password, newClient: storage.NewS3Client}
}

// Available reports whether a destination bucket is configured.
func (p *S3Provider) Available() bool { return p.Bucket != "" }

// Acquire resolves the client and reserves an object key for filename. A
// context cancelled by the caller maps to ErrCancelled; every other failure
// is reported as-is so the coordinator can fall back to the download path.
func (p *S3Provider) Acquire(ctx context.Context, filename string) (Destination, error) {
	cli, err := p.newClient(ctx, p.Bucket)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("s3 destination: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s", p.Prefix, time.Now().UTC().Format("2006-01-02"), filename)
	if p.Prefix == "" {
		key = fmt.Sprintf("%s/%s", time.Now().UTC().Format("2006-01-02"), filename)
	}
	return &s3Destination{client: cli, key: key, password: p.Password, token: uuid.NewString()}, nil
}

type s3Destination struct {
	client   *storage.S3Client
	key      string
	password string
	token    string
}

func (d *s3Destination) Write(ctx context.Context, data []byte) error {
	meta := map[string]string{"save-token": d.token}
	return d.client.UploadFile(ctx, d.key, data, d.password, "application/pdf", meta)
}

func (d *s3Destination) Close() error { return nil }

func (d *s3Destination) Describe() string { return d.client.URL(d.key) }
