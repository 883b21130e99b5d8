package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// gcmMagic prefixes password-protected objects so downloads can tell
// encrypted payloads from plain ones.
const gcmMagic = "GCM3NCR0"

// S3Client wraps the AWS S3 client with optional password-based encryption
// for exported documents.
type S3Client struct {
	client     *s3.Client
	bucketName string
}

// NewS3Client creates an S3 client against the given bucket, using the
// default AWS credential chain.
func NewS3Client(ctx context.Context, bucketName string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Client{client: s3.NewFromConfig(cfg), bucketName: bucketName}, nil
}

// Bucket returns the bucket this client writes to.
func (s *S3Client) Bucket() string { return s.bucketName }

// UploadFile stores data under key. With a non-empty password the payload is
// AES-GCM encrypted with a PBKDF2-derived key before upload.
func (s *S3Client) UploadFile(ctx context.Context, key string, data []byte, password, contentType string, metadata map[string]string) error {
	payload := data
	if password != "" {
		enc, err := encryptGCM(data, password)
		if err != nil {
			return fmt.Errorf("failed to encrypt payload: %w", err)
		}
		payload = enc
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["encrypted"] = "true"
		metadata["encryption-format"] = gcmMagic
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("bucket", s.bucketName).Str("key", key).Int("size", len(payload)).Bool("encrypted", password != "").Msg("uploaded object to S3")
	return nil
}

// DownloadFile fetches key and decrypts it when it carries the GCM magic and
// a password is supplied.
func (s *S3Client) DownloadFile(ctx context.Context, key, password string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	if len(data) >= len(gcmMagic) && string(data[:len(gcmMagic)]) == gcmMagic {
		if password == "" {
			return nil, fmt.Errorf("object %s is encrypted and no password was supplied", key)
		}
		return decryptGCM(data, password)
	}
	return data, nil
}

// URL returns the s3:// reference for key.
func (s *S3Client) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucketName, key)
}

// encryptGCM produces magic(8) + salt(16) + nonce(12) + ciphertext||tag.
func encryptGCM(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(password), salt, 100000, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gcmMagic)+len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

func decryptGCM(data []byte, password string) ([]byte, error) {
	// magic(8) + salt(16) + nonce(12) + ciphertext||tag(>=16)
	if len(data) < 8+16+12+16 {
		return nil, fmt.Errorf("encrypted payload too short: %d bytes", len(data))
	}
	salt := data[8:24]
	nonce := data[24:36]
	ciphertext := data[36:]

	key := pbkdf2.Key([]byte(password), salt, 100000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
