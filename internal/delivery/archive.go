package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores rendered briefings and verdicts for later inspection.
// Put must be safe to repeat with the same key.
type Archive interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// BriefingKey is where the rendered HTML of a sent message is kept.
func BriefingKey(m *Message) string {
	return path.Join("briefings", m.UserID, m.LogID+".html")
}

// VerdictKey is where a raw synthesis verdict is kept.
func VerdictKey(userID string, at time.Time) string {
	return path.Join("verdicts", userID, at.UTC().Format("20060102T150405Z")+".md")
}

// ObjectPutter is the slice of the S3 API the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes objects into one bucket.
type S3Archive struct {
	client ObjectPutter
	bucket string
}

// NewS3Archive loads AWS credentials the default way (env, shared config,
// instance role) and targets bucket in region.
func NewS3Archive(ctx context.Context, bucket, region string) (*S3Archive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 archive requires a bucket")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewS3ArchiveWithClient(s3.NewFromConfig(cfg), bucket), nil
}

func NewS3ArchiveWithClient(client ObjectPutter, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

func (a *S3Archive) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// MemoryArchive keeps objects in memory. It is safe for concurrent use.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

func (m *MemoryArchive) Put(_ context.Context, key string, r io.Reader, size int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

// Get returns the object stored under key.
func (m *MemoryArchive) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return bytes.Clone(data), ok
}

// Len returns the number of stored objects.
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
