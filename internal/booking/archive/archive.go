package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Putter is satisfied by *s3.S3.
type Putter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3 stores JSON snapshots in a bucket.
type S3 struct {
	client Putter
	bucket string
	prefix string
}

// NewS3 creates an S3 archive writing under prefix.
func NewS3(client Putter, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of a snapshot.
func Key(prefix, id string, at time.Time) string {
	return path.Join(prefix, at.UTC().Format("2006/01/02"), id+".json")
}

// Put uploads v as JSON and returns its key.
func (a *S3) Put(ctx context.Context, id string, at time.Time, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	key := Key(a.prefix, id, at)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to archive %s to S3: %w", key, err)
	}
	return key, nil
}

// Memory keeps snapshots in process. Used by the mock backend and tests.
type Memory struct {
	mu      sync.Mutex
	prefix  string
	objects map[string][]byte
}

// NewMemory creates an empty in-memory archive.
func NewMemory(prefix string) *Memory {
	return &Memory{prefix: prefix, objects: make(map[string][]byte)}
}

// Put stores v as JSON.
func (m *Memory) Put(_ context.Context, id string, at time.Time, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	key := Key(m.prefix, id, at)
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
	return key, nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}
