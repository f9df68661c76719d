package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(client s3Client) *Store {
	return &Store{
		cfg: Config{
			Endpoint: "https://s3.example.com",
			Bucket:   "ednova-media",
		},
		client: client,
	}
}

func TestStoreDisabledWithoutCredentials(t *testing.T) {
	s := New(Config{})
	if s.Enabled() {
		t.Error("expected store without credentials to be disabled")
	}
	if _, err := s.Upload(context.Background(), "lms", "a.png", "image/png", strings.NewReader("x"), 1); err == nil {
		t.Error("expected upload on disabled store to fail")
	}
}

func TestStoreEnabledWithCredentials(t *testing.T) {
	s := New(Config{Bucket: "b", AccessKey: "k", SecretKey: "s"})
	if !s.Enabled() {
		t.Error("expected store with credentials to be enabled")
	}
}

func TestUpload(t *testing.T) {
	mock := newMockS3()
	s := newTestStore(mock)

	obj, err := s.Upload(context.Background(), "lms", "thumb.PNG", "image/png", strings.NewReader("bytes"), 5)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(obj.ID, "lms/") {
		t.Errorf("key = %q, want lms/ prefix", obj.ID)
	}
	if !strings.HasSuffix(obj.ID, ".png") {
		t.Errorf("key = %q, want lowercased .png suffix", obj.ID)
	}
	if obj.URL != "https://s3.example.com/ednova-media/"+obj.ID {
		t.Errorf("url = %q, want path-style public url", obj.URL)
	}
	if string(mock.objects[obj.ID]) != "bytes" {
		t.Error("object body not stored")
	}
}

func TestUploadUniqueKeys(t *testing.T) {
	mock := newMockS3()
	s := newTestStore(mock)

	a, _ := s.Upload(context.Background(), "lms", "v.mp4", "video/mp4", strings.NewReader("1"), 1)
	b, _ := s.Upload(context.Background(), "lms", "v.mp4", "video/mp4", strings.NewReader("2"), 1)
	if a.ID == b.ID {
		t.Error("expected distinct keys for repeated filenames")
	}
}

func TestUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	s := newTestStore(mock)

	if _, err := s.Upload(context.Background(), "lms", "a.png", "image/png", strings.NewReader("x"), 1); err == nil {
		t.Error("expected upload error to surface")
	}
}

func TestDelete(t *testing.T) {
	mock := newMockS3()
	s := newTestStore(mock)

	obj, _ := s.Upload(context.Background(), "lms", "a.png", "image/png", strings.NewReader("x"), 1)
	if err := s.Delete(context.Background(), obj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := mock.objects[obj.ID]; ok {
		t.Error("object still present after delete")
	}
}

func TestDeletePlaceholderNoOp(t *testing.T) {
	s := New(Config{}) // disabled store

	if err := s.Delete(context.Background(), ""); err != nil {
		t.Errorf("placeholder delete should be a no-op, got %v", err)
	}
}

func TestDeleteError(t *testing.T) {
	mock := newMockS3()
	mock.delErr = errors.New("boom")
	s := newTestStore(mock)

	if err := s.Delete(context.Background(), "lms/x.png"); err == nil {
		t.Error("expected delete error to surface")
	}
}
