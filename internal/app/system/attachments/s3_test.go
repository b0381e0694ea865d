package attachments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeS3 is a tiny path-style S3 subset (PutObject, DeleteObject) so the
// waffle S3 backend can run without network access.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = fakeObject{body: body, contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) get(key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	return o, ok
}

// decodeChunked decodes a single-chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	sizeHex := strings.SplitN(parts[0], ";", 2)[0]
	sz, err := strconv.ParseInt(sizeHex, 16, 64)
	if err != nil || int64(len(parts[1])) != sz || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3(t *testing.T, baseURL string) (*storage.S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "evidence", objects: make(map[string]fakeObject)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	blob, err := storage.NewS3(context.Background(), storage.S3Config{
		Bucket:          "evidence",
		Region:          "us-east-1",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
		BaseURL:         baseURL,
	})
	require.NoError(t, err)
	return blob, fake
}

func TestS3_MoveAndRemove(t *testing.T) {
	blob, fake := newFakeS3(t, "https://cdn.example/evidence")
	store := New(blob, "submissions", zap.NewNop())
	require.Equal(t, "s3", store.Backend())

	urls, err := store.MoveToPermanent(context.Background(), "agency9", []TempFile{textFile("evidence.txt", "hello")})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	require.True(t, strings.HasPrefix(urls[0], "https://cdn.example/evidence/submissions/agency9/"), urls[0])

	key, ok := store.keyOf(urls[0])
	require.True(t, ok)
	obj, ok := fake.get(key)
	require.True(t, ok, "object should be stored under %s", key)
	require.Equal(t, "hello", string(obj.body))
	require.Equal(t, "text/plain", obj.contentType)

	require.NoError(t, store.Remove(context.Background(), urls))
	_, ok = fake.get(key)
	require.False(t, ok)
}

func TestS3_WithoutPublicURLIssuesKeys(t *testing.T) {
	blob, fake := newFakeS3(t, "")
	store := New(blob, "submissions", zap.NewNop())

	urls, err := store.MoveToPermanent(context.Background(), "agency9", []TempFile{textFile("a.txt", "a")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(urls[0], "submissions/agency9/"), urls[0])
	_, ok := fake.get(urls[0])
	require.True(t, ok)

	require.NoError(t, store.Remove(context.Background(), urls))
	_, ok = fake.get(urls[0])
	require.False(t, ok)
}
