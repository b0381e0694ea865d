// internal/app/system/attachments/attachments.go

// Package attachments moves uploaded submission files from their temporary
// upload location into permanent blob storage and returns public URLs.
package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TempFile is an uploaded file not yet in permanent storage.
type TempFile struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Store moves submission attachments into a waffle storage backend
// (storage.Local on disk, storage.S3 in a bucket).
type Store struct {
	blob    storage.Store
	prefix  string
	urlBase string
	log     *zap.Logger
	now     func() time.Time
}

// New constructs a Store. prefix is prepended to every key (for example
// "submissions").
func New(blob storage.Store, prefix string, logger *zap.Logger) *Store {
	return &Store{
		blob:    blob,
		prefix:  strings.Trim(prefix, "/"),
		urlBase: strings.TrimSuffix(blob.URL("x"), "x"),
		log:     logger,
		now:     time.Now,
	}
}

// Backend names the underlying storage backend ("local", "s3", "memory").
func (s *Store) Backend() string { return s.blob.Backend() }

// MoveToPermanent stores every file under ownerID and returns their URLs in
// input order. It is all-or-nothing: when any file fails, blobs already
// written by this call are deleted before the error is returned.
func (s *Store) MoveToPermanent(ctx context.Context, ownerID string, files []TempFile) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var written []string
	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := s.keyFor(ownerID, f.FileName)
		if err := s.put(ctx, key, f); err != nil {
			s.cleanup(written)
			return nil, fmt.Errorf("store attachment %q: %w", f.FileName, err)
		}
		written = append(written, key)
		urls = append(urls, s.urlFor(key))
	}
	return urls, nil
}

func (s *Store) put(ctx context.Context, key string, f TempFile) error {
	if f.Open == nil {
		return errors.New("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	// The S3 backend needs a seekable body to sign the request.
	var body io.Reader = rc
	if _, ok := rc.(io.ReadSeeker); !ok {
		b, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = storage.DetectContentType(f.FileName, nil)
	}
	return s.blob.Put(ctx, key, body, &storage.PutOptions{ContentType: contentType})
}

// cleanup runs on a fresh context so a cancelled request still removes
// partial uploads.
func (s *Store) cleanup(keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.delete(ctx, key); err != nil {
			s.log.Warn("failed to clean up partial attachment upload",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// Remove deletes previously issued attachment URLs. It keeps going past
// individual failures and returns them joined.
func (s *Store) Remove(ctx context.Context, urls []string) error {
	var errs []error
	for _, u := range urls {
		key, ok := s.keyOf(u)
		if !ok {
			s.log.Warn("skipping attachment url from another store", zap.String("url", u))
			continue
		}
		if err := s.delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// delete removes key. An object that is already gone is not an error.
func (s *Store) delete(ctx context.Context, key string) error {
	if err := s.blob.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// urlFor is the public URL for key. Backends without a base URL (an S3
// endpoint with no public URL configured) issue the bare key.
func (s *Store) urlFor(key string) string {
	if s.urlBase == "" {
		return key
	}
	return s.blob.URL(key)
}

// keyOf reverses urlFor. ok is false for URLs this store did not issue.
func (s *Store) keyOf(u string) (string, bool) {
	if s.urlBase == "" {
		if u == "" || strings.Contains(u, "://") || strings.HasPrefix(u, "/") {
			return "", false
		}
		return u, true
	}
	key, ok := strings.CutPrefix(u, s.urlBase)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// keyFor generates: <prefix>/<owner>/YYYY/MM/<uuid8>-<filename>
func (s *Store) keyFor(ownerID, filename string) string {
	now := s.now().UTC()
	parts := []string{}
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts,
		sanitizeSegment(ownerID),
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%s-%s", uuid.New().String()[:8], sanitizeFilename(filename)),
	)
	return strings.Join(parts, "/")
}

func sanitizeSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	return sanitizeFilename(s)
}

// sanitizeFilename removes or replaces characters that could be problematic in filenames.
func sanitizeFilename(filename string) string {
	// Get just the filename, not any path components
	filename = filepath.Base(filepath.ToSlash(filename))
	if filename == "." || filename == "/" {
		filename = ""
	}

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		// Truncate but preserve extension if present
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
