// Package upload stores user-submitted images on local disk and serves them
// from a public /uploads URL prefix.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotImage = errors.New("only image files are allowed")
	ErrTooLarge = errors.New("file exceeds the size limit")
)

// Store writes uploads under a single directory with unique timestamped
// names, so concurrent uploads never collide and names never echo user input
// verbatim.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// SaveImage persists an uploaded image and returns its public URL path.
// The content type is sniffed from the leading bytes rather than trusted
// from the request, and anything that is not an image is rejected before a
// single byte hits disk.
func (s *Store) SaveImage(r io.Reader, originalName string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", ErrNotImage
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(originalName))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	// +1 so a stream exactly at the limit passes and one byte over fails
	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1)
	written, err := io.Copy(f, limited)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return "", ErrTooLarge
	}

	return "/uploads/" + name, nil
}

// Dir returns the on-disk directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// sanitizeFilename strips path separators and anything exotic from a
// client-supplied name, keeping the extension useful.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		cleaned = "upload"
	}
	if len(cleaned) > 100 {
		cleaned = cleaned[len(cleaned)-100:]
	}
	return cleaned
}
