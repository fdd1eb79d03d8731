// Package storage holds the blob stores used for repair photographs. A
// PhotoStore accepts a named object and returns a URL clients can resolve.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedType is returned when an upload is not an image.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("upload too large")
	// ErrInvalidKey is returned for empty or path-escaping object keys.
	ErrInvalidKey = errors.New("invalid object key")
)

// PhotoStore stores an object under key and returns its public URL. Delete
// removes an object; a missing object is not an error.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// Photo is a validated upload ready to be stored.
type Photo struct {
	Data        []byte
	ContentType string
	Ext         string // with leading dot, e.g. ".jpg"
}

// ReadPhoto reads at most maxBytes from r and sniffs its content type. Only
// image/* payloads are accepted. The declared type of the upload is ignored.
func ReadPhoto(r io.Reader, maxBytes int64) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}
	ct := mt.String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return &Photo{Data: data, ContentType: ct, Ext: mt.Extension()}, nil
}

// Reader returns a fresh reader over the photo bytes.
func (p *Photo) Reader() io.Reader { return bytes.NewReader(p.Data) }

// PhotoKey builds the object key for a repair photo:
// <repairman_id>/<inspection_id>-<unix_nano><ext>.
func PhotoKey(repairmanID, inspectionID, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%s-%d%s", safeSegment(repairmanID), safeSegment(inspectionID), now.UnixNano(), ext)
}

func safeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}

// cleanKey rejects keys that are empty, absolute or escape the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return k, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
