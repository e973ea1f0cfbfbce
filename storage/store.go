// Package storage resolves image references to bytes and stores uploaded images.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"honestlens/types"
)

// ImageStore reads and writes image bytes by reference.
type ImageStore interface {
	Get(ctx context.Context, ref string) ([]byte, error)
	// Put stores data under name and returns the reference to read it back.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Ref is a parsed image reference.
type Ref struct {
	Scheme string // "file" or "s3"
	Bucket string
	Key    string // object key, or file path for the file scheme
}

func (r Ref) String() string {
	if r.Scheme == "s3" {
		return "s3://" + r.Bucket + "/" + r.Key
	}
	return "file://" + r.Key
}

// ParseRef accepts s3://bucket/key, file:///path and bare paths.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("empty image reference: %w", types.ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		return Ref{Scheme: "file", Key: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("image reference %q: %w", raw, types.ErrInvalidInput)
	}
	switch strings.ToLower(u.Scheme) {
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Ref{}, fmt.Errorf("s3 reference needs bucket and key: %w", types.ErrInvalidInput)
		}
		return Ref{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	case "file":
		if u.Path == "" {
			return Ref{}, fmt.Errorf("file reference needs a path: %w", types.ErrInvalidInput)
		}
		return Ref{Scheme: "file", Key: u.Path}, nil
	default:
		return Ref{}, fmt.Errorf("unsupported image reference scheme %q: %w", u.Scheme, types.ErrInvalidInput)
	}
}

// Mux reads from whichever backend a reference names and writes to the primary backend.
type Mux struct {
	local   *LocalStore
	s3      *S3Store
	primary ImageStore
}

// NewMux returns a store over local and an optional S3 backend. Uploads go to S3 when
// it is configured.
func NewMux(local *LocalStore, s3 *S3Store) *Mux {
	m := &Mux{local: local, s3: s3, primary: local}
	if s3 != nil {
		m.primary = s3
	}
	return m
}

func (m *Mux) Get(ctx context.Context, raw string) ([]byte, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return nil, err
	}
	switch ref.Scheme {
	case "s3":
		if m.s3 == nil {
			return nil, fmt.Errorf("s3 storage not configured")
		}
		return m.s3.Get(ctx, raw)
	default:
		if m.local == nil {
			return nil, fmt.Errorf("local storage not configured")
		}
		return m.local.Get(ctx, raw)
	}
}

func (m *Mux) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if m.primary == nil {
		return "", fmt.Errorf("no image storage configured")
	}
	return m.primary.Put(ctx, name, data, contentType)
}
