package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"honestlens/config"
	"honestlens/types"
)

// LocalStore keeps images under one directory and refuses to read outside it.
type LocalStore struct {
	root string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	path = filepath.Clean(path)
	if path != l.root && !strings.HasPrefix(path, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("image path outside upload dir: %w", types.ErrInvalidInput)
	}
	return path, nil
}

func (l *LocalStore) Get(ctx context.Context, raw string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, err := ParseRef(raw)
	if err != nil {
		return nil, err
	}
	if ref.Scheme != "file" {
		return nil, fmt.Errorf("local store cannot read %s references", ref.Scheme)
	}
	path, err := l.resolve(ref.Key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func (l *LocalStore) Put(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := l.resolve(filepath.Base(name))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return Ref{Scheme: "file", Key: path}.String(), nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, config.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > config.MaxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes: %w", config.MaxImageBytes, types.ErrInvalidInput)
	}
	return data, nil
}
