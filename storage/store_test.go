package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honestlens/types"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		raw     string
		want    Ref
		wantErr bool
	}{
		{raw: "s3://bucket/uploads/a.png", want: Ref{Scheme: "s3", Bucket: "bucket", Key: "uploads/a.png"}},
		{raw: "file:///tmp/a.png", want: Ref{Scheme: "file", Key: "/tmp/a.png"}},
		{raw: "a.png", want: Ref{Scheme: "file", Key: "a.png"}},
		{raw: "", wantErr: true},
		{raw: "s3://bucket", wantErr: true},
		{raw: "ftp://host/a.png", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.raw, func(t *testing.T) {
			got, err := ParseRef(c.raw)
			if c.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, err := NewLocalStore(dir)
	require.NoError(t, err)

	ref, err := l.Put(ctx, "../../escape.png", []byte("img"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "file://"))

	data, err := l.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	data, err = l.Get(ctx, "escape.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	outside := filepath.Join(t.TempDir(), "secret.png")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	_, err = l.Get(ctx, outside)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = l.Get(ctx, "missing.png")
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newS3Store(fake, "images", "/uploads/")

	ref, err := s.Put(ctx, "req-1.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "s3://images/uploads/req-1.jpg", ref)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "image/jpeg", aws.ToString(fake.puts[0].ContentType))

	data, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	_, err = s.Get(ctx, "s3://images/nope.jpg")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Get(ctx, "local.jpg")
	assert.Error(t, err)
}

func TestMuxDispatch(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	m := NewMux(local, nil)
	ref, err := m.Put(ctx, "a.png", []byte("local"), "image/png")
	require.NoError(t, err)
	data, err := m.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), data)
	_, err = m.Get(ctx, "s3://bucket/key")
	assert.Error(t, err)

	fake := &fakeS3{objects: map[string][]byte{}}
	m = NewMux(local, newS3Store(fake, "images", ""))
	ref, err = m.Put(ctx, "b.png", []byte("remote"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "s3://images/b.png", ref)
	data, err = m.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), data)
}
