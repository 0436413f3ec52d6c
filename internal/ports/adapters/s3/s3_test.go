package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = b
	return &s3.PutObjectOutput{}, f.err
}

func TestPut(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "clip-001.mp4")
	if err := os.WriteFile(p, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp := &fakePutter{}
	s := newStore(fp, Options{Bucket: "shorts", Prefix: "/runs/"})

	uri, err := s.Put(context.Background(), "abc/clip-001.mp4", p)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if uri != "s3://shorts/runs/abc/clip-001.mp4" {
		t.Fatalf("unexpected uri %s", uri)
	}
	if aws.ToString(fp.in.Key) != "runs/abc/clip-001.mp4" || aws.ToString(fp.in.ContentType) != "video/mp4" {
		t.Fatalf("unexpected input %+v", fp.in)
	}
	if string(fp.body) != "video" {
		t.Fatalf("unexpected body %q", fp.body)
	}
}

func TestPut_Errors(t *testing.T) {
	t.Parallel()

	s := newStore(&fakePutter{}, Options{Bucket: "b"})
	if _, err := s.Put(context.Background(), "k", filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}

	p := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("access denied")
	s = newStore(&fakePutter{err: boom}, Options{Bucket: "b"})
	if _, err := s.Put(context.Background(), "manifest.json", p); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
