package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data/uploads", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, fs
}

func TestSaveAndOpen(t *testing.T) {
	s, fs := newTestStore(t)

	ref, err := s.Save(context.Background(), strings.NewReader("hello blob"), ".txt", "text/plain")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasSuffix(ref.Name, ".txt") {
		t.Errorf("Name = %q, want .txt suffix", ref.Name)
	}
	if ref.URL != "/uploads/"+ref.Name {
		t.Errorf("URL = %q", ref.URL)
	}
	if ref.MIME != "text/plain" || ref.Size != 10 {
		t.Errorf("Ref = %+v", ref)
	}

	if ok, _ := afero.Exists(fs, "/data/uploads/"+ref.Name); !ok {
		t.Fatal("file not written under the store dir")
	}

	f, size, err := s.Open(ref.Name)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	got, _ := io.ReadAll(f)
	if string(got) != "hello blob" || size != 10 {
		t.Errorf("Open() = %q (%d bytes)", got, size)
	}
}

func TestSaveExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".png", ".png"},
		{".MP4", ".MP4"},
		{"", ".bin"},
		{"png", ".bin"},
		{"./../x", ".bin"},
		{".tar.gz", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			s, _ := newTestStore(t)
			ref, err := s.Save(context.Background(), strings.NewReader("x"), tt.ext, "application/octet-stream")
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if !strings.HasSuffix(ref.Name, tt.want) {
				t.Errorf("Name = %q, want suffix %q", ref.Name, tt.want)
			}
		})
	}
}

func TestSaveSniffsMIME(t *testing.T) {
	s, _ := newTestStore(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	ref, err := s.Save(context.Background(), bytes.NewReader(png), ".png", "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ref.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", ref.MIME)
	}
	if ref.Size != int64(len(png)) {
		t.Errorf("Size = %d, sniffing consumed bytes", ref.Size)
	}
}

func TestSaveTooLarge(t *testing.T) {
	s, fs := newTestStore(t, WithMaxBytes(4), WithNameGenerator(func(ext string) (string, error) {
		return "fixed" + ext, nil
	}))

	_, err := s.Save(context.Background(), strings.NewReader("12345"), ".bin", "")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Save() = %v, want ErrTooLarge", err)
	}
	if ok, _ := afero.Exists(fs, "/data/uploads/fixed.bin"); ok {
		t.Error("partial file left behind")
	}

	if _, err := s.Save(context.Background(), strings.NewReader("1234"), ".bin", ""); err != nil {
		t.Errorf("Save() at the limit error = %v", err)
	}
}

func TestSaveCanceled(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, strings.NewReader("x"), ".bin", "text/plain"); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() = %v, want context.Canceled", err)
	}
}

func TestOpenRejectsBadNames(t *testing.T) {
	s, fs := newTestStore(t)
	_ = afero.WriteFile(fs, "/data/secret", []byte("nope"), 0o644)

	for _, name := range []string{"", ".", "..", "../secret", "a/b", `..\secret`, ".hidden", "missing.bin"} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Open(name); !errors.Is(err, ErrNotFound) {
				t.Errorf("Open(%q) = %v, want ErrNotFound", name, err)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(t)
	ref, err := s.Save(context.Background(), strings.NewReader("x"), ".bin", "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := s.Remove(ref.Name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, _, err := s.Open(ref.Name); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() after Remove = %v, want ErrNotFound", err)
	}
	if err := s.Remove(ref.Name); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestRemoveRef(t *testing.T) {
	s, _ := newTestStore(t)
	ref, err := s.Save(context.Background(), strings.NewReader("x"), ".bin", "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := s.RemoveRef(ref.URL); err != nil {
		t.Fatalf("RemoveRef() error = %v", err)
	}
	if _, _, err := s.Open(ref.Name); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() after RemoveRef = %v, want ErrNotFound", err)
	}

	for _, bad := range []string{"https://elsewhere/x.bin", "/uploads/../secret", "/uploads/"} {
		if err := s.RemoveRef(bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("RemoveRef(%q) = %v, want ErrNotFound", bad, err)
		}
	}
}
