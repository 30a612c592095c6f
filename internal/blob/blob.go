// Package blob stores uploaded files referenced by blob pastes.
package blob

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/MrSnakeDoc/blink/internal/idgen"
)

const (
	// DefaultURLPrefix is where the HTTP layer serves stored files.
	DefaultURLPrefix = "/uploads/"

	// DefaultExtension is used when the uploader gives none, or a bad one.
	DefaultExtension = ".bin"

	sniffLen = 512
)

var (
	ErrNotFound = errors.New("blob not found")
	ErrTooLarge = errors.New("blob too large")
)

var validExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,15}$`)

// Ref describes a stored file.
type Ref struct {
	Name string // file name under the store directory
	URL  string // path the file is served from
	MIME string
	Size int64
}

// Store writes blobs as flat files under one directory of an afero.Fs.
type Store struct {
	fs        afero.Fs
	dir       string
	urlPrefix string
	maxBytes  int64
	newName   func(ext string) (string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithURLPrefix changes the prefix of Ref.URL.
func WithURLPrefix(p string) Option { return func(s *Store) { s.urlPrefix = p } }

// WithMaxBytes caps the size of a single blob. Zero means no cap.
func WithMaxBytes(n int64) Option { return func(s *Store) { s.maxBytes = n } }

// WithNameGenerator overrides file naming.
func WithNameGenerator(f func(ext string) (string, error)) Option {
	return func(s *Store) { s.newName = f }
}

// New creates dir on fs if needed and returns a Store rooted there.
func New(fs afero.Fs, dir string, opts ...Option) (*Store, error) {
	s := &Store{
		fs:        fs,
		dir:       dir,
		urlPrefix: DefaultURLPrefix,
		newName:   idgen.Filename,
	}
	for _, o := range opts {
		o(s)
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir %s: %w", dir, err)
	}
	return s, nil
}

// Save streams r into a new file. mime is kept when given, otherwise it
// is sniffed from the first bytes.
func (s *Store) Save(ctx context.Context, r io.Reader, ext, mime string) (Ref, error) {
	if !validExt.MatchString(ext) {
		ext = DefaultExtension
	}

	name, err := s.newName(ext)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to name blob: %w", err)
	}

	br := bufio.NewReaderSize(r, sniffLen)
	if strings.TrimSpace(mime) == "" {
		head, _ := br.Peek(sniffLen)
		mime = http.DetectContentType(head)
	}

	p := path.Join(s.dir, name)
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to create blob %s: %w", name, err)
	}

	var src io.Reader = &ctxReader{ctx: ctx, r: br}
	if s.maxBytes > 0 {
		src = io.LimitReader(src, s.maxBytes+1)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = s.fs.Remove(p)
		return Ref{}, fmt.Errorf("failed to write blob %s: %w", name, err)
	}

	return Ref{Name: name, URL: s.urlPrefix + name, MIME: mime, Size: n}, nil
}

// Open returns the named file and its size. Names that are not a plain
// file name under the store directory are reported as ErrNotFound.
func (s *Store) Open(name string) (afero.File, int64, error) {
	if !validName(name) {
		return nil, 0, ErrNotFound
	}

	f, err := s.fs.Open(path.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, 0, ErrNotFound
	}
	return f, st.Size(), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	if !validName(name) {
		return ErrNotFound
	}
	err := s.fs.Remove(path.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RemoveRef deletes the file behind a BlobRef produced by Save (its URL).
// Refs outside this store's URL prefix are ErrNotFound.
func (s *Store) RemoveRef(ref string) error {
	name, ok := strings.CutPrefix(ref, s.urlPrefix)
	if !ok {
		return ErrNotFound
	}
	return s.Remove(name)
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
