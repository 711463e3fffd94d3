package storagesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
)

// Local stores objects on the filesystem, under dir.
type Local struct {
	dir     string
	baseURL string
}

var _ core.ObjectStorage = (*Local)(nil)

func NewLocal(dir, baseURL string) (*Local, error) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(core.Getwd(), dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &Local{dir: dir, baseURL: baseURL}, nil
}

func (s *Local) Dir() string {
	return s.dir
}

func (s *Local) Upload(ctx context.Context, path string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrap(err, "creating object dir")
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return core.ErrObjectExists
		}
		return errors.Wrap(err, "creating object")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return errors.Wrap(err, "writing object")
	}
	return f.Close()
}

func (s *Local) PublicURL(path string) string {
	return publicURL(s.baseURL, path)
}

// resolve maps path into dir, rejecting paths that escape it.
func (s *Local) resolve(path string) (string, error) {
	full := filepath.Join(s.dir, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.dir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("invalid object path %q", path)
	}
	return full, nil
}
