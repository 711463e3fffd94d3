package core

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// ErrObjectExists is returned when uploading to a path that is already taken.
var ErrObjectExists = errors.New("the resource already exists")

// ObjectStorage stores uploaded media files and resolves their public URLs.
type ObjectStorage interface {
	// Upload stores the content of r under path. It fails with ErrObjectExists if path already exists.
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	PublicURL(path string) string
}
