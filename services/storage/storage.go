package storagesvc

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
)

// New returns the object storage selected by `storage.driver`.
func New(conf *core.Config) (core.ObjectStorage, error) {
	switch strings.ToLower(conf.Storage.Driver) {
	case "", "local":
		return NewLocal(conf.Storage.LocalDir, conf.Storage.PublicBaseURL)
	case "s3":
		return NewS3(conf.Storage)
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

func publicURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
