package parameters

import (
	"context"
	"fmt"
	"path"

	"github.com/spf13/viper"
)

// FileSource reads entries from a YAML file keyed by the last path segment of the
// entry name (MASK_PATTERN, MAX_AMOUNT). The file is re-read on every call.
type FileSource struct {
	path string
}

func NewFileSource(filePath string) *FileSource {
	return &FileSource{path: filePath}
}

func (s *FileSource) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read parameters file: %w", err)
	}

	key := path.Base(name)
	if !v.IsSet(key) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v.GetString(key), nil
}
