package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jphacks/os-2412/pkg/domain"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// mediaStore writes uploads under dir and hands out references of the form
// urlPrefix + "/" + file name, which is how they are served over HTTP.
type mediaStore struct {
	dir       string
	urlPrefix string
}

func NewMediaStore(dir, urlPrefix string) (*mediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &mediaStore{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

func (m *mediaStore) Dir() string {
	return m.dir
}

func (m *mediaStore) SaveImage(_ context.Context, data []byte, mimeType string) (string, error) {
	ext, ok := extensions[mimeType]
	if !ok {
		ext = ".jpg"
	}
	return m.save(uuid.NewString()+ext, data)
}

func (m *mediaStore) SaveAudio(_ context.Context, prefix string, data []byte) (string, error) {
	return m.save(fmt.Sprintf("%s_%s.mp3", prefix, uuid.NewString()), data)
}

func (m *mediaStore) save(name string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(m.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return m.urlPrefix + "/" + name, nil
}

// Load reads a file back by the reference SaveImage or SaveAudio returned.
func (m *mediaStore) Load(ref string) ([]byte, error) {
	name := path.Base(ref)
	if !strings.HasPrefix(ref, m.urlPrefix+"/") || name == "." || name == "/" || name != strings.TrimPrefix(ref, m.urlPrefix+"/") {
		return nil, fmt.Errorf("reference %q: %w", ref, domain.ErrNotFound)
	}

	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reference %q: %w", ref, domain.ErrNotFound)
	}
	return data, err
}
