// Package storage keeps uploaded files in a publicly served directory.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Local writes files under dir and references them as <urlPrefix>/<name>.
type Local struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewLocal creates the directory if needed and returns a store rooted at it.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
	}, nil
}

// Save copies r into a new file named after originalName's extension and
// returns its public reference path.
func (s *Local) Save(originalName string, r io.Reader) (string, error) {
	name := s.fileName(originalName)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path.Join(s.urlPrefix, name), nil
}

// Remove deletes the file behind a reference produced by Save.
// References outside the URL prefix are ignored.
func (s *Local) Remove(ref string) error {
	prefix := s.urlPrefix + "/"
	if !strings.HasPrefix(ref, prefix) {
		return nil
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// fileName is <unix-millis>-<random><ext>.
func (s *Local) fileName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), suffix, ext)
}
