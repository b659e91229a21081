// Package library manages the documents directory that feeds the pipeline.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/loader"
)

// ChangeFunc is called after every successful upload or removal.
type ChangeFunc func(ctx context.Context, name string)

// Service handles document listing, upload and removal.
type Service struct {
	docsDir    string
	removedDir string
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex // serialises filesystem mutations
	onChange []ChangeFunc
}

// New creates a library service and ensures both directories exist.
func New(docsDir, removedDir string, logger *zap.Logger) (*Service, error) {
	for _, dir := range []string{docsDir, removedDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Service{
		docsDir:    docsDir,
		removedDir: removedDir,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// OnChange registers a hook run after each change.
func (s *Service) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// List returns the supported documents sorted by name.
func (s *Service) List(_ context.Context) ([]domain.DocumentInfo, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.docsDir, err)
	}

	out := make([]domain.DocumentInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !domain.IsSupported(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, domain.DocumentInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Paths returns absolute paths of the supported documents, sorted by name.
func (s *Service) Paths(ctx context.Context) ([]string, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = filepath.Join(s.docsDir, d.Name)
	}
	return paths, nil
}

// Upload stores r under name. Without overwrite an existing file yields ErrAlreadyExists.
// The file appears atomically.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (domain.DocumentInfo, error) {
	if err := validateName(name); err != nil {
		return domain.DocumentInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := filepath.Join(s.docsDir, name)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return domain.DocumentInfo{}, fmt.Errorf("%s: %w", name, domain.ErrAlreadyExists)
		}
	}

	tmp, err := os.CreateTemp(s.docsDir, ".upload-*")
	if err != nil {
		return domain.DocumentInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after rename

	n, err := io.Copy(tmp, io.LimitReader(r, loader.MaxFileSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return domain.DocumentInfo{}, fmt.Errorf("write %s: %w", name, err)
	}
	if n > loader.MaxFileSize {
		return domain.DocumentInfo{}, fmt.Errorf("%s exceeds %d bytes: %w", name, loader.MaxFileSize, domain.ErrTooLarge)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return domain.DocumentInfo{}, fmt.Errorf("rename %s: %w", name, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return domain.DocumentInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}

	s.logger.Info("Document uploaded", zap.String("name", name), zap.Int64("size", n))
	s.notify(ctx, name)

	return domain.DocumentInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Remove moves the document to the removed directory and returns its new path.
// An existing file there is kept and the moved one gets a timestamp suffix.
func (s *Service) Remove(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src := filepath.Join(s.docsDir, name)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", name, domain.ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", name, err)
	}

	dst := filepath.Join(s.removedDir, name)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		dst = filepath.Join(s.removedDir, base+"_"+s.now().Format("20060102_150405")+ext)
	}

	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s: %w", name, err)
	}

	s.logger.Info("Document removed", zap.String("name", name), zap.String("moved_to", dst))
	s.notify(ctx, name)

	return dst, nil
}

// notify runs hooks; s.mu is held.
func (s *Service) notify(ctx context.Context, name string) {
	for _, fn := range s.onChange {
		fn(ctx, name)
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%q: %w", name, domain.ErrInvalidName)
	}
	if !domain.IsSupported(name) {
		return fmt.Errorf("%s: %w", filepath.Ext(name), domain.ErrUnsupportedFormat)
	}
	return nil
}
