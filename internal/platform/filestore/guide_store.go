// Package filestore implements store.GuideStore as one JSON file per guide
// in a directory, on top of an afero filesystem.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/phrazzld/studyguide-api/internal/store"
	"github.com/spf13/afero"
)

const fileExt = ".json"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// GuideStore stores each guide as <dir>/<id>.json.
type GuideStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger

	// locks serializes writers per guide id.
	locks sync.Map
	// listMu keeps listings from observing half-renamed files.
	listMu sync.RWMutex
}

var _ store.GuideStore = (*GuideStore)(nil)

// NewGuideStore creates the directory if needed and returns a store rooted there.
func NewGuideStore(fsys afero.Fs, dir string, logger *slog.Logger) (*GuideStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create guide directory: %v", store.ErrStoreUnavailable, err)
	}
	return &GuideStore{
		fs:     fsys,
		dir:    dir,
		logger: logger.With("component", "file_guide_store"),
	}, nil
}

// Put writes a new guide file.
func (s *GuideStore) Put(ctx context.Context, guide *domain.Guide) error {
	if guide == nil || !validID.MatchString(guide.ID) {
		return fmt.Errorf("%w: guide id must be a safe file name", store.ErrInvalidEntity)
	}

	unlock := s.lock(guide.ID)
	defer unlock()

	exists, err := afero.Exists(s.fs, s.path(guide.ID))
	if err != nil {
		return s.wrap("put", "failed to check existing guide", err)
	}
	if exists {
		return fmt.Errorf("%w: guide %s", store.ErrDuplicate, guide.ID)
	}

	if err := s.write(guide); err != nil {
		return s.wrap("put", "failed to write guide", err)
	}
	s.log(ctx).Debug("guide stored", "guide_id", guide.ID)
	return nil
}

// Get reads one guide file.
func (s *GuideStore) Get(ctx context.Context, id string) (*domain.Guide, error) {
	if !validID.MatchString(id) {
		return nil, store.ErrGuideNotFound
	}
	return s.read(id)
}

// ListByOwner scans the directory and returns the owner's guides. Files
// that cannot be decoded are skipped with a warning.
func (s *GuideStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Guide, error) {
	s.listMu.RLock()
	defer s.listMu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, s.wrap("list", "failed to read guide directory", err)
	}

	guides := make([]*domain.Guide, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		guide, err := s.read(id)
		if err != nil {
			s.log(ctx).Warn("skipping unreadable guide file",
				"file", name,
				"error", redact.Error(err))
			continue
		}
		if guide.Owner == owner {
			guides = append(guides, guide)
		}
	}
	return guides, nil
}

// Update reads, mutates and rewrites a guide while holding its lock.
func (s *GuideStore) Update(ctx context.Context, id string, fn store.UpdateFn) (*domain.Guide, error) {
	if !validID.MatchString(id) {
		return nil, store.ErrGuideNotFound
	}

	unlock := s.lock(id)
	defer unlock()

	guide, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if err := fn(guide); err != nil {
		return nil, err
	}
	guide.ID = id

	if err := s.write(guide); err != nil {
		return nil, s.wrap("update", "failed to write guide", err)
	}
	s.log(ctx).Debug("guide updated", "guide_id", id)
	return guide, nil
}

// Delete removes the guide file if present.
func (s *GuideStore) Delete(ctx context.Context, id string) error {
	if !validID.MatchString(id) {
		return nil
	}

	unlock := s.lock(id)
	defer unlock()

	if err := s.fs.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s.wrap("delete", "failed to remove guide", err)
	}
	s.log(ctx).Debug("guide deleted", "guide_id", id)
	return nil
}

func (s *GuideStore) path(id string) string {
	return path.Join(s.dir, id+fileExt)
}

func (s *GuideStore) read(id string) (*domain.Guide, error) {
	data, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrGuideNotFound
		}
		return nil, s.wrap("get", "failed to read guide", err)
	}

	var guide domain.Guide
	if err := json.Unmarshal(data, &guide); err != nil {
		return nil, s.wrap("get", "failed to decode guide", err)
	}
	if guide.ID == "" {
		guide.ID = id
	}
	guide.Owner = domain.OwnerOrAnonymous(guide.Owner)
	return &guide, nil
}

// write replaces the guide file through a temporary file and rename.
func (s *GuideStore) write(guide *domain.Guide) error {
	data, err := json.MarshalIndent(guide, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path(guide.ID) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}

	s.listMu.Lock()
	defer s.listMu.Unlock()
	if err := s.fs.Rename(tmp, s.path(guide.ID)); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *GuideStore) lock(id string) func() {
	value, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *GuideStore) wrap(operation, message string, err error) error {
	return store.NewStoreError("guide", operation, message, err)
}

func (s *GuideStore) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}
