package drafts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/form"
)

// Store reads and partially updates drafts. Concurrent writers to the same
// session are not coordinated: the last write wins.
type Store struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewStore(repo Repository, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{repo: repo, log: log, now: time.Now}
}

// Read returns the stored draft, or an empty one when nothing usable is
// stored.
func (s *Store) Read(ctx context.Context, sid string) (Draft, error) {
	d, err := s.repo.Load(ctx, sid)
	switch {
	case errors.Is(err, ErrNotFound):
		return Empty(), nil
	case errors.Is(err, ErrCorrupt):
		s.log.Warn("discarding unreadable draft", zap.String("sid", sid), zap.Error(err))
		return Empty(), nil
	case err != nil:
		return Draft{}, fmt.Errorf("read draft: %w", err)
	}
	if d.FormData == nil {
		d.FormData = form.FormData{}
	}
	return d, nil
}

// Write merges partial into the stored draft, drops the keys in remove and
// stamps the metadata. Keys not named in either are left alone.
func (s *Store) Write(ctx context.Context, sid string, partial form.FormData, remove ...string) (Draft, error) {
	d, err := s.Read(ctx, sid)
	if err != nil {
		return Draft{}, err
	}
	d.FormData = d.FormData.Merge(partial).Without(remove...)
	d.Meta = Meta{LastUpdated: s.now().UTC(), FormVersion: form.CurrentVersion}
	if err := s.repo.Save(ctx, sid, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Reset abandons the draft.
func (s *Store) Reset(ctx context.Context, sid string) error {
	if err := s.repo.Clear(ctx, sid); err != nil {
		return fmt.Errorf("reset draft: %w", err)
	}
	return nil
}

// Put stores d as the whole draft without reading the previous value.
func (s *Store) Put(ctx context.Context, sid string, d Draft) error {
	d.Meta = Meta{LastUpdated: s.now().UTC(), FormVersion: form.CurrentVersion}
	return s.repo.Save(ctx, sid, d)
}
