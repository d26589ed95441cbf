package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/phrazzld/studyguide-api/internal/store"
)

// PostgresGuideStore implements store.GuideStore using a PostgreSQL
// database as the storage backend.
type PostgresGuideStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure PostgresGuideStore implements store.GuideStore interface
var _ store.GuideStore = (*PostgresGuideStore)(nil)

// NewPostgresGuideStore creates a guide store on db. If logger is nil, the
// default logger is used.
func NewPostgresGuideStore(db *sql.DB, logger *slog.Logger) *PostgresGuideStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGuideStore{
		db:     db,
		logger: logger.With(slog.String("component", "guide_store")),
	}
}

// Put inserts a new guide. It returns store.ErrDuplicate when the id is taken.
func (s *PostgresGuideStore) Put(ctx context.Context, guide *domain.Guide) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if guide == nil || guide.ID == "" {
		return fmt.Errorf("%w: guide id is required", store.ErrInvalidEntity)
	}
	document, err := json.Marshal(guide)
	if err != nil {
		return fmt.Errorf("%w: failed to encode guide: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO guides (id, owner, created_at, document)
		VALUES ($1, $2, $3, $4::jsonb)
	`
	if _, err := s.db.ExecContext(ctx, query, guide.ID, guide.Owner, guide.CreatedAt, string(document)); err != nil {
		if IsUniqueViolation(err) {
			log.Warn("guide id already exists", slog.String("guide_id", guide.ID))
			return fmt.Errorf("%w: guide %s", store.ErrDuplicate, guide.ID)
		}
		log.Error("failed to insert guide",
			slog.String("error", redact.Error(err)),
			slog.String("guide_id", guide.ID))
		return store.NewStoreError("guide", "put", "failed to insert guide", MapError(err))
	}

	log.Debug("guide inserted", slog.String("guide_id", guide.ID))
	return nil
}

// Get returns the guide with id, or store.ErrGuideNotFound.
func (s *PostgresGuideStore) Get(ctx context.Context, id string) (*domain.Guide, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	guide, err := selectGuide(ctx, s.db, id, false)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrGuideNotFound
		}
		log.Error("failed to get guide",
			slog.String("error", redact.Error(err)),
			slog.String("guide_id", id))
		return nil, store.NewStoreError("guide", "get", "failed to query guide", MapError(err))
	}
	return guide, nil
}

// ListByOwner returns the owner's guides, newest first.
func (s *PostgresGuideStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Guide, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT document FROM guides
		WHERE owner = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		log.Error("failed to list guides", slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("guide", "list", "failed to query guides", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", redact.Error(cerr)))
		}
	}()

	guides := make([]*domain.Guide, 0)
	for rows.Next() {
		guide, err := scanGuide(rows)
		if err != nil {
			return nil, store.NewStoreError("guide", "list", "failed to scan guide", err)
		}
		guides = append(guides, guide)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("guide", "list", "failed to iterate guides", MapError(err))
	}
	return guides, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
func (s *PostgresGuideStore) Update(ctx context.Context, id string, fn store.UpdateFn) (*domain.Guide, error) {
	var updated *domain.Guide

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		guide, err := selectGuide(ctx, tx, id, true)
		if err != nil {
			if IsNotFoundError(err) {
				return store.ErrGuideNotFound
			}
			return store.NewStoreError("guide", "update", "failed to lock guide", MapError(err))
		}

		if err := fn(guide); err != nil {
			return err
		}
		guide.ID = id

		document, err := json.Marshal(guide)
		if err != nil {
			return fmt.Errorf("%w: failed to encode guide: %v", store.ErrInvalidEntity, err)
		}

		query := `
			UPDATE guides
			SET owner = $2, created_at = $3, document = $4::jsonb, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, query, id, guide.Owner, guide.CreatedAt, string(document)); err != nil {
			return store.NewStoreError("guide", "update", "failed to write guide", MapError(err))
		}

		updated = guide
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("guide updated", slog.String("guide_id", id))
	return updated, nil
}

// Delete removes the guide; missing rows are ignored.
func (s *PostgresGuideStore) Delete(ctx context.Context, id string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM guides WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete guide",
			slog.String("error", redact.Error(err)),
			slog.String("guide_id", id))
		return store.NewStoreError("guide", "delete", "failed to delete guide", MapError(err))
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		log.Debug("delete of missing guide ignored", slog.String("guide_id", id))
	}
	return nil
}

// selectGuide reads one guide through q, which is the pool or a transaction.
// With lock set the row is held until the transaction ends.
func selectGuide(ctx context.Context, q store.DBTX, id string, lock bool) (*domain.Guide, error) {
	query := `SELECT document FROM guides WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanGuide(q.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuide(row rowScanner) (*domain.Guide, error) {
	var document []byte
	if err := row.Scan(&document); err != nil {
		return nil, err
	}

	var guide domain.Guide
	if err := json.Unmarshal(document, &guide); err != nil {
		return nil, fmt.Errorf("failed to decode guide document: %w", err)
	}
	return &guide, nil
}
