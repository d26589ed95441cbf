// Package firestore implements store.GuideStore on Google Cloud Firestore,
// one document per guide in a single collection.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/phrazzld/studyguide-api/internal/store"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "study_guides"

// GuideStore stores guides in a Firestore collection.
type GuideStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

var _ store.GuideStore = (*GuideStore)(nil)

// NewClient opens a Firestore client for projectID. When
// FIRESTORE_EMULATOR_HOST is set the client talks to the emulator.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create firestore client: %v", store.ErrStoreUnavailable, err)
	}
	return client, nil
}

// NewGuideStore returns a store over collection.
func NewGuideStore(client *firestore.Client, collection string, logger *slog.Logger) *GuideStore {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GuideStore{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "firestore_guide_store"),
	}
}

// Put creates the document, failing with store.ErrDuplicate when it exists.
func (s *GuideStore) Put(ctx context.Context, guide *domain.Guide) error {
	if guide == nil || guide.ID == "" {
		return fmt.Errorf("%w: guide id is required", store.ErrInvalidEntity)
	}
	doc, err := toDocument(guide)
	if err != nil {
		return fmt.Errorf("%w: failed to encode guide: %v", store.ErrInvalidEntity, err)
	}

	if _, err := s.ref(guide.ID).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: guide %s", store.ErrDuplicate, guide.ID)
		}
		return s.fail(ctx, "put", "failed to create guide document", err)
	}
	return nil
}

// Get reads one document.
func (s *GuideStore) Get(ctx context.Context, id string) (*domain.Guide, error) {
	snap, err := s.ref(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, store.ErrGuideNotFound
		}
		return nil, s.fail(ctx, "get", "failed to read guide document", err)
	}
	return fromDocument(snap.Ref.ID, snap.Data())
}

// ListByOwner queries documents whose owner field, or legacy user_id field,
// equals owner. Documents that name a different owner are dropped after
// decoding, since owner wins over user_id.
func (s *GuideStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Guide, error) {
	iter := s.client.Collection(s.collection).WhereEntity(ownerFilter(owner)).Documents(ctx)
	defer iter.Stop()

	guides := make([]*domain.Guide, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, s.fail(ctx, "list", "failed to query guides", err)
		}
		guide, err := fromDocument(snap.Ref.ID, snap.Data())
		if err != nil {
			s.log(ctx).Warn("skipping undecodable guide document",
				"guide_id", snap.Ref.ID,
				"error", redact.Error(err))
			continue
		}
		if guide.Owner != owner {
			continue
		}
		guides = append(guides, guide)
	}
	return guides, nil
}

func ownerFilter(owner string) firestore.EntityFilter {
	return firestore.OrFilter{
		Filters: []firestore.EntityFilter{
			firestore.PropertyFilter{Path: "owner", Operator: "==", Value: owner},
			firestore.PropertyFilter{Path: "user_id", Operator: "==", Value: owner},
		},
	}
}

// Update runs fn inside a Firestore transaction. Firestore may call fn more
// than once when the transaction contends with another writer.
func (s *GuideStore) Update(ctx context.Context, id string, fn store.UpdateFn) (*domain.Guide, error) {
	ref := s.ref(id)
	var updated *domain.Guide

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return store.ErrGuideNotFound
			}
			return err
		}
		guide, err := fromDocument(snap.Ref.ID, snap.Data())
		if err != nil {
			return err
		}
		if err := fn(guide); err != nil {
			return err
		}
		guide.ID = id

		doc, err := toDocument(guide)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = guide
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrGuideNotFound) || !isFirestoreError(err) {
			return nil, err
		}
		return nil, s.fail(ctx, "update", "guide transaction failed",
			fmt.Errorf("%w: %v", store.ErrTransactionFailed, err))
	}
	return updated, nil
}

// Delete removes the document. Deleting a missing document succeeds.
func (s *GuideStore) Delete(ctx context.Context, id string) error {
	if _, err := s.ref(id).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return s.fail(ctx, "delete", "failed to delete guide document", err)
	}
	return nil
}

func (s *GuideStore) ref(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *GuideStore) fail(ctx context.Context, operation, message string, err error) error {
	s.log(ctx).Error(message, "operation", operation, "error", redact.Error(err))
	if code := status.Code(err); code == codes.Unavailable || code == codes.DeadlineExceeded {
		err = fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return store.NewStoreError("guide", operation, message, err)
}

func (s *GuideStore) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

// isFirestoreError reports whether err came from the Firestore RPC layer
// rather than from the caller's update function.
func isFirestoreError(err error) bool {
	_, ok := status.FromError(err)
	return ok
}
