// Package storetest provides a conformance suite for store.GuideStore
// implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.GuideStore

// NewGuide returns a valid, normalized guide with a four-task schedule.
func NewGuide(owner string, createdAt int64) *domain.Guide {
	g := &domain.Guide{
		ID:        uuid.NewString(),
		Owner:     owner,
		Title:     "Organic Chemistry",
		Summary:   "Functional groups and reactions.",
		StudyTips: []string{"Draw mechanisms by hand"},
		FlashCards: []domain.FlashCard{
			{Front: "What is an alkene?", Back: "A hydrocarbon with a C=C double bond"},
		},
		Quiz: []domain.QuizQuestion{{
			Question:        "Which group is -OH?",
			PossibleAnswers: []string{"Hydroxyl", "Carbonyl", "Amine"},
			CorrectIndex:    0,
			RelatedTopic:    "Functional groups",
		}},
		Topics: []domain.Topic{{Name: "Functional groups", Difficulty: domain.DifficultyHard}},
		StudySchedule: []domain.Task{
			{DayOffset: 0, Title: "Study: Functional groups", DurationMinutes: 45, Type: domain.TaskTypeLearning, Difficulty: domain.DifficultyHard},
			{DayOffset: 1, Title: "Revision: Functional groups", DurationMinutes: 30, Type: domain.TaskTypeRevision},
			{DayOffset: 2, Title: "Study: Reactions", DurationMinutes: 60, Type: domain.TaskTypeLearning},
			{DayOffset: 4, Title: "Revision: Reactions", DurationMinutes: 30, Type: domain.TaskTypeRevision},
		},
		CreatedAt:  createdAt,
		Filename:   "chem.pdf",
		Goals:      "Pass the final",
		Difficulty: "Intermediate",
	}
	g.Normalize()
	return g
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("put then get round trips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		guide := NewGuide("alice", 100)

		require.NoError(t, s.Put(ctx, guide))
		got, err := s.Get(ctx, guide.ID)

		require.NoError(t, err)
		assert.Equal(t, guide, got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, store.ErrGuideNotFound)
	})

	t.Run("put duplicate id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		guide := NewGuide("alice", 100)
		require.NoError(t, s.Put(ctx, guide))

		err := s.Put(ctx, guide)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("list by owner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a1, a2, b := NewGuide("alice", 100), NewGuide("alice", 200), NewGuide("bob", 300)
		for _, g := range []*domain.Guide{a1, a2, b} {
			require.NoError(t, s.Put(ctx, g))
		}

		guides, err := s.ListByOwner(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a1.ID, a2.ID}, ids(guides))

		none, err := s.ListByOwner(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("update applies the mutation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		guide := NewGuide("alice", 100)
		require.NoError(t, s.Put(ctx, guide))

		updated, err := s.Update(ctx, guide.ID, func(g *domain.Guide) error {
			return g.SetTaskCompleted(2, true)
		})
		require.NoError(t, err)
		assert.True(t, updated.StudySchedule[2].Completed)

		stored, err := s.Get(ctx, guide.ID)
		require.NoError(t, err)
		assert.True(t, stored.StudySchedule[2].Completed)
		assert.False(t, stored.StudySchedule[1].Completed)
	})

	t.Run("failed update leaves record unchanged", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		guide := NewGuide("alice", 100)
		require.NoError(t, s.Put(ctx, guide))

		_, err := s.Update(ctx, guide.ID, func(g *domain.Guide) error {
			g.Title = "mutated before failing"
			return g.SetTaskCompleted(99, true)
		})
		assert.ErrorIs(t, err, domain.ErrTaskIndexOutOfRange)

		stored, err := s.Get(ctx, guide.ID)
		require.NoError(t, err)
		assert.Equal(t, guide, stored)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(context.Background(), uuid.NewString(), func(*domain.Guide) error { return nil })
		assert.ErrorIs(t, err, store.ErrGuideNotFound)
	})

	t.Run("concurrent updates on different tasks both persist", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		guide := NewGuide("alice", 100)
		require.NoError(t, s.Put(ctx, guide))

		var wg sync.WaitGroup
		errs := make(chan error, len(guide.StudySchedule))
		for i := range guide.StudySchedule {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				_, err := s.Update(ctx, guide.ID, func(g *domain.Guide) error {
					return g.SetTaskCompleted(index, true)
				})
				if err != nil {
					errs <- fmt.Errorf("task %d: %w", index, err)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		stored, err := s.Get(ctx, guide.ID)
		require.NoError(t, err)
		for i, task := range stored.StudySchedule {
			assert.True(t, task.Completed, "task %d should be completed", i)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		guide := NewGuide("alice", 100)
		require.NoError(t, s.Put(ctx, guide))

		require.NoError(t, s.Delete(ctx, guide.ID))
		_, err := s.Get(ctx, guide.ID)
		assert.True(t, errors.Is(err, store.ErrGuideNotFound))

		assert.NoError(t, s.Delete(ctx, guide.ID))
		assert.NoError(t, s.Delete(ctx, uuid.NewString()))
	})
}

func ids(guides []*domain.Guide) []string {
	out := make([]string, 0, len(guides))
	for _, g := range guides {
		out = append(out, g.ID)
	}
	sort.Strings(out)
	return out
}
