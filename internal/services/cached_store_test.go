package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo records how often the category list is actually loaded.
type countingRepo struct {
	Repository
	lists int
	cats  []core.Category
	err   error
}

func (r *countingRepo) ListCategories(_ context.Context, uid int64, _ bool) ([]core.Category, error) {
	r.lists++
	return r.cats, r.err
}

func TestCachedStore_ReadThrough(t *testing.T) {
	repo := &countingRepo{cats: []core.Category{{ID: 1, Name: "Еда", Glyph: "🍕"}}}
	s := NewCachedStore(repo, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cats, err := s.ListCategories(ctx, 1, false)
		require.NoError(t, err)
		require.Len(t, cats, 1)
	}
	assert.Equal(t, 1, repo.lists)

	_, err := s.ListCategories(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists, "deleted-inclusive listing bypasses the cache")
}

func TestCachedStore_ErrorsAreNotCached(t *testing.T) {
	repo := &countingRepo{err: errors.New("disk on fire")}
	s := NewCachedStore(repo, 10, time.Minute)

	_, err := s.ListCategories(context.Background(), 1, false)
	require.Error(t, err)
	assert.Zero(t, s.Cache().Size())
}

func TestCachedStore_CallerCannotCorruptCache(t *testing.T) {
	repo := &countingRepo{cats: []core.Category{{ID: 1, Name: "Еда"}}}
	s := NewCachedStore(repo, 10, time.Minute)
	ctx := context.Background()

	cats, _ := s.ListCategories(ctx, 1, false)
	cats[0].Name = "mutated"

	again, _ := s.ListCategories(ctx, 1, false)
	assert.Equal(t, "Еда", again[0].Name)
}

func TestCachedStore_InvalidatesOnMutation(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	s := NewCachedStore(repo, 10, time.Minute)
	ctx := context.Background()
	const uid = 77

	seeded, err := s.EnsureDefaultCategories(ctx, uid)
	require.NoError(t, err)
	require.True(t, seeded)

	cats, err := s.ListCategories(ctx, uid, false)
	require.NoError(t, err)
	require.Len(t, cats, 4)

	_, err = s.CreateCategory(ctx, uid, "Здоровье", "🏥")
	require.NoError(t, err)
	cats, err = s.ListCategories(ctx, uid, false)
	require.NoError(t, err)
	assert.Len(t, cats, 5)

	ok, err := s.SoftDeleteCategory(ctx, uid, cats[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	cats, err = s.ListCategories(ctx, uid, false)
	require.NoError(t, err)
	assert.Len(t, cats, 4)
	for _, c := range cats {
		assert.NotEqual(t, "Еда", c.Name)
	}

	// pass-through methods reach the repository
	id, err := s.AddExpense(ctx, uid, cats[0].ID, core.Money{Cents: 1500})
	require.NoError(t, err)
	assert.Positive(t, id)
	n, err := s.ClearCategoryExpenses(ctx, uid, cats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

type recordingPublisher struct {
	msgs []*amqp.ExportRequestMessage
	err  error
}

func (p *recordingPublisher) PublishExportRequest(_ context.Context, msg *amqp.ExportRequestMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestExportService_RequestExport(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("publishes request", func(t *testing.T) {
		pub := &recordingPublisher{}
		id, err := NewExportService(pub).RequestExport(context.Background(), 5, since)
		require.NoError(t, err)
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, pub.msgs[0].RequestID.String(), id)
		assert.Equal(t, int64(5), pub.msgs[0].UserID)
		assert.True(t, pub.msgs[0].Since.Equal(since))
	})

	t.Run("publisher failure is wrapped", func(t *testing.T) {
		boom := errors.New("broker gone")
		_, err := NewExportService(&recordingPublisher{err: boom}).RequestExport(context.Background(), 5, since)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no publisher", func(t *testing.T) {
		_, err := NewExportService(nil).RequestExport(context.Background(), 5, since)
		assert.ErrorIs(t, err, ErrExportDisabled)
	})
}
