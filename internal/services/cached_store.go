package services

import (
	"context"
	"time"

	"finbot/internal/cache"
	"finbot/internal/core"
	applog "finbot/internal/log"
)

// Repository is the persistence surface the bot works against.
// storage.SQLiteRepository implements it.
type Repository interface {
	EnsureDefaultCategories(ctx context.Context, uid int64) (bool, error)
	ListCategories(ctx context.Context, uid int64, includeDeleted bool) ([]core.Category, error)
	CreateCategory(ctx context.Context, uid int64, name, glyph string) (int64, error)
	SoftDeleteCategory(ctx context.Context, uid, categoryID int64) (bool, error)
	AddExpense(ctx context.Context, uid, categoryID int64, amount core.Money) (int64, error)
	CategoryTotals(ctx context.Context, uid int64, windowDays int) ([]core.CategoryTotal, error)
	TodayTotal(ctx context.Context, uid int64) (core.Money, error)
	ClearAllExpenses(ctx context.Context, uid int64) (int64, error)
	ClearCategoryExpenses(ctx context.Context, uid, categoryID int64) (int64, error)
	RecentExpenses(ctx context.Context, uid int64, limit int) ([]core.ExpenseLine, error)
}

// CachedStore keeps each user's live category list in an LRU cache. The
// list is read on nearly every message, while category mutations are rare.
type CachedStore struct {
	Repository
	categories *cache.LRUCache[int64, []core.Category]
}

func NewCachedStore(repo Repository, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Repository: repo,
		categories: cache.NewLRUCache[int64, []core.Category](size, ttl),
	}
}

// Cache exposes the underlying cache so it can be registered with a cache.Manager.
func (s *CachedStore) Cache() *cache.LRUCache[int64, []core.Category] {
	return s.categories
}

func (s *CachedStore) ListCategories(ctx context.Context, uid int64, includeDeleted bool) ([]core.Category, error) {
	if includeDeleted {
		return s.Repository.ListCategories(ctx, uid, true)
	}
	if cats, ok := s.categories.Get(uid); ok {
		return clone(cats), nil
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentCache).DebugContext(ctx,
		"Category cache miss", applog.FieldOperation, applog.OpList)
	cats, err := s.Repository.ListCategories(ctx, uid, false)
	if err != nil {
		return nil, err
	}
	s.categories.Set(uid, clone(cats))
	return cats, nil
}

func (s *CachedStore) EnsureDefaultCategories(ctx context.Context, uid int64) (bool, error) {
	seeded, err := s.Repository.EnsureDefaultCategories(ctx, uid)
	if seeded {
		s.categories.Delete(uid)
	}
	return seeded, err
}

func (s *CachedStore) CreateCategory(ctx context.Context, uid int64, name, glyph string) (int64, error) {
	defer s.categories.Delete(uid)
	return s.Repository.CreateCategory(ctx, uid, name, glyph)
}

func (s *CachedStore) SoftDeleteCategory(ctx context.Context, uid, categoryID int64) (bool, error) {
	defer s.categories.Delete(uid)
	return s.Repository.SoftDeleteCategory(ctx, uid, categoryID)
}

func clone(cats []core.Category) []core.Category {
	if cats == nil {
		return nil
	}
	out := make([]core.Category, len(cats))
	copy(out, cats)
	return out
}
