package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxCategoryNameLen is counted in characters, not bytes.
	MaxCategoryNameLen = 20
	// MaxGlyphLen is the number of characters kept from a user supplied glyph.
	MaxGlyphLen = 2
	// DefaultGlyph is used when the user skips the glyph step.
	DefaultGlyph = "➕"
)

type (
	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Glyph     string
		Deleted   bool
		CreatedAt time.Time
	}

	Expense struct {
		ID         int64
		UserID     int64
		CategoryID int64
		Amount     Money
		CreatedAt  time.Time
	}

	// ExpenseLine is an expense joined with the label of its category.
	ExpenseLine struct {
		Expense
		CategoryLabel string
	}

	// CategoryTotal is the sum of a category's expenses inside a window.
	CategoryTotal struct {
		Label string
		Total Money
	}

	DefaultCategory struct {
		Name  string
		Glyph string
	}
)

// DefaultCategories are seeded for every new user, in this order.
var DefaultCategories = []DefaultCategory{
	{Name: "Еда", Glyph: "🍕"},
	{Name: "Транспорт", Glyph: "🚗"},
	{Name: "Одежда", Glyph: "👕"},
	{Name: "Развлечения", Glyph: "🎬"},
}

var (
	ErrEmptyCategoryName   = errors.New("empty category name")
	ErrCategoryNameTooLong = errors.New("category name too long")
)

// Label is the exact text a category button carries: "<glyph> <name>".
func (c Category) Label() string {
	return c.Glyph + " " + c.Name
}

// StatsLabel is the "<name> <glyph>" form used in aggregated statistics.
func (c Category) StatsLabel() string {
	return c.Name + " " + c.Glyph
}

// NormalizeCategoryName trims the name and checks its length.
func NormalizeCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyCategoryName
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLen {
		return "", ErrCategoryNameTooLong
	}
	return name, nil
}

// NormalizeGlyph keeps at most MaxGlyphLen characters of the input.
// Blank input falls back to DefaultGlyph.
func NormalizeGlyph(glyph string) string {
	if strings.TrimSpace(glyph) == "" {
		return DefaultGlyph
	}
	runes := []rune(glyph)
	if len(runes) > MaxGlyphLen {
		runes = runes[:MaxGlyphLen]
	}
	return string(runes)
}

// FindByLabel returns the category whose Label equals text exactly.
func FindByLabel(categories []Category, text string) (Category, bool) {
	for _, c := range categories {
		if c.Label() == text {
			return c, true
		}
	}
	return Category{}, false
}
