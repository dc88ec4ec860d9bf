package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNormalizeCategoryName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"  Здоровье ", "Здоровье", nil},
		{"Health", "Health", nil},
		{strings.Repeat("я", 20), strings.Repeat("я", 20), nil},
		{strings.Repeat("я", 21), "", ErrCategoryNameTooLong},
		{"   ", "", ErrEmptyCategoryName},
	}
	for _, tc := range cases {
		got, err := NormalizeCategoryName(tc.in)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: expected err %v, got %v", tc.in, tc.err, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestNormalizeGlyph(t *testing.T) {
	cases := map[string]string{
		"🏥":     "🏥",
		"⚙️":    "⚙️", // two code points, kept whole
		"abc":   "ab",
		"🍕🍔🍟":   "🍕🍔",
		"":      DefaultGlyph,
		"   ":   DefaultGlyph,
	}
	for in, want := range cases {
		if got := NormalizeGlyph(in); got != want {
			t.Fatalf("NormalizeGlyph(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindByLabel(t *testing.T) {
	cats := []Category{
		{ID: 1, Name: "Еда", Glyph: "🍕"},
		{ID: 2, Name: "Транспорт", Glyph: "🚗"},
	}

	c, ok := FindByLabel(cats, "🚗 Транспорт")
	if !ok || c.ID != 2 {
		t.Fatalf("expected category 2, got %+v ok=%v", c, ok)
	}

	for _, text := range []string{"Транспорт", "🚗Транспорт", "🚗 Транс", "🚗 Транспорт ", ""} {
		if _, ok := FindByLabel(cats, text); ok {
			t.Fatalf("%q must not match", text)
		}
	}
}

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", &NotFoundError{Message: "Категория не найдена"})
	msg, ok := UserMessage(wrapped)
	if !ok || msg != "Категория не найдена" {
		t.Fatalf("unexpected message %q ok=%v", msg, ok)
	}

	if _, ok := UserMessage(errors.New("disk full")); ok {
		t.Fatalf("plain errors carry no user message")
	}
}
