// Package presentation renders statistics for the chat transport.
//
// Two renderers exist: TextPresenter produces a Markdown summary and
// ChartPresenter produces a PNG pie chart with a Markdown caption, falling
// back to text when drawing fails. Nothing upstream depends on which one
// is active.
package presentation

import (
	"context"
	"fmt"
	"strings"

	"finbot/internal/core"
)

// Currency is appended to every amount shown to the user.
const Currency = "руб."

// StatsView is what the resolver hands over for rendering.
type StatsView struct {
	WindowDays int
	Totals     []core.CategoryTotal
}

// Total sums all category totals.
func (v StatsView) Total() core.Money {
	var sum core.Money
	for _, t := range v.Totals {
		sum = sum.Add(t.Total)
	}
	return sum
}

// Rendered is either a Markdown text or an image with a Markdown caption.
type Rendered struct {
	Text      string
	Image     []byte
	ImageName string
}

func (r Rendered) HasImage() bool {
	return len(r.Image) > 0
}

type Presenter interface {
	RenderStats(ctx context.Context, v StatsView) (Rendered, error)
}

// New returns the presenter registered under kind ("chart" or "text").
func New(kind string) (Presenter, error) {
	switch kind {
	case "text":
		return TextPresenter{}, nil
	case "chart", "":
		return NewChartPresenter(TextPresenter{}), nil
	}
	return nil, fmt.Errorf("unknown stats renderer %q", kind)
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown protects user supplied text inside legacy Markdown messages.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Bold wraps s in a bold entity. Legacy Markdown has no escapes inside an
// entity, so text carrying markup characters is escaped and left plain.
func Bold(s string) string {
	if strings.ContainsAny(s, "_*`[") {
		return EscapeMarkdown(s)
	}
	return "*" + s + "*"
}

// EmptyStatsText is shown when the window holds no expenses.
func EmptyStatsText(windowDays int) string {
	if windowDays == 30 {
		return "📭 За последний месяц трат нет."
	}
	return fmt.Sprintf("📭 За последние %d дн. трат нет.", windowDays)
}
