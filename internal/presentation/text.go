package presentation

import (
	"context"
	"fmt"
	"strings"
)

// TextPresenter lists every category with its amount and share.
type TextPresenter struct{}

func (TextPresenter) RenderStats(_ context.Context, v StatsView) (Rendered, error) {
	if len(v.Totals) == 0 {
		return Rendered{Text: EmptyStatsText(v.WindowDays)}, nil
	}

	total := v.Total()

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Статистика за %d дней:*\n\n", v.WindowDays)
	for _, ct := range v.Totals {
		fmt.Fprintf(&b, "%s: *%s %s* (%.1f%%)\n",
			EscapeMarkdown(ct.Label), ct.Total, Currency, ct.Total.Percent(total))
	}
	fmt.Fprintf(&b, "\n*Итого: %s %s*", total, Currency)

	return Rendered{Text: b.String()}, nil
}
