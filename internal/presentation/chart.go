package presentation

import (
	"bytes"
	"context"
	"fmt"

	"finbot/internal/core"
	applog "finbot/internal/log"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
)

// ChartPresenter draws a pie chart of the category totals.
type ChartPresenter struct {
	Width    int
	Height   int
	fallback Presenter
	draw     func(StatsView) ([]byte, error)
}

func NewChartPresenter(fallback Presenter) *ChartPresenter {
	p := &ChartPresenter{
		Width:    1000,
		Height:   1000,
		fallback: fallback,
	}
	p.draw = p.drawPie
	return p
}

func (p *ChartPresenter) RenderStats(ctx context.Context, v StatsView) (Rendered, error) {
	if len(v.Totals) == 0 {
		return Rendered{Text: EmptyStatsText(v.WindowDays)}, nil
	}

	img, err := p.draw(v)
	if err != nil {
		if p.fallback == nil {
			return Rendered{}, fmt.Errorf("render chart: %w", err)
		}
		applog.FromContext(ctx).WithComponent(applog.ComponentPresenter).WarnContext(ctx,
			"Chart rendering failed, falling back to text", applog.NewFields().
				WithOperation(applog.OpRender).
				WithError(err).
				WithErrorType(applog.ErrorTypeInternal).
				ToSlice()...)
		return p.fallback.RenderStats(ctx, v)
	}

	return Rendered{
		Text:      caption(v),
		Image:     img,
		ImageName: "stats.png",
	}, nil
}

func (p *ChartPresenter) drawPie(v StatsView) ([]byte, error) {
	total := v.Total()
	values := make([]chart.Value, 0, len(v.Totals))
	for _, ct := range v.Totals {
		values = append(values, chart.Value{
			Value: ct.Total.Decimal().InexactFloat64(),
			Label: fmt.Sprintf("%s %.1f%%", ct.Label, ct.Total.Percent(total)),
		})
	}

	pie := chart.PieChart{
		Title:  fmt.Sprintf("Расходы по категориям (%d дней)", v.WindowDays),
		Width:  p.Width,
		Height: p.Height,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func caption(v StatsView) string {
	total := v.Total()
	avg := core.MoneyFromDecimal(total.Decimal().Div(decimal.NewFromInt(int64(len(v.Totals)))))
	return fmt.Sprintf("📈 *Статистика за %d дней*\n\n"+
		"Всего потрачено: *%s %s*\n"+
		"Категорий: %d\n"+
		"Средний чек: %s %s",
		v.WindowDays, total, Currency, len(v.Totals), avg, Currency)
}
