package presentation

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"finbot/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleView() StatsView {
	return StatsView{
		WindowDays: 30,
		Totals: []core.CategoryTotal{
			{Label: "Транспорт 🚗", Total: core.Money{Cents: 30000}},
			{Label: "Еда 🍕", Total: core.Money{Cents: 10000}},
		},
	}
}

func TestTextPresenter(t *testing.T) {
	r, err := TextPresenter{}.RenderStats(context.Background(), sampleView())
	require.NoError(t, err)
	assert.False(t, r.HasImage())

	want := "📊 *Статистика за 30 дней:*\n\n" +
		"Транспорт 🚗: *300.00 руб.* (75.0%)\n" +
		"Еда 🍕: *100.00 руб.* (25.0%)\n" +
		"\n*Итого: 400.00 руб.*"
	assert.Equal(t, want, r.Text)
}

func TestTextPresenter_EscapesLabels(t *testing.T) {
	v := StatsView{WindowDays: 30, Totals: []core.CategoryTotal{
		{Label: "my_cat *", Total: core.Money{Cents: 100}},
	}}
	r, err := TextPresenter{}.RenderStats(context.Background(), v)
	require.NoError(t, err)
	assert.Contains(t, r.Text, `my\_cat \*`)
}

func TestPresenters_Empty(t *testing.T) {
	for _, p := range []Presenter{TextPresenter{}, NewChartPresenter(nil)} {
		r, err := p.RenderStats(context.Background(), StatsView{WindowDays: 30})
		require.NoError(t, err)
		assert.Equal(t, "📭 За последний месяц трат нет.", r.Text)
		assert.False(t, r.HasImage())
	}
}

func TestChartPresenter_RendersPNG(t *testing.T) {
	r, err := NewChartPresenter(TextPresenter{}).RenderStats(context.Background(), sampleView())
	require.NoError(t, err)
	require.True(t, r.HasImage())
	assert.True(t, bytes.HasPrefix(r.Image, []byte("\x89PNG")), "expected a PNG image")
	assert.Equal(t, "stats.png", r.ImageName)
	assert.Contains(t, r.Text, "Всего потрачено: *400.00 руб.*")
	assert.Contains(t, r.Text, "Категорий: 2")
	assert.Contains(t, r.Text, "Средний чек: 200.00 руб.")
}

func TestChartPresenter_FallsBackToText(t *testing.T) {
	p := NewChartPresenter(TextPresenter{})
	p.draw = func(StatsView) ([]byte, error) { return nil, errors.New("no fonts") }

	r, err := p.RenderStats(context.Background(), sampleView())
	require.NoError(t, err)
	assert.False(t, r.HasImage())
	assert.Contains(t, r.Text, "*Итого: 400.00 руб.*")
}

func TestChartPresenter_NoFallback(t *testing.T) {
	p := NewChartPresenter(nil)
	p.draw = func(StatsView) ([]byte, error) { return nil, errors.New("no fonts") }

	_, err := p.RenderStats(context.Background(), sampleView())
	assert.ErrorContains(t, err, "render chart")
}

func TestNew(t *testing.T) {
	p, err := New("text")
	require.NoError(t, err)
	assert.IsType(t, TextPresenter{}, p)

	p, err = New("chart")
	require.NoError(t, err)
	assert.IsType(t, &ChartPresenter{}, p)

	_, err = New("ascii-art")
	assert.Error(t, err)
}

func TestCaption_AverageRoundsToKopecks(t *testing.T) {
	v := StatsView{WindowDays: 30, Totals: []core.CategoryTotal{
		{Label: "a", Total: core.Money{Cents: 3}},
		{Label: "b", Total: core.Money{Cents: 2}},
	}}
	assert.Contains(t, caption(v), "Средний чек: 0.03 руб.")
}

func TestBold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Еда", "*Еда*"},
		{"my_cat", `my\_cat`},
		{"a*b", `a\*b`},
		{"[x]", `\[x]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bold(tt.in), tt.in)
	}
}
