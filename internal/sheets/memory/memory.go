package memory

import (
	"context"
	"sync"

	"finbot/internal/core"
	"finbot/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Sink)(nil)

// Sink keeps exported expenses in memory, keyed by user. It backs local
// development and tests where no spreadsheet is configured.
type Sink struct {
	mu   sync.Mutex
	rows map[int64][]core.ExpenseLine
}

func New() *Sink {
	return &Sink{rows: make(map[int64][]core.ExpenseLine)}
}

func (s *Sink) AppendExpenses(_ context.Context, uid int64, lines []core.ExpenseLine) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[uid] = append(s.rows[uid], lines...)
	return len(lines), nil
}

// Rows returns a copy of everything exported for uid.
func (s *Sink) Rows(uid int64) []core.ExpenseLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseLine(nil), s.rows[uid]...)
}
