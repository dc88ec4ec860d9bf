package sheets

import (
	"context"

	"finbot/internal/core"
)

// ExpenseExporter is the outbound port of the export worker: it receives a
// user's expenses and writes them somewhere outside the bot's database.
type ExpenseExporter interface {
	AppendExpenses(ctx context.Context, uid int64, lines []core.ExpenseLine) (written int, err error)
}

// DateLayout formats the date column. Rows are laid out as
// date, user id, category label, amount, expense id.
const DateLayout = "2006-01-02 15:04"
