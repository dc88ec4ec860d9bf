package bot

import (
	"finbot/internal/core"
	"finbot/internal/presentation"
)

// Kind classifies a reply for the transport.
type Kind int

const (
	// Confirmation reports a completed action.
	Confirmation Kind = iota
	// Prompt asks for input of a specific shape.
	Prompt
	// Error reports a rejected input. The conversation stays where it was
	// unless the error says otherwise.
	Error
)

func (k Kind) String() string {
	switch k {
	case Confirmation:
		return "confirmation"
	case Prompt:
		return "prompt"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Menu is a fully laid out reply keyboard.
type Menu struct {
	Rows        [][]string
	Placeholder string
	OneTime     bool
}

// Reply is the single answer to one inbound message. Text is Markdown.
// A nil Menu keeps whatever keyboard the user currently has.
type Reply struct {
	Kind  Kind
	Text  string
	Menu  *Menu
	Stats *presentation.StatsView
}

const menuPlaceholderMain = "Выбери категорию"
const menuPlaceholderEditing = "Долгое нажатие удаляет категорию"

func categoryRows(cats []core.Category) [][]string {
	rows := make([][]string, 0, len(cats)/2+3)
	var row []string
	for _, c := range cats {
		row = append(row, c.Label())
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// MainMenu lists the user's categories two per row followed by statistics
// and settings.
func MainMenu(cats []core.Category) *Menu {
	rows := categoryRows(cats)
	rows = append(rows, []string{TokenStats, TokenSettings})
	return &Menu{Rows: rows, Placeholder: menuPlaceholderMain}
}

// SettingsMenu has four fixed rows.
func SettingsMenu() *Menu {
	return &Menu{Rows: [][]string{
		{TokenEditCategories},
		{TokenClearStats},
		{TokenExport},
		{TokenBackToMenu},
	}}
}

// EditingMenu lists the categories, where pressing one deletes it.
func EditingMenu(cats []core.Category) *Menu {
	rows := categoryRows(cats)
	rows = append(rows,
		[]string{TokenNewCategory},
		[]string{TokenStats, TokenFinishEditing},
	)
	return &Menu{Rows: rows, Placeholder: menuPlaceholderEditing}
}

func ConfirmClearMenu() *Menu {
	return &Menu{
		Rows: [][]string{
			{TokenConfirmClear},
			{TokenCancelClear},
		},
		OneTime: true,
	}
}
