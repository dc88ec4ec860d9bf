package bot

// Control tokens are the exact texts of menu buttons. They are matched
// before anything else and never interpreted as category labels.
const (
	TokenStart          = "/start"
	TokenStats          = "📊 Статистика"
	TokenSettings       = "⚙️ Настройки"
	TokenEditCategories = "📝 Редактировать категории"
	TokenClearStats     = "🧹 Очистить статистику"
	TokenConfirmClear   = "✅ Да, удалить всю статистику"
	TokenCancelClear    = "❌ Нет, отменить"
	TokenExport         = "📤 Экспорт данных"
	TokenBackToMenu     = "⬅️ Назад в меню"
	TokenNewCategory    = "➕ Новая категория"
	TokenFinishEditing  = "✅ Завершить редактирование"

	// TokenSkipGlyph is only meaningful while a new category waits for its glyph.
	TokenSkipGlyph = "/skip"
)

// IsControlToken reports whether text is one of the reserved menu texts.
func IsControlToken(text string) bool {
	switch text {
	case TokenStart, TokenStats, TokenSettings, TokenEditCategories,
		TokenClearStats, TokenConfirmClear, TokenCancelClear, TokenExport,
		TokenBackToMenu, TokenNewCategory, TokenFinishEditing:
		return true
	}
	return false
}
