// Package bot turns one inbound chat message into one Reply.
//
// The Resolver consults the per-user session phase, performs at most one
// store operation and updates the session. Control tokens always win over
// category labels; after that the phase decides how free text is read.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finbot/internal/core"
	applog "finbot/internal/log"
	"finbot/internal/presentation"
	"finbot/internal/session"
)

const (
	DefaultWindowDays = 30
	recentLimit       = 5
)

// Store is the persistence the resolver works against.
type Store interface {
	EnsureDefaultCategories(ctx context.Context, uid int64) (bool, error)
	ListCategories(ctx context.Context, uid int64, includeDeleted bool) ([]core.Category, error)
	CreateCategory(ctx context.Context, uid int64, name, glyph string) (int64, error)
	SoftDeleteCategory(ctx context.Context, uid, categoryID int64) (bool, error)
	AddExpense(ctx context.Context, uid, categoryID int64, amount core.Money) (int64, error)
	CategoryTotals(ctx context.Context, uid int64, windowDays int) ([]core.CategoryTotal, error)
	TodayTotal(ctx context.Context, uid int64) (core.Money, error)
	ClearAllExpenses(ctx context.Context, uid int64) (int64, error)
	RecentExpenses(ctx context.Context, uid int64, limit int) ([]core.ExpenseLine, error)
}

// Exporter queues an export of a user's expenses recorded since a point in time.
type Exporter interface {
	RequestExport(ctx context.Context, uid int64, since time.Time) (string, error)
}

type Resolver struct {
	store      Store
	sessions   *session.Store
	exporter   Exporter
	windowDays int
	now        func() time.Time
}

type Option func(*Resolver)

func WithExporter(e Exporter) Option {
	return func(r *Resolver) { r.exporter = e }
}

// WithWindowDays sets the statistics window. Values below one are ignored.
func WithWindowDays(days int) Option {
	return func(r *Resolver) {
		if days > 0 {
			r.windowDays = days
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(store Store, sessions *session.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		sessions:   sessions,
		windowDays: DefaultWindowDays,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle resolves one message. Rejected input comes back as an Error reply;
// a returned error means the store failed.
func (r *Resolver) Handle(ctx context.Context, uid int64, text string) (Reply, error) {
	if _, err := r.store.EnsureDefaultCategories(ctx, uid); err != nil {
		return Reply{}, fmt.Errorf("ensure default categories: %w", err)
	}

	var (
		reply Reply
		err   error
	)
	if IsControlToken(text) {
		logger(ctx).DebugContext(ctx, "Control token", applog.FieldToken, text)
		reply, err = r.handleControl(ctx, uid, text)
	} else {
		reply, err = r.handleText(ctx, uid, text)
	}

	if err != nil {
		if msg, ok := core.UserMessage(err); ok {
			fields := applog.NewFields().
				WithError(err).
				WithErrorType(errorType(err))
			fields[applog.FieldPhase] = r.sessions.Get(uid).Phase.String()
			logger(ctx).InfoContext(ctx, "Input rejected", fields.ToSlice()...)
			return Reply{Kind: Error, Text: msg}, nil
		}
		return Reply{}, err
	}
	return reply, nil
}

// logger returns the per-update logger placed in ctx by the transport.
func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentResolver)
}

func errorType(err error) string {
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		return applog.ErrorTypeNotFound
	}
	return applog.ErrorTypeValidation
}

func (r *Resolver) handleControl(ctx context.Context, uid int64, token string) (Reply, error) {
	switch token {
	case TokenStart:
		r.sessions.Reset(uid)
		cats, err := r.categories(ctx, uid)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			Kind: Confirmation,
			Text: fmt.Sprintf("👋 Добро пожаловать в Финансовый помощник!\n\n"+
				"У тебя настроено %d категорий.\n"+
				"Выбери категорию для добавления расхода или зайди в настройки ⚙️", len(cats)),
			Menu: MainMenu(cats),
		}, nil

	case TokenStats:
		return r.stats(ctx, uid)

	case TokenSettings:
		return Reply{
			Kind: Confirmation,
			Text: "⚙️ *Настройки*\n\nЧто хочешь настроить?",
			Menu: SettingsMenu(),
		}, nil

	case TokenEditCategories:
		r.sessions.SetEditingMode(uid, true)
		r.sessions.ClearPendingSelection(uid)
		r.sessions.SetPhase(uid, session.EditingCategories)
		cats, err := r.categories(ctx, uid)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			Kind: Confirmation,
			Text: "📝 *Режим редактирования категорий*\n\n" +
				"• Нажатие на категорию удаляет её\n" +
				"• Кнопка «➕ Новая категория» добавляет новую\n" +
				"• «✅ Завершить редактирование» выходит из режима",
			Menu: EditingMenu(cats),
		}, nil

	case TokenClearStats:
		return Reply{
			Kind: Prompt,
			Text: "⚠️ *Внимание!* Это удалит ВСЮ историю расходов.\n\n" +
				"Категории останутся, но все записи о расходах будут удалены.\n" +
				"Это действие нельзя отменить!\n\n" +
				"Продолжить?",
			Menu: ConfirmClearMenu(),
		}, nil

	case TokenConfirmClear:
		n, err := r.store.ClearAllExpenses(ctx, uid)
		if err != nil {
			return Reply{}, fmt.Errorf("clear expenses: %w", err)
		}
		logger(ctx).InfoContext(ctx, "Expenses cleared", applog.FieldOperation, applog.OpClear, applog.FieldRows, n)
		return Reply{
			Kind: Confirmation,
			Text: fmt.Sprintf("✅ Статистика очищена!\n"+
				"Удалено записей: *%d*\n\n"+
				"Категории сохранены. Можно начать вести учёт заново!", n),
			Menu: SettingsMenu(),
		}, nil

	case TokenCancelClear:
		return Reply{Kind: Confirmation, Text: "Очистка отменена ✅", Menu: SettingsMenu()}, nil

	case TokenExport:
		return r.export(ctx, uid)

	case TokenBackToMenu:
		r.leaveEditing(uid)
		cats, err := r.categories(ctx, uid)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Kind: Confirmation, Text: "Возвращаемся в главное меню...", Menu: MainMenu(cats)}, nil

	case TokenNewCategory:
		if !r.sessions.Get(uid).Editing {
			return Reply{}, &core.PreconditionError{Message: "❌ Сначала зайди в режим редактирования категорий!"}
		}
		r.sessions.BeginCategoryCreation(uid)
		return Reply{
			Kind: Prompt,
			Text: "✏️ Введи название для новой категории:\n_Например: Техника, Обучение, Здоровье_",
		}, nil

	case TokenFinishEditing:
		r.leaveEditing(uid)
		return Reply{
			Kind: Confirmation,
			Text: "✅ Изменения сохранены! Возвращаемся в настройки...",
			Menu: SettingsMenu(),
		}, nil
	}

	return Reply{}, fmt.Errorf("unhandled control token %q", token)
}

func (r *Resolver) handleText(ctx context.Context, uid int64, text string) (Reply, error) {
	st := r.sessions.Get(uid)

	phase := st.Phase
	if phase == session.Idle && st.Editing {
		phase = session.EditingCategories
	}

	switch phase {
	case session.EditingCategories:
		return r.deleteCategory(ctx, uid, text)
	case session.AwaitingAmount:
		return r.recordAmount(ctx, uid, st, text)
	case session.AwaitingCategoryName:
		return r.acceptCategoryName(uid, text)
	case session.AwaitingCategoryGlyph:
		return r.createCategory(ctx, uid, text)
	default:
		return r.selectCategory(ctx, uid, text)
	}
}

func (r *Resolver) selectCategory(ctx context.Context, uid int64, text string) (Reply, error) {
	cats, err := r.categories(ctx, uid)
	if err != nil {
		return Reply{}, err
	}
	c, ok := core.FindByLabel(cats, text)
	if !ok {
		return Reply{}, errCategoryNotFound
	}
	return r.choose(uid, c), nil
}

func (r *Resolver) choose(uid int64, c core.Category) Reply {
	r.sessions.SetPendingSelection(uid, session.Selection{CategoryID: c.ID, Name: c.Name, Glyph: c.Glyph})
	r.sessions.SetPhase(uid, session.AwaitingAmount)
	return Reply{
		Kind: Prompt,
		Text: fmt.Sprintf("Выбрано: %s %s\n\n📥 Введи сумму расхода:", esc(c.Glyph), bold(c.Name)),
	}
}

func (r *Resolver) deleteCategory(ctx context.Context, uid int64, text string) (Reply, error) {
	cats, err := r.categories(ctx, uid)
	if err != nil {
		return Reply{}, err
	}
	c, ok := core.FindByLabel(cats, text)
	if !ok {
		return Reply{}, errCategoryNotFound
	}

	deleted, err := r.store.SoftDeleteCategory(ctx, uid, c.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("delete category: %w", err)
	}
	if !deleted {
		return Reply{}, errCategoryNotFound
	}
	logger(ctx).InfoContext(ctx, "Category deleted",
		applog.FieldOperation, applog.OpDelete, applog.FieldCategoryID, c.ID, applog.FieldCategory, c.Name)
	r.sessions.SetPhase(uid, session.EditingCategories)

	cats, err = r.categories(ctx, uid)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Kind: Confirmation,
		Text: fmt.Sprintf("🗑️ Категория «%s» удалена!", esc(c.Name)),
		Menu: EditingMenu(cats),
	}, nil
}

func (r *Resolver) recordAmount(ctx context.Context, uid int64, st session.State, text string) (Reply, error) {
	amount, err := core.ParseAmount(text)
	if err != nil {
		// A category button pressed mid-flow switches the pending category.
		cats, lerr := r.categories(ctx, uid)
		if lerr != nil {
			return Reply{}, lerr
		}
		if c, ok := core.FindByLabel(cats, text); ok {
			return r.choose(uid, c), nil
		}
		if errors.Is(err, core.ErrNonPositiveAmount) {
			return Reply{}, &core.ValidationError{Message: "❌ Сумма должна быть больше нуля!", Err: err}
		}
		return Reply{}, &core.ValidationError{Message: "❌ Введи число! Например: 1500 или 299.99", Err: err}
	}

	if st.Pending == nil {
		r.sessions.SetPhase(uid, session.Idle)
		return Reply{}, &core.PreconditionError{Message: "❌ Сначала выбери категорию!"}
	}

	if _, err := r.store.AddExpense(ctx, uid, st.Pending.CategoryID, amount); err != nil {
		return Reply{}, fmt.Errorf("add expense: %w", err)
	}
	logger(ctx).InfoContext(ctx, "Expense recorded", applog.NewFields().
		WithOperation(applog.OpRecord).
		WithExpense(st.Pending.CategoryID, amount.Cents).
		ToSlice()...)
	r.sessions.ClearPendingSelection(uid)
	r.sessions.SetPhase(uid, session.Idle)

	cats, err := r.categories(ctx, uid)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Kind: Confirmation,
		Text: fmt.Sprintf("✅ Расход добавлен!\n%s %s: %s %s",
			esc(st.Pending.Glyph), bold(st.Pending.Name), amount, presentation.Currency),
		Menu: MainMenu(cats),
	}, nil
}

func (r *Resolver) acceptCategoryName(uid int64, text string) (Reply, error) {
	name, err := core.NormalizeCategoryName(text)
	switch {
	case errors.Is(err, core.ErrCategoryNameTooLong):
		return Reply{}, &core.ValidationError{
			Message: fmt.Sprintf("❌ Слишком длинное название (макс %d символов)", core.MaxCategoryNameLen),
			Err:     err,
		}
	case err != nil:
		return Reply{}, &core.ValidationError{Message: "❌ Название не может быть пустым", Err: err}
	}

	r.sessions.SetPartialName(uid, name)
	r.sessions.SetPhase(uid, session.AwaitingCategoryGlyph)
	return Reply{
		Kind: Prompt,
		Text: fmt.Sprintf("📝 Название: %s\n\n"+
			"Теперь отправь эмодзи для категории (или любой символ):\n"+
			"_Пропустить: отправь %s_", bold(name), TokenSkipGlyph),
	}, nil
}

func (r *Resolver) createCategory(ctx context.Context, uid int64, text string) (Reply, error) {
	name, ok := r.sessions.TakePartialName(uid)
	if !ok {
		r.sessions.SetPhase(uid, session.EditingCategories)
		return Reply{}, &core.PreconditionError{Message: "❌ Сначала нажми «➕ Новая категория»"}
	}

	glyph := core.DefaultGlyph
	if text != TokenSkipGlyph {
		glyph = core.NormalizeGlyph(text)
	}

	id, err := r.store.CreateCategory(ctx, uid, name, glyph)
	if err != nil {
		return Reply{}, fmt.Errorf("create category: %w", err)
	}
	logger(ctx).InfoContext(ctx, "Category created",
		applog.FieldOperation, applog.OpCreate, applog.FieldCategoryID, id, applog.FieldCategory, name)
	r.sessions.SetEditingMode(uid, true)
	r.sessions.SetPhase(uid, session.EditingCategories)

	cats, err := r.categories(ctx, uid)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Kind: Confirmation,
		Text: fmt.Sprintf("✅ Категория добавлена!\n%s %s", esc(glyph), bold(name)),
		Menu: EditingMenu(cats),
	}, nil
}

func (r *Resolver) stats(ctx context.Context, uid int64) (Reply, error) {
	cats, err := r.categories(ctx, uid)
	if err != nil {
		return Reply{}, err
	}
	menu := MainMenu(cats)
	if r.sessions.Get(uid).Editing {
		menu = EditingMenu(cats)
	}

	totals, err := r.store.CategoryTotals(ctx, uid, r.windowDays)
	if err != nil {
		return Reply{}, fmt.Errorf("category totals: %w", err)
	}
	logger(ctx).DebugContext(ctx, "Statistics computed", applog.FieldOperation, applog.OpStats, applog.FieldRows, len(totals))
	if len(totals) == 0 {
		return Reply{Kind: Confirmation, Text: presentation.EmptyStatsText(r.windowDays), Menu: menu}, nil
	}

	return Reply{
		Kind:  Confirmation,
		Menu:  menu,
		Stats: &presentation.StatsView{WindowDays: r.windowDays, Totals: totals},
	}, nil
}

func (r *Resolver) export(ctx context.Context, uid int64) (Reply, error) {
	today, err := r.store.TodayTotal(ctx, uid)
	if err != nil {
		return Reply{}, fmt.Errorf("today total: %w", err)
	}
	recent, err := r.store.RecentExpenses(ctx, uid, recentLimit)
	if err != nil {
		return Reply{}, fmt.Errorf("recent expenses: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📤 *Экспорт данных*\n\nСегодня потрачено: *%s %s*", today, presentation.Currency)

	if len(recent) > 0 {
		b.WriteString("\n\nПоследние расходы:")
		loc := r.now().Location()
		for _, e := range recent {
			fmt.Fprintf(&b, "\n• %s %s: %s %s",
				e.CreatedAt.In(loc).Format("02.01 15:04"), esc(e.CategoryLabel), e.Amount, presentation.Currency)
		}
	}

	if r.exporter != nil {
		since := r.now().AddDate(0, 0, -r.windowDays)
		requestID, err := r.exporter.RequestExport(ctx, uid, since)
		if err != nil {
			logger(ctx).WarnContext(ctx, "Export request failed", applog.NewFields().
				WithOperation(applog.OpExport).
				WithError(err).
				WithErrorType(applog.ErrorTypeNetwork).
				ToSlice()...)
			b.WriteString("\n\n⚠️ Не удалось запустить выгрузку в таблицу, попробуй позже.")
		} else {
			logger(ctx).InfoContext(ctx, "Export queued", applog.FieldOperation, applog.OpExport, applog.FieldRequestID, requestID)
			fmt.Fprintf(&b, "\n\n📄 Выгрузка за %d дней поставлена в очередь.", r.windowDays)
		}
	}

	return Reply{Kind: Confirmation, Text: b.String(), Menu: SettingsMenu()}, nil
}

func (r *Resolver) leaveEditing(uid int64) {
	r.sessions.SetEditingMode(uid, false)
	r.sessions.ClearPendingSelection(uid)
	r.sessions.SetPhase(uid, session.Idle)
}

func (r *Resolver) categories(ctx context.Context, uid int64) ([]core.Category, error) {
	cats, err := r.store.ListCategories(ctx, uid, false)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

var errCategoryNotFound = &core.NotFoundError{Message: "Категория не найдена"}

func esc(s string) string {
	return presentation.EscapeMarkdown(s)
}

func bold(s string) string {
	return presentation.Bold(s)
}
