// Package realtime доставляет ленту изменений строк из RabbitMQ в сверку
// состояния доступа и в счётчик непрочитанных уведомлений.
// На каждую компанию открывается ровно одна подписка
// с уникальным именем канала; при смене учётной записи подписка
// закрывается и создаётся заново, а не правится на месте. События
// фильтруются по списку значимых колонок и схлопываются дебаунсом,
// чтобы многострочная транзакция дала один пересчёт.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// ConnState состояние подключения подписки.
type ConnState string

// Возможные состояния подключения.
const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Значимые колонки: изменения остальных колонок пересчёт не запускают.
var watchedColumns = map[string]struct{}{
	"subscription_status": {},
	"trial_end_date":      {},
	"trial_used":          {},
	"plan":                {},
	"status":              {},
	"current_period_end":  {},
}

// Subscriber открывает именованную подписку на события компании.
// Закрытие возвращённой функцией обязательно.
type Subscriber interface {
	Subscribe(ctx context.Context, channelName, routingKey string) (<-chan models.ChangeEvent, func(), error)
}

// Refresher запускает пересчёт состояния доступа.
type Refresher interface {
	Refresh(ctx context.Context, userUID string) (models.Entitlement, error)
}

// BadgeCache сбрасывает кешированный счётчик непрочитанных уведомлений
// компании, когда в её ленте появилось событие по таблице notifications.
type BadgeCache interface {
	InvalidateUnread(userUID string)
}

// Listener ведёт подписки на ленту изменений по компаниям.
type Listener struct {
	log       *slog.Logger
	sub       Subscriber
	refresher Refresher
	badges    BadgeCache

	debounce   time.Duration
	drainDelay time.Duration
	retryDelay time.Duration

	mu      sync.Mutex
	handles map[string]*Handle
}

// Handle открытая подписка одной компании.
type Handle struct {
	principal string
	channel   string

	mu     sync.Mutex
	state  ConnState
	cancel context.CancelFunc
	closer func()
	once   sync.Once
}

// Principal возвращает идентификатор компании подписки.
func (h *Handle) Principal() string { return h.principal }

// Channel возвращает уникальное имя канала подписки.
func (h *Handle) Channel() string { return h.channel }

// State возвращает состояние подключения.
func (h *Handle) State() ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s ConnState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Close закрывает подписку. Повторные вызовы безопасны.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.setState(StateDisconnected)
		if h.cancel != nil {
			h.cancel()
		}
		if h.closer != nil {
			h.closer()
		}
	})
}

// New создаёт слушатель ленты изменений. badges может быть nil, тогда
// события по уведомлениям игнорируются.
func New(log *slog.Logger, sub Subscriber, refresher Refresher, badges BadgeCache) *Listener {
	return &Listener{
		log:        log,
		sub:        sub,
		refresher:  refresher,
		badges:     badges,
		debounce:   1500 * time.Millisecond,
		drainDelay: 250 * time.Millisecond,
		retryDelay: 3 * time.Second,
		handles:    make(map[string]*Handle),
	}
}

// channelName собирает уникальное имя канала: идентификатор компании,
// unix-наносекунды и случайный суффикс, чтобы быстрый переоткрыв не
// столкнулся с ещё не разобранной старой подпиской.
func channelName(principalID string, now time.Time) string {
	return fmt.Sprintf("changes.%s.%d.%s", principalID, now.UnixNano(), uuid.NewString()[:8])
}

// Open открывает подписку компании. Уже открытая подписка той же
// компании сначала закрывается, затем выдерживается пауза на дренаж
// старого канала. Неудачная попытка подключения повторяется ровно один
// раз после задержки.
func (l *Listener) Open(ctx context.Context, principalID string) (*Handle, error) {
	const op = "realtime.Open"

	l.mu.Lock()
	old, ok := l.handles[principalID]
	delete(l.handles, principalID)
	l.mu.Unlock()

	if ok {
		old.Close()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(l.drainDelay):
		}
	}

	name := channelName(principalID, time.Now())
	subCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		principal: principalID,
		channel:   name,
		state:     StateConnecting,
		cancel:    cancel,
	}

	events, closer, err := l.sub.Subscribe(subCtx, name, principalID)
	if err != nil {
		// Ровно одна отложенная повторная попытка.
		l.log.Warn("subscribe failed, retrying once",
			slog.String("channel", name), sl.Err(err))
		select {
		case <-ctx.Done():
			cancel()
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(l.retryDelay):
		}
		events, closer, err = l.sub.Subscribe(subCtx, name, principalID)
		if err != nil {
			cancel()
			h.setState(StateDisconnected)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	h.closer = closer
	h.setState(StateConnected)

	l.mu.Lock()
	l.handles[principalID] = h
	l.mu.Unlock()

	go l.run(subCtx, h, events)

	l.log.Info("realtime subscription opened",
		slog.String("uid", principalID), slog.String("channel", name))
	return h, nil
}

// run читает события подписки, фильтрует их по значимым колонкам и
// запускает пересчёт после паузы дебаунса.
func (l *Listener) run(ctx context.Context, h *Handle, events <-chan models.ChangeEvent) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			h.setState(StateDisconnected)
			return
		case ev, ok := <-events:
			if !ok {
				h.setState(StateDisconnected)
				return
			}
			if ev.Table == "notifications" {
				// Событие по уведомлениям пересчёт доступа не
				// запускает, но роняет кеш счётчика непрочитанных.
				if l.badges != nil {
					l.badges.InvalidateUnread(h.principal)
				}
				continue
			}
			if !relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(l.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-fire
				}
				timer.Reset(l.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			if _, err := l.refresher.Refresh(ctx, h.principal); err != nil {
				l.log.Warn("refresh after change event failed",
					slog.String("uid", h.principal), sl.Err(err))
			}
		}
	}
}

func relevant(ev models.ChangeEvent) bool {
	switch ev.Table {
	case "users", "subscriptions", "payment_history":
	default:
		return false
	}
	if len(ev.Columns) == 0 {
		// Событие без списка колонок (например, вставка или удаление
		// строки) всегда значимо.
		return true
	}
	for _, col := range ev.Columns {
		if _, ok := watchedColumns[col]; ok {
			return true
		}
	}
	return false
}

// CloseAll закрывает все открытые подписки.
func (l *Listener) CloseAll() {
	l.mu.Lock()
	handles := make([]*Handle, 0, len(l.handles))
	for _, h := range l.handles {
		handles = append(handles, h)
	}
	l.handles = make(map[string]*Handle)
	l.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

// Close закрывает подписку компании, если она открыта.
func (l *Listener) Close(principalID string) {
	l.mu.Lock()
	h, ok := l.handles[principalID]
	delete(l.handles, principalID)
	l.mu.Unlock()
	if ok {
		h.Close()
	}
}
