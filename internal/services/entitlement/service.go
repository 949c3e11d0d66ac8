// Package entitlement реализует сверку состояния доступа компании.
// Состояние всегда пересчитывается целиком из профиля пользователя и
// записи подписки, заменяется атомарно и дублируется снапшотом в Redis,
// чтобы после рестарта показать последнее известное состояние до первой
// сетевой сверки.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/review-hub/internal/lib/online"
	"github.com/magabrotheeeer/review-hub/internal/lib/retry"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/metrics"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// ProfileRepository читает и чинит профиль пользователя.
type ProfileRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	MarkTrialEnded(ctx context.Context, userUID string) error
}

// SubscriptionRepository читает запись подписки пользователя.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
}

// SnapshotStore хранит снапшот состояния доступа между запусками.
type SnapshotStore interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

const snapshotTTL = 30 * 24 * time.Hour

// SnapshotKey возвращает ключ снапшота состояния доступа пользователя.
func SnapshotKey(userUID string) string {
	return "subscription_state:" + userUID
}

// Service сверяет состояние доступа с базой и кеширует результат.
// Повторные запросы в пределах окна кулдауна отдают последнее известное
// состояние без похода в базу.
type Service struct {
	profiles  ProfileRepository
	subs      SubscriptionRepository
	snapshots SnapshotStore
	checker   online.Checker
	log       *slog.Logger

	cooldown time.Duration
	retryCfg retry.Config
	now      func() time.Time

	mu     sync.Mutex
	states map[string]*principalState
}

type principalState struct {
	lastRefresh time.Time
	loading     bool
	known       *models.Entitlement
}

// New создаёт сервис сверки состояния доступа.
func New(log *slog.Logger, profiles ProfileRepository, subs SubscriptionRepository,
	snapshots SnapshotStore, checker online.Checker, cooldown time.Duration) *Service {
	if checker == nil {
		checker = online.Always{}
	}
	return &Service{
		profiles:  profiles,
		subs:      subs,
		snapshots: snapshots,
		checker:   checker,
		log:       log,
		cooldown:  cooldown,
		retryCfg:  retry.DefaultConfig(),
		now:       time.Now,
		states:    make(map[string]*principalState),
	}
}

// Refresh сверяет состояние доступа пользователя. Запрос, пришедший
// раньше окончания кулдауна после предыдущей сверки, возвращает
// последний результат без сетевого вызова. В офлайне сверка сразу
// завершается retry.ErrOffline.
func (s *Service) Refresh(ctx context.Context, userUID string) (models.Entitlement, error) {
	const op = "services.entitlement.Refresh"

	now := s.now()

	s.mu.Lock()
	st, ok := s.states[userUID]
	if !ok {
		st = &principalState{}
		s.states[userUID] = st
	}
	if st.known != nil && (st.loading || now.Sub(st.lastRefresh) < s.cooldown) {
		known := *st.known
		s.mu.Unlock()
		metrics.EntitlementRefreshes.WithLabelValues("cooldown").Inc()
		return known, nil
	}
	st.loading = true
	s.mu.Unlock()

	ent, err := s.fetch(ctx, userUID)

	s.mu.Lock()
	st.loading = false
	if err == nil {
		st.lastRefresh = s.now()
		st.known = &ent
	}
	var known *models.Entitlement
	if st.known != nil {
		cp := *st.known
		known = &cp
	}
	s.mu.Unlock()

	if err != nil {
		metrics.EntitlementRefreshes.WithLabelValues("error").Inc()
		if known != nil {
			// Сверка не удалась, но прежнее состояние остаётся в силе.
			return *known, fmt.Errorf("%s: %w", op, err)
		}
		return models.Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.EntitlementRefreshes.WithLabelValues("ok").Inc()
	return ent, nil
}

// fetch выполняет полный пересчёт: читает профиль и подписку с повторными
// попытками, применяет правила слияния, чинит просроченный пробный период
// и сохраняет снапшот.
func (s *Service) fetch(ctx context.Context, userUID string) (models.Entitlement, error) {
	const op = "services.entitlement.fetch"

	var user *models.User
	var sub *models.Subscription

	err := retry.Do(ctx, s.retryCfg, s.checker.Online, func(ctx context.Context) error {
		var err error
		user, err = s.profiles.GetUser(ctx, userUID)
		if err != nil {
			return err
		}
		sub, err = s.subs.GetSubscription(ctx, userUID)
		return err
	})
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	ent := Resolve(user, sub, now)

	if needsTrialHeal(user, now) {
		// Запись чинится в фоне: результат сверки от неё не зависит.
		go s.healTrial(userUID)
	}

	if s.snapshots != nil {
		if err := s.snapshots.Set(SnapshotKey(userUID), ent, snapshotTTL); err != nil {
			s.log.Warn("failed to save entitlement snapshot", sl.Err(err))
		}
	}

	return ent, nil
}

func (s *Service) healTrial(userUID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.profiles.MarkTrialEnded(ctx, userUID); err != nil {
		s.log.Warn("failed to mark trial as ended", slog.String("uid", userUID), sl.Err(err))
	}
}

// Get возвращает последнее известное состояние доступа. Если в памяти
// процесса его нет, пытается восстановить снапшот из Redis; если нет и
// снапшота, выполняет полную сверку.
func (s *Service) Get(ctx context.Context, userUID string) (models.Entitlement, error) {
	s.mu.Lock()
	if st, ok := s.states[userUID]; ok && st.known != nil {
		known := *st.known
		s.mu.Unlock()
		return known, nil
	}
	s.mu.Unlock()

	if s.snapshots != nil {
		var ent models.Entitlement
		found, err := s.snapshots.Get(SnapshotKey(userUID), &ent)
		if err != nil {
			s.log.Warn("failed to load entitlement snapshot", sl.Err(err))
		}
		if found {
			s.mu.Lock()
			st, ok := s.states[userUID]
			if !ok {
				st = &principalState{}
				s.states[userUID] = st
			}
			if st.known == nil {
				st.known = &ent
			}
			s.mu.Unlock()
			return ent, nil
		}
	}

	return s.Refresh(ctx, userUID)
}

// Invalidate сбрасывает состояние в памяти и снапшот. Вызывается при
// выходе пользователя и при смене учётной записи.
func (s *Service) Invalidate(userUID string) {
	s.mu.Lock()
	delete(s.states, userUID)
	s.mu.Unlock()
	if s.snapshots != nil {
		if err := s.snapshots.Invalidate(SnapshotKey(userUID)); err != nil {
			s.log.Warn("failed to invalidate entitlement snapshot", sl.Err(err))
		}
	}
}

// GuardCheckout проверяет, можно ли начинать оплату выбранного тарифа.
// Проверка всегда идёт по свежим данным, минуя кулдаун и кеш: при
// активной оплаченной подписке на тот же тариф возвращается
// CheckoutError с кодом SAME_PLAN_SELECTED. Действующий пробный период
// покупке не мешает.
func (s *Service) GuardCheckout(ctx context.Context, userUID string, plan models.Plan) error {
	const op = "services.entitlement.GuardCheckout"

	ent, err := s.fetch(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if ent.Source == models.SourceSubscription && ent.IsActive() && ent.Plan == plan {
		metrics.CheckoutBlocked.WithLabelValues(CodeSamePlanSelected).Inc()
		return &CheckoutError{Code: CodeSamePlanSelected, CurrentPlan: ent.Plan}
	}
	return nil
}

// RunPeriodicRefresh периодически сверяет состояние доступа пользователя,
// пока не отменён контекст. В офлайне проход пропускается без ошибки.
func (s *Service) RunPeriodicRefresh(ctx context.Context, userUID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.checker.Online() {
				continue
			}
			if _, err := s.Refresh(ctx, userUID); err != nil {
				s.log.Warn("periodic entitlement refresh failed",
					slog.String("uid", userUID), sl.Err(err))
			}
		}
	}
}
