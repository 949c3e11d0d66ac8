// Package session управляет жизненным циклом пользовательских сессий:
// регистрация и вход, учёт активности с троттлингом записи, окно
// предупреждения перед таймаутом бездействия, периодическая перепроверка
// и выход ровно один раз. Отметка активности и отпечаток токена
// персистятся в Redis и переживают рестарт процесса.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/review-hub/internal/config"
	"github.com/magabrotheeeer/review-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/review-hub/internal/lib/online"
	"github.com/magabrotheeeer/review-hub/internal/lib/password"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/metrics"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// State состояние сессии.
type State string

// Возможные состояния сессии.
const (
	StateUnauthenticated State = "unauthenticated"
	StateChecking        State = "checking"
	StateValid           State = "valid"
	StateWarning         State = "warning"
	StateExpired         State = "expired"
)

// Отпечаток — первые десять символов токена доступа. Этого достаточно,
// чтобы заметить подмену токена, не храня сам токен.
const fingerprintLen = 10

// Запись отметки активности троттлится, чтобы не дёргать Redis на
// каждый запрос.
const commitThrottle = 30 * time.Second

// UserRepository операции с учётными записями, нужные сессиям.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// MarkerStore персистентное хранилище отметок активности и отпечатков.
type MarkerStore interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Ключи персистентных маркеров сессии.
func activityKey(userUID string) string    { return "lastActivity:" + userUID }
func fingerprintKey(userUID string) string { return "fingerprint:" + userUID }

// Fingerprint возвращает отпечаток токена доступа.
func Fingerprint(token string) string {
	if len(token) <= fingerprintLen {
		return token
	}
	return token[:fingerprintLen]
}

// Manager ведёт состояние сессий всех пользователей процесса.
type Manager struct {
	log     *slog.Logger
	users   UserRepository
	maker   jwt.Maker
	markers MarkerStore
	checker online.Checker
	cfg     config.Session

	// OnExpire вызывается после завершения сессии по таймауту.
	OnExpire func(userUID string)

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	lastActivity time.Time
	lastCommit   time.Time
	cancel       context.CancelFunc
	signOut      sync.Once
}

// New создаёт менеджер сессий.
func New(log *slog.Logger, users UserRepository, maker jwt.Maker,
	markers MarkerStore, checker online.Checker, cfg config.Session) *Manager {
	if checker == nil {
		checker = online.Always{}
	}
	return &Manager{
		log:      log,
		users:    users,
		maker:    maker,
		markers:  markers,
		checker:  checker,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Register создаёт учётную запись компании с четырнадцатидневным пробным
// периодом и возвращает её идентификатор.
func (m *Manager) Register(ctx context.Context, req models.DummyRegister) (string, error) {
	const op = "services.session.Register"

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	trialEnd := m.now().Add(14 * 24 * time.Hour)
	user := models.User{
		Email:              req.Email,
		Username:           req.Username,
		CompanyName:        req.CompanyName,
		PasswordHash:       hash,
		Role:               models.RoleUser,
		TrialEndDate:       &trialEnd,
		SubscriptionStatus: models.StatusTrial,
	}

	uid, err := m.users.RegisterUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// Login проверяет учётные данные, выпускает токен и открывает сессию.
func (m *Manager) Login(ctx context.Context, req models.DummyLogin) (string, error) {
	const op = "services.session.Login"

	user, err := m.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := m.maker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	m.open(user.UID, token)
	return token, nil
}

// open запускает сессию: фиксирует активность, персистит отметку и
// отпечаток. Повторный вход того же пользователя закрывает старую сессию.
func (m *Manager) open(userUID, token string) {
	now := m.now()

	m.mu.Lock()
	if old, ok := m.sessions[userUID]; ok && old.cancel != nil {
		old.cancel()
	}
	s := &session{lastActivity: now, lastCommit: now}
	m.sessions[userUID] = s
	m.mu.Unlock()

	m.commitMarkers(userUID, now, token)
}

func (m *Manager) commitMarkers(userUID string, at time.Time, token string) {
	if err := m.markers.Set(activityKey(userUID), at, m.cfg.Timeout); err != nil {
		m.log.Warn("failed to persist activity marker", sl.Err(err))
	}
	if token != "" {
		if err := m.markers.Set(fingerprintKey(userUID), Fingerprint(token), m.cfg.Timeout); err != nil {
			m.log.Warn("failed to persist session fingerprint", sl.Err(err))
		}
	}
}

// Touch фиксирует активность пользователя. Отметка в памяти двигается
// на каждый вызов, персистентная — не чаще чем раз в тридцать секунд.
func (m *Manager) Touch(userUID string) {
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[userUID]
	if !ok {
		m.mu.Unlock()
		return
	}
	s.lastActivity = now
	commit := now.Sub(s.lastCommit) >= commitThrottle
	if commit {
		s.lastCommit = now
	}
	m.mu.Unlock()

	if commit {
		m.commitMarkers(userUID, now, "")
	}
}

// State возвращает текущее состояние сессии по таймауту бездействия.
// Потолок полного отсутствия активности здесь не применяется: он
// относится к возвращению после отлучки и проверяется только в Resume.
func (m *Manager) State(userUID string) State {
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[userUID]
	if !ok {
		m.mu.Unlock()
		return StateUnauthenticated
	}
	idle := now.Sub(s.lastActivity)
	m.mu.Unlock()

	switch {
	case idle >= m.cfg.Timeout:
		return StateExpired
	case idle >= m.cfg.Timeout-m.cfg.WarningWindow:
		return StateWarning
	default:
		return StateValid
	}
}

// Resume перепроверяет сессию после возвращения пользователя. Сессия,
// которой нет в памяти, сначала восстанавливается из персистентной
// отметки активности: так вход переживает рестарт процесса. Полное
// отсутствие активности дольше потолка бездействия завершает сессию
// сразу. Расхождение отпечатка с живым валидным токеном — не повод для
// выхода: отпечаток перезаписывается, активность обновляется.
func (m *Manager) Resume(ctx context.Context, userUID, token string) (State, error) {
	const op = "services.session.Resume"

	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[userUID]
	m.mu.Unlock()
	if !ok {
		s, ok = m.restore(userUID)
		if !ok {
			return StateUnauthenticated, nil
		}
	}

	m.mu.Lock()
	idle := now.Sub(s.lastActivity)
	m.mu.Unlock()

	if idle >= m.cfg.IdleCeiling {
		m.expire(ctx, userUID)
		return StateExpired, nil
	}

	claims, err := m.maker.ParseToken(token)
	if err != nil || claims.UserUID != userUID {
		m.expire(ctx, userUID)
		return StateExpired, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	var stored string
	found, err := m.markers.Get(fingerprintKey(userUID), &stored)
	if err != nil {
		m.log.Warn("failed to load session fingerprint", sl.Err(err))
	}
	if !found || stored != Fingerprint(token) {
		// Токен валиден, расходится только отпечаток: пересинхронизация.
		m.log.Info("session fingerprint resynced", slog.String("uid", userUID))
		m.commitMarkers(userUID, now, token)
	}

	m.Touch(userUID)
	return m.State(userUID), nil
}

// restore восстанавливает сессию из персистентной отметки активности.
// После рестарта процесса карта сессий пуста, но отметка и отпечаток
// переживают его в Redis; дальнейшие проверки потолка бездействия и
// токена идут по восстановленной отметке.
func (m *Manager) restore(userUID string) (*session, bool) {
	var last time.Time
	found, err := m.markers.Get(activityKey(userUID), &last)
	if err != nil {
		m.log.Warn("failed to load activity marker", sl.Err(err))
	}
	if !found {
		return nil, false
	}

	m.log.Info("session restored from persisted markers", slog.String("uid", userUID))

	s := &session{lastActivity: last, lastCommit: last}
	m.mu.Lock()
	m.sessions[userUID] = s
	m.mu.Unlock()
	return s, true
}

// SignOut завершает сессию. Локальная очистка выполняется безусловно и
// ровно один раз, даже если хранилище маркеров недоступно.
func (m *Manager) SignOut(ctx context.Context, userUID string) {
	m.mu.Lock()
	s, ok := m.sessions[userUID]
	m.mu.Unlock()
	if !ok {
		return
	}

	s.signOut.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		m.mu.Lock()
		delete(m.sessions, userUID)
		m.mu.Unlock()

		if err := m.markers.Invalidate(activityKey(userUID)); err != nil {
			m.log.Warn("failed to clear activity marker", sl.Err(err))
		}
		if err := m.markers.Invalidate(fingerprintKey(userUID)); err != nil {
			m.log.Warn("failed to clear session fingerprint", sl.Err(err))
		}
	})
}

func (m *Manager) expire(ctx context.Context, userUID string) {
	m.mu.Lock()
	_, ok := m.sessions[userUID]
	m.mu.Unlock()
	if !ok {
		return
	}

	metrics.SessionsExpired.Inc()
	m.log.Info("session expired by idle timeout", slog.String("uid", userUID))
	m.SignOut(ctx, userUID)
	if m.OnExpire != nil {
		m.OnExpire(userUID)
	}
}

// RunRevalidation периодически перепроверяет сессию, пока не отменён
// контекст. В офлайне проход пропускается. Контекст тикера снимается
// при выходе пользователя.
func (m *Manager) RunRevalidation(ctx context.Context, userUID string) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if s, ok := m.sessions[userUID]; ok {
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel = cancel
	} else {
		m.mu.Unlock()
		cancel()
		return
	}
	m.mu.Unlock()

	ticker := time.NewTicker(m.cfg.RevalidateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.checker.Online() {
				continue
			}
			if m.State(userUID) == StateExpired {
				m.expire(ctx, userUID)
				return
			}
		}
	}
}
