package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/review-hub/internal/config"
	"github.com/magabrotheeeer/review-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/review-hub/internal/lib/password"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}
func (m *UserRepoMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MarkerMock struct{ mock.Mock }

func (m *MarkerMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *MarkerMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *MarkerMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testSessionConfig() config.Session {
	return config.Session{
		Timeout:            4 * time.Hour,
		WarningWindow:      10 * time.Minute,
		IdleCeiling:        30 * time.Minute,
		RevalidateInterval: 5 * time.Minute,
	}
}

func newTestManager(t *testing.T, users *UserRepoMock, markers *MarkerMock) (*Manager, *time.Time) {
	t.Helper()
	current := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	maker := jwt.NewJWTMaker("test-secret", 24*time.Hour)
	m := New(newNoopLogger(), users, maker, markers, nil, testSessionConfig())
	m.now = func() time.Time { return current }
	return m, &current
}

func registeredUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := password.GetHash("secret-password")
	require.NoError(t, err)
	return &models.User{
		UID:          "u1",
		Username:     "acme",
		Role:         models.RoleUser,
		PasswordHash: hash,
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		pass    string
		wantErr error
	}{
		{name: "успешный вход открывает сессию", pass: "secret-password"},
		{name: "неверный пароль", pass: "wrong", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserRepoMock)
			markers := new(MarkerMock)
			m, _ := newTestManager(t, users, markers)

			users.On("GetUserByUsername", mock.Anything, "acme").Return(registeredUser(t), nil).Once()
			markers.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			token, err := m.Login(context.Background(), models.DummyLogin{
				Username: "acme", Password: tt.pass,
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, StateUnauthenticated, m.State("u1"))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, StateValid, m.State("u1"))
			markers.AssertCalled(t, "Set", "lastActivity:u1", mock.Anything, mock.Anything)
			markers.AssertCalled(t, "Set", "fingerprint:u1", Fingerprint(token), mock.Anything)
		})
	}
}

func login(t *testing.T, m *Manager, users *UserRepoMock, markers *MarkerMock) string {
	t.Helper()
	users.On("GetUserByUsername", mock.Anything, "acme").Return(registeredUser(t), nil).Once()
	markers.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	token, err := m.Login(context.Background(), models.DummyLogin{
		Username: "acme", Password: "secret-password",
	})
	require.NoError(t, err)
	return token
}

func TestTouch_ThrottlesPersistedCommits(t *testing.T) {
	users := new(UserRepoMock)
	markers := new(MarkerMock)
	m, current := newTestManager(t, users, markers)
	login(t, m, users, markers)

	activitySets := func() int {
		n := 0
		for _, call := range markers.Calls {
			if call.Method == "Set" && call.Arguments.String(0) == "lastActivity:u1" {
				n++
			}
		}
		return n
	}
	base := activitySets()

	// Частые касания внутри окна троттлинга не пишут в хранилище.
	*current = current.Add(5 * time.Second)
	m.Touch("u1")
	*current = current.Add(5 * time.Second)
	m.Touch("u1")
	assert.Equal(t, base, activitySets())

	// Первое касание после окна — пишет.
	*current = current.Add(25 * time.Second)
	m.Touch("u1")
	assert.Equal(t, base+1, activitySets())
}

func TestState_Transitions(t *testing.T) {
	users := new(UserRepoMock)
	markers := new(MarkerMock)
	m, current := newTestManager(t, users, markers)
	login(t, m, users, markers)

	assert.Equal(t, StateValid, m.State("u1"))

	*current = current.Add(3*time.Hour + 51*time.Minute)
	assert.Equal(t, StateWarning, m.State("u1"))

	*current = current.Add(9 * time.Minute)
	assert.Equal(t, StateExpired, m.State("u1"))
}

func TestTouch_ResetsWarning(t *testing.T) {
	users := new(UserRepoMock)
	markers := new(MarkerMock)
	m, current := newTestManager(t, users, markers)
	login(t, m, users, markers)

	*current = current.Add(3*time.Hour + 55*time.Minute)
	require.Equal(t, StateWarning, m.State("u1"))

	m.Touch("u1")
	assert.Equal(t, StateValid, m.State("u1"))
}

func TestResume(t *testing.T) {
	t.Run("возвращение после потолка бездействия завершает сессию", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, current := newTestManager(t, users, markers)
		token := login(t, m, users, markers)
		markers.On("Invalidate", mock.Anything).Return(nil)

		*current = current.Add(31 * time.Minute)
		state, err := m.Resume(context.Background(), "u1", token)
		require.NoError(t, err)
		assert.Equal(t, StateExpired, state)
		assert.Equal(t, StateUnauthenticated, m.State("u1"))
		markers.AssertCalled(t, "Invalidate", "lastActivity:u1")
	})

	t.Run("расхождение отпечатка с валидным токеном пересинхронизируется", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, current := newTestManager(t, users, markers)
		token := login(t, m, users, markers)

		markers.On("Get", "fingerprint:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*string) = "stale-prin"
		}).Return(true, nil).Once()

		*current = current.Add(10 * time.Minute)
		state, err := m.Resume(context.Background(), "u1", token)
		require.NoError(t, err)
		assert.Equal(t, StateValid, state)
		markers.AssertCalled(t, "Set", "fingerprint:u1", Fingerprint(token), mock.Anything)
	})

	t.Run("сессия восстанавливается из маркеров после рестарта процесса", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, current := newTestManager(t, users, markers)

		maker := jwt.NewJWTMaker("test-secret", 24*time.Hour)
		token, err := maker.GenerateToken("acme", models.RoleUser, "u1")
		require.NoError(t, err)

		// Новый процесс: карта сессий пуста, маркеры пережили рестарт.
		require.Equal(t, StateUnauthenticated, m.State("u1"))

		last := current.Add(-10 * time.Minute)
		markers.On("Get", "lastActivity:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*time.Time) = last
		}).Return(true, nil).Once()
		markers.On("Get", "fingerprint:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*string) = Fingerprint(token)
		}).Return(true, nil).Once()
		markers.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		state, err := m.Resume(context.Background(), "u1", token)
		require.NoError(t, err)
		assert.Equal(t, StateValid, state)
		assert.Equal(t, StateValid, m.State("u1"))
	})

	t.Run("восстановленная сессия старше потолка бездействия завершается", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, current := newTestManager(t, users, markers)

		maker := jwt.NewJWTMaker("test-secret", 24*time.Hour)
		token, err := maker.GenerateToken("acme", models.RoleUser, "u1")
		require.NoError(t, err)

		last := current.Add(-31 * time.Minute)
		markers.On("Get", "lastActivity:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*time.Time) = last
		}).Return(true, nil).Once()
		markers.On("Invalidate", mock.Anything).Return(nil)

		state, err := m.Resume(context.Background(), "u1", token)
		require.NoError(t, err)
		assert.Equal(t, StateExpired, state)
		assert.Equal(t, StateUnauthenticated, m.State("u1"))
		markers.AssertCalled(t, "Invalidate", "lastActivity:u1")
	})

	t.Run("без сессии и без маркера возвращается unauthenticated", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, _ := newTestManager(t, users, markers)

		markers.On("Get", "lastActivity:u1", mock.Anything).Return(false, nil).Once()

		state, err := m.Resume(context.Background(), "u1", "any-token")
		require.NoError(t, err)
		assert.Equal(t, StateUnauthenticated, state)
	})

	t.Run("невалидный токен завершает сессию", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, current := newTestManager(t, users, markers)
		login(t, m, users, markers)
		markers.On("Invalidate", mock.Anything).Return(nil)

		*current = current.Add(10 * time.Minute)
		state, err := m.Resume(context.Background(), "u1", "not-a-token")
		require.Error(t, err)
		assert.Equal(t, StateExpired, state)
	})
}

func TestIdleCeiling_AppliesOnlyOnResume(t *testing.T) {
	users := new(UserRepoMock)
	markers := new(MarkerMock)
	m, current := newTestManager(t, users, markers)
	token := login(t, m, users, markers)
	markers.On("Invalidate", mock.Anything).Return(nil)

	// Час без касаний: внутри приложения сессия жива по таймауту
	// бездействия, но возвращение после такой отлучки завершает её
	// по потолку полного отсутствия активности.
	*current = current.Add(time.Hour)
	assert.Equal(t, StateValid, m.State("u1"))

	state, err := m.Resume(context.Background(), "u1", token)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, state)
	assert.Equal(t, StateUnauthenticated, m.State("u1"))
}

func TestSignOut(t *testing.T) {
	t.Run("очистка выполняется даже при ошибке хранилища", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, _ := newTestManager(t, users, markers)
		login(t, m, users, markers)

		markers.On("Invalidate", mock.Anything).Return(errors.New("redis down"))

		m.SignOut(context.Background(), "u1")
		assert.Equal(t, StateUnauthenticated, m.State("u1"))
	})

	t.Run("повторный выход ничего не делает", func(t *testing.T) {
		users := new(UserRepoMock)
		markers := new(MarkerMock)
		m, _ := newTestManager(t, users, markers)
		login(t, m, users, markers)

		markers.On("Invalidate", mock.Anything).Return(nil)

		m.SignOut(context.Background(), "u1")
		m.SignOut(context.Background(), "u1")

		invalidates := 0
		for _, call := range markers.Calls {
			if call.Method == "Invalidate" {
				invalidates++
			}
		}
		assert.Equal(t, 2, invalidates)
	})
}

func TestRegister(t *testing.T) {
	users := new(UserRepoMock)
	markers := new(MarkerMock)
	m, current := newTestManager(t, users, markers)

	users.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.Username == "acme" &&
			u.SubscriptionStatus == models.StatusTrial &&
			u.TrialEndDate != nil &&
			u.TrialEndDate.Equal(current.Add(14*24*time.Hour))
	})).Return("u1", nil).Once()

	uid, err := m.Register(context.Background(), models.DummyRegister{
		Email: "acme@example.com", Username: "acme",
		CompanyName: "Acme", Password: "secret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}
