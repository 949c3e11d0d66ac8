// Package retry реализует общий помощник повторных попыток с экспоненциальной
// задержкой. Используется при сетевых операциях сверки состояния доступа:
// количество попыток ограничено, базовая задержка удваивается после каждой
// неудачи. Отсутствие сети — явное предусловие, а не исключение: при офлайне
// помощник немедленно возвращает ErrOffline, не трогая счётчик попыток.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrOffline возвращается, когда клиент офлайн и сетевых вызовов не было.
var ErrOffline = errors.New("client is offline")

// Config параметры повторных попыток.
type Config struct {
	Attempts  int                                 // Максимальное количество попыток
	BaseDelay time.Duration                       // Задержка перед второй попыткой
	Backoff   func(time.Duration) time.Duration   // Функция роста задержки, по умолчанию удвоение
}

// DefaultConfig возвращает параметры по умолчанию: 3 попытки, база 500 мс.
func DefaultConfig() Config {
	return Config{Attempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Do выполняет fn с повторными попытками. online проверяется перед первой
// попыткой и перед каждой повторной; nil означает «всегда онлайн».
// После исчерпания попыток возвращается последняя ошибка, обёрнутая
// количеством попыток.
func Do(ctx context.Context, cfg Config, online func() bool, fn func(ctx context.Context) error) error {
	const op = "retry.Do"
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = func(d time.Duration) time.Duration { return d * 2 }
	}

	if online != nil && !online() {
		return ErrOffline
	}

	var err error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
		delay = backoff(delay)

		if online != nil && !online() {
			return ErrOffline
		}
	}
	return fmt.Errorf("%s: %d attempts failed: %w", op, cfg.Attempts, err)
}
