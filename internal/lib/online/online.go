// Package online отслеживает доступность сети для сервисов, которым нужно
// пропускать фоновые сетевые операции в офлайне вместо того, чтобы считать
// их ошибками. Флаг переключается транспортным слоем (слушателем изменений)
// при потере и восстановлении соединения.
package online

import "sync/atomic"

// Checker сообщает, доступна ли сеть в данный момент.
type Checker interface {
	Online() bool
}

// Flag атомарный признак доступности сети. Нулевое значение — офлайн,
// поэтому новый флаг нужно явно перевести в онлайн.
type Flag struct {
	v atomic.Bool
}

// NewFlag создаёт флаг в состоянии онлайн.
func NewFlag() *Flag {
	f := &Flag{}
	f.v.Store(true)
	return f
}

// Online возвращает текущее состояние.
func (f *Flag) Online() bool { return f.v.Load() }

// Set переключает состояние.
func (f *Flag) Set(online bool) { f.v.Store(online) }

// Always всегда сообщает онлайн. Удобно по умолчанию и в тестах.
type Always struct{}

// Online всегда возвращает true.
func (Always) Online() bool { return true }
