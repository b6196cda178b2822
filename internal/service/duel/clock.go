package duel

import "time"

// Timer - отложенный вызов, который можно отменить
type Timer interface {
	Stop() bool
}

// Clock абстрагирует время, чтобы тесты управляли таймерами вручную
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock возвращает часы на основе пакета time
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
