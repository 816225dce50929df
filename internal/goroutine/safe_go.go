package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/workchain-backend/internal/logger"
)

// SafeGo запускает горутину с обработкой panic. Паника фонового
// обработчика (рассылка событий, запись уведомления) не должна ронять
// процесс, обслуживающий сделки.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		logger.WithModule("goroutine").Errorf("panic в горутине: %v\n%s", r, debug.Stack())
	}
}
