package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/chain"
)

// Ledger — детерминированная реализация chain.Ledger без сети.
// Ссылка на транзакцию вычисляется из аргументов вызова, поэтому повтор
// того же вызова возвращает ту же ссылку. Используется в тестах и в
// development-окружении.
type Ledger struct {
	mu         sync.Mutex
	calls      []string
	failNext   error
	alwaysFail error
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// NewFailingLedger возвращает леджер, у которого каждый вызов завершается err.
func NewFailingLedger(err error) *Ledger {
	return &Ledger{alwaysFail: err}
}

// FailWith заставляет следующий вызов вернуть указанную ошибку.
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Calls возвращает копию журнала вызовов.
func (l *Ledger) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *Ledger) call(op string, parts ...string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.alwaysFail != nil {
		return "", l.alwaysFail
	}
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return "", err
	}
	key := op
	for _, p := range parts {
		key += "|" + p
	}
	l.calls = append(l.calls, key)
	sum := sha256.Sum256([]byte(key))
	return "0x" + hex.EncodeToString(sum[:]), nil
}

func (l *Ledger) Lock(_ context.Context, jobID uuid.UUID, payer string, amount decimal.Decimal) (string, error) {
	return l.call("lock", jobID.String(), payer, amount.String())
}

func (l *Ledger) Release(_ context.Context, jobID uuid.UUID, recipient string, amount decimal.Decimal) (string, error) {
	return l.call("release", jobID.String(), recipient, amount.String())
}

func (l *Ledger) Refund(_ context.Context, jobID uuid.UUID, recipient string, amount decimal.Decimal) (string, error) {
	return l.call("refund", jobID.String(), recipient, amount.String())
}

func (l *Ledger) SplitRelease(_ context.Context, jobID uuid.UUID, worker, employer string, workerShare, employerShare decimal.Decimal) (string, error) {
	return l.call("split", jobID.String(), worker, employer, workerShare.String(), employerShare.String())
}

func (l *Ledger) Deposit(_ context.Context, address string, amount decimal.Decimal) (string, error) {
	return l.call("deposit", address, amount.String())
}

func (l *Ledger) Withdraw(_ context.Context, address string, amount decimal.Decimal) (string, error) {
	return l.call("withdraw", address, amount.String())
}

var _ chain.Ledger = (*Ledger)(nil)
