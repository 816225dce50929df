package chain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrCallFailed возвращается адаптерами, когда внешний леджер отклонил
// вызов или не подтвердил транзакцию в отведённое время. Незавершённая
// (pending) транзакция считается неуспехом: ядро не продвигает состояние
// до явного подтверждения.
var ErrCallFailed = errors.New("chain: вызов внешнего леджера не подтверждён")

// Ledger — внешний кастодиальный контракт. Каждый вызов атомарен с точки
// зрения ядра и возвращает либо подтверждённую ссылку на транзакцию,
// либо ошибку. Повторный вызов с тем же jobID безопасен: состояние
// фиксируется в базе только после подтверждения.
type Ledger interface {
	Lock(ctx context.Context, jobID uuid.UUID, payer string, amount decimal.Decimal) (string, error)
	Release(ctx context.Context, jobID uuid.UUID, recipient string, amount decimal.Decimal) (string, error)
	Refund(ctx context.Context, jobID uuid.UUID, recipient string, amount decimal.Decimal) (string, error)
	SplitRelease(ctx context.Context, jobID uuid.UUID, worker, employer string, workerShare, employerShare decimal.Decimal) (string, error)
	Deposit(ctx context.Context, address string, amount decimal.Decimal) (string, error)
	Withdraw(ctx context.Context, address string, amount decimal.Decimal) (string, error)
}
