package mock

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLedger_DeterministicRefs(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()
	jobID := uuid.New()
	amount := decimal.NewFromInt(1000)

	first, err := ledger.Lock(ctx, jobID, "0xemployer", amount)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "0x"))

	second, err := ledger.Lock(ctx, jobID, "0xemployer", amount)
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := ledger.Lock(ctx, jobID, "0xemployer", decimal.NewFromInt(999))
	assert.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestLedger_CallJournal(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()
	jobID := uuid.New()

	_, _ = ledger.Release(ctx, jobID, "0xworker", decimal.NewFromInt(500))
	_, _ = ledger.Refund(ctx, jobID, "0xemployer", decimal.NewFromInt(500))

	calls := ledger.Calls()
	assert.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "release|"))
	assert.True(t, strings.HasPrefix(calls[1], "refund|"))
}

func TestLedger_FailWithAffectsSingleCall(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()
	boom := errors.New("сеть недоступна")

	ledger.FailWith(boom)
	_, err := ledger.Deposit(ctx, "0xemployer", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, boom)

	ref, err := ledger.Deposit(ctx, "0xemployer", decimal.NewFromInt(100))
	assert.NoError(t, err)
	assert.NotEmpty(t, ref)
	// Упавший вызов не попадает в журнал.
	assert.Len(t, ledger.Calls(), 1)
}

func TestLedger_AlwaysFailing(t *testing.T) {
	boom := errors.New("узел недоступен")
	ledger := NewFailingLedger(boom)
	ctx := context.Background()

	_, err := ledger.Withdraw(ctx, "0xworker", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, boom)
	_, err = ledger.SplitRelease(ctx, uuid.New(), "0xworker", "0xemployer", decimal.NewFromInt(25), decimal.NewFromInt(25))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, ledger.Calls())
}
