package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/chain"
)

// Ledger — production-адаптер chain.Ledger поверх JSON API узла-подписанта.
// Узел отвечает ссылкой на транзакцию только после её подтверждения;
// pending-ответ трактуется как неуспех.
type Ledger struct {
	baseURL    string
	httpClient *http.Client
}

// NewLedger создаёт адаптер с ограниченным таймаутом внешнего вызова.
func NewLedger(baseURL string, timeout time.Duration) *Ledger {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ledger{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type callRequest struct {
	Op            string `json:"op"`
	JobID         string `json:"job_id,omitempty"`
	Payer         string `json:"payer,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
	Worker        string `json:"worker,omitempty"`
	Employer      string `json:"employer,omitempty"`
	Amount        string `json:"amount,omitempty"`
	WorkerShare   string `json:"worker_share,omitempty"`
	EmployerShare string `json:"employer_share,omitempty"`
}

type callResponse struct {
	TxRef     string `json:"tx_ref"`
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
}

func (l *Ledger) call(ctx context.Context, req callRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("chain rpc: сериализация запроса: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/escrow/call", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chain rpc: создание запроса: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chain.ErrCallFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: статус %d", chain.ErrCallFailed, resp.StatusCode)
	}

	var out callResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chain rpc: разбор ответа: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", chain.ErrCallFailed, out.Error)
	}
	// Неподтверждённая транзакция — это ещё не успех.
	if !out.Confirmed || out.TxRef == "" {
		return "", chain.ErrCallFailed
	}

	return out.TxRef, nil
}

func (l *Ledger) Lock(ctx context.Context, jobID uuid.UUID, payer string, amount decimal.Decimal) (string, error) {
	return l.call(ctx, callRequest{Op: "lock", JobID: jobID.String(), Payer: payer, Amount: amount.String()})
}

func (l *Ledger) Release(ctx context.Context, jobID uuid.UUID, recipient string, amount decimal.Decimal) (string, error) {
	return l.call(ctx, callRequest{Op: "release", JobID: jobID.String(), Recipient: recipient, Amount: amount.String()})
}

func (l *Ledger) Refund(ctx context.Context, jobID uuid.UUID, recipient string, amount decimal.Decimal) (string, error) {
	return l.call(ctx, callRequest{Op: "refund", JobID: jobID.String(), Recipient: recipient, Amount: amount.String()})
}

func (l *Ledger) SplitRelease(ctx context.Context, jobID uuid.UUID, worker, employer string, workerShare, employerShare decimal.Decimal) (string, error) {
	return l.call(ctx, callRequest{
		Op:            "split_release",
		JobID:         jobID.String(),
		Worker:        worker,
		Employer:      employer,
		WorkerShare:   workerShare.String(),
		EmployerShare: employerShare.String(),
	})
}

func (l *Ledger) Deposit(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	return l.call(ctx, callRequest{Op: "deposit", Recipient: address, Amount: amount.String()})
}

func (l *Ledger) Withdraw(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	return l.call(ctx, callRequest{Op: "withdraw", Recipient: address, Amount: amount.String()})
}

var _ chain.Ledger = (*Ledger)(nil)
