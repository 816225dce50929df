package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/http/handlers/common"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

type EscrowHandler struct {
	svc *service.EscrowService
}

func NewEscrowHandler(s *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: s}
}

// GetJobEscrow GET /jobs/:id/escrow
func (h *EscrowHandler) GetJobEscrow(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.GetEscrow(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// GetBalance GET /balance
func (h *EscrowHandler) GetBalance(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.svc.GetBalance(c.Request.Context(), wallet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Deposit POST /balance/deposit
func (h *EscrowHandler) Deposit(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		common.RespondBadRequest(c, "некорректная сумма пополнения")
		return
	}

	tx, err := h.svc.Deposit(c.Request.Context(), wallet, amount)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// ListTransactions GET /balance/transactions
func (h *EscrowHandler) ListTransactions(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.svc.ListTransactions(c.Request.Context(), wallet, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transactions)
}
