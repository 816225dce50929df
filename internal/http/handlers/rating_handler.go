package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/workchain-backend/internal/http/handlers/common"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

type RatingHandler struct {
	svc *service.RatingService
}

func NewRatingHandler(s *service.RatingService) *RatingHandler {
	return &RatingHandler{svc: s}
}

// CreateRating POST /jobs/:id/ratings
func (h *RatingHandler) CreateRating(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Overall         int     `json:"overall" binding:"required"`
		Quality         int     `json:"quality" binding:"required"`
		Communication   int     `json:"communication" binding:"required"`
		Timeliness      int     `json:"timeliness" binding:"required"`
		Review          *string `json:"review"`
		DeliveredOnTime bool    `json:"delivered_on_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	rating, err := h.svc.Create(c.Request.Context(), jobID, wallet, service.CreateRatingInput{
		Overall:         req.Overall,
		Quality:         req.Quality,
		Communication:   req.Communication,
		Timeliness:      req.Timeliness,
		Review:          req.Review,
		DeliveredOnTime: req.DeliveredOnTime,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, rating)
}

// GetJobRating GET /jobs/:id/ratings
func (h *RatingHandler) GetJobRating(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	direction := c.DefaultQuery("direction", "employer_to_worker")
	rating, err := h.svc.GetForJob(c.Request.Context(), jobID, direction)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rating)
}

// ListRatings GET /ratings/:address
func (h *RatingHandler) ListRatings(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		common.RespondBadRequest(c, "адрес не указан")
		return
	}

	limit, offset := common.GetPagination(c)
	ratings, err := h.svc.ListForAddress(c.Request.Context(), address, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ratings)
}

// GetAggregates GET /ratings/:address/aggregates
func (h *RatingHandler) GetAggregates(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		common.RespondBadRequest(c, "адрес не указан")
		return
	}

	aggregates, err := h.svc.AggregatesFor(c.Request.Context(), address)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, aggregates)
}
