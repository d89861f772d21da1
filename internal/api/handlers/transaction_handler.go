package handlers

import (
	"fintrack/internal/dto"
	"fintrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
	logger             *zap.Logger
}

func NewTransactionHandler(transactionService *service.TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// ListTransactions godoc
// @Summary List ledger transactions, newest first
// @Tags transactions
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Security Bearer
// @Success 200 {object} dto.TransactionListResponse
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	page, err := h.transactionService.List(c.Context(), userID, c.QueryInt("page", 1), c.QueryInt("page_size", 20))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	resp := dto.TransactionListResponse{
		Items:    make([]dto.TransactionResponse, 0, len(page.Items)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, tx := range page.Items {
		resp.Items = append(resp.Items, dto.NewTransactionResponse(tx))
	}
	return c.JSON(resp)
}
