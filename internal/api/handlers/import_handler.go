package handlers

import (
	"io"

	"fintrack/internal/dto"
	"fintrack/internal/models"
	"fintrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ImportHandler struct {
	importService *service.ImportService
	previewRows   int
	logger        *zap.Logger
}

func NewImportHandler(importService *service.ImportService, previewRows int, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		previewRows:   previewRows,
		logger:        logger,
	}
}

// Upload godoc
// @Summary Upload a receipt or statement
// @Description Parses the document into drafts and stages them as an import job
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Receipt image (JPEG/PNG) or statement PDF"
// @Param kind formData string true "single_receipt or statement_batch"
// @Security Bearer
// @Success 201 {object} dto.UploadResponse
// @Failure 415 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/v1/imports [post]
func (h *ImportHandler) Upload(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "File is required")
	}
	kind := c.FormValue("kind")
	if kind == "" {
		return badRequest(c, "Kind is required")
	}

	src, err := file.Open()
	if err != nil {
		return badRequest(c, "Failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return badRequest(c, "Failed to read file")
	}

	job, err := h.importService.Upload(c.Context(), userID, service.UploadInput{
		Data:     data,
		FileName: file.Filename,
		MimeType: file.Header.Get(fiber.HeaderContentType),
		Kind:     models.ImportKind(kind),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewUploadResponse(job, h.previewRows))
}

// ListJobs godoc
// @Summary List import jobs
// @Tags imports
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Security Bearer
// @Success 200 {object} dto.ImportJobListResponse
// @Router /api/v1/imports [get]
func (h *ImportHandler) ListJobs(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	jobs, err := h.importService.ListJobs(c.Context(), userID, limit, offset)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	resp := dto.ImportJobListResponse{
		Items:  make([]dto.ImportJobResponse, 0, len(jobs)),
		Limit:  limit,
		Offset: offset,
	}
	for _, job := range jobs {
		resp.Items = append(resp.Items, dto.NewImportJobResponse(job))
	}
	return c.JSON(resp)
}

// GetJob godoc
// @Summary Get an import job with its drafts
// @Tags imports
// @Produce json
// @Param id path string true "Job ID"
// @Security Bearer
// @Success 200 {object} dto.ImportJobResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id} [get]
func (h *ImportHandler) GetJob(c *fiber.Ctx) error {
	userID, jobID, err := jobParams(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	job, err := h.importService.GetJob(c.Context(), userID, jobID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewImportJobResponse(job))
}

// PatchDraft godoc
// @Summary Edit some fields of a draft
// @Description Fields left out are unchanged; an empty string clears a field
// @Tags imports
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param index path int true "Draft index"
// @Param request body dto.DraftRequest true "Fields to change"
// @Security Bearer
// @Success 200 {object} dto.DraftResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id}/drafts/{index} [patch]
func (h *ImportHandler) PatchDraft(c *fiber.Ctx) error {
	return h.writeDraft(c, false)
}

// ReplaceDraft godoc
// @Summary Replace a draft
// @Description Fields left out are cleared
// @Tags imports
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param index path int true "Draft index"
// @Param request body dto.DraftRequest true "New draft"
// @Security Bearer
// @Success 200 {object} dto.DraftResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id}/drafts/{index} [put]
func (h *ImportHandler) ReplaceDraft(c *fiber.Ctx) error {
	return h.writeDraft(c, true)
}

func (h *ImportHandler) writeDraft(c *fiber.Ctx, replace bool) error {
	userID, jobID, err := jobParams(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	index, err := c.ParamsInt("index")
	if err != nil {
		return writeError(c, h.logger, models.ErrDraftNotFound)
	}

	var req dto.DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	patch := service.DraftPatch{
		Type:       req.Type,
		Amount:     req.Amount,
		Currency:   req.Currency,
		OccurredAt: req.OccurredAt,
		CategoryID: req.CategoryID,
		Merchant:   req.Merchant,
		Notes:      req.Notes,
	}

	var draft *models.Draft
	if replace {
		draft, err = h.importService.ReplaceDraft(c.Context(), userID, jobID, index, patch)
	} else {
		if patch.Empty() {
			return badRequest(c, "No fields to update")
		}
		draft, err = h.importService.EditDraft(c.Context(), userID, jobID, index, patch)
	}
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(dto.NewDraftResponse(index, *draft))
}

// Commit godoc
// @Summary Commit the drafts of an import job to the ledger
// @Description Idempotent: repeated calls return the first result
// @Tags imports
// @Produce json
// @Param id path string true "Job ID"
// @Security Bearer
// @Success 200 {object} dto.CommitResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/imports/{id}/commit [post]
func (h *ImportHandler) Commit(c *fiber.Ctx) error {
	userID, jobID, err := jobParams(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	// the commit may outlive this request; fasthttp recycles c.Context() once the handler returns
	result, err := h.importService.Commit(c.UserContext(), userID, jobID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewCommitResponse(jobID.String(), result))
}

func jobParams(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := getUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	// a malformed id cannot name an existing job
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, models.ErrJobNotFound
	}
	return userID, jobID, nil
}
