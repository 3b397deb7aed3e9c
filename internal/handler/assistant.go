package handler

import (
	"errors"
	"io"
	"net/http"

	"pdfqa/internal/catalog"
	"pdfqa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AssistantHandler interface {
	ListAssistants(c *gin.Context)
	GetAssistant(c *gin.Context)
	CreateAssistant(c *gin.Context)
	AddPDF(c *gin.Context)
	Ask(c *gin.Context)
}

type assistantHandler struct {
	assistantService service.AssistantService
	logger           *zap.Logger
}

func NewAssistantHandler(assistantService service.AssistantService, logger *zap.Logger) AssistantHandler {
	return &assistantHandler{assistantService: assistantService, logger: logger}
}

type CreateAssistantRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

type AskRequest struct {
	Question      string `json:"question" binding:"required"`
	AssistantName string `json:"assistant_name" binding:"required"`
}

// ListAssistants handles GET /api/ai/assistants
func (h *assistantHandler) ListAssistants(c *gin.Context) {
	names, err := h.assistantService.ListAssistants(c.Request.Context())
	if err != nil {
		h.remoteFailure(c, err, catalog.RequestFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assistants": names})
}

// GetAssistant handles GET /api/ai/assistant/:name
func (h *assistantHandler) GetAssistant(c *gin.Context) {
	assistant, err := h.assistantService.GetAssistant(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.remoteFailure(c, err, catalog.RequestFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assistant": assistant})
}

// CreateAssistant handles POST /api/ai/create-assistant
func (h *assistantHandler) CreateAssistant(c *gin.Context) {
	var req CreateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	_, err := h.assistantService.CreateAssistant(c.Request.Context(), req.Name, req.Description, req.Instructions)
	if err != nil {
		h.remoteFailure(c, err, catalog.RequestFailed)
		return
	}

	success(c, http.StatusCreated, "Assistant created successfully.", nil)
}

// AddPDF handles POST /api/ai/add-pdf (multipart: assistant_name, file)
func (h *assistantHandler) AddPDF(c *gin.Context) {
	assistantName := c.PostForm("assistant_name")

	var (
		filename string
		content  io.Reader
	)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			fail(c, h.logger, http.StatusBadRequest, catalog.FileNotFound, err)
			return
		}
		defer f.Close()
		filename, content = fh.Filename, f
	}

	if err := h.assistantService.AttachPDF(c.Request.Context(), assistantName, filename, content); err != nil {
		h.remoteFailure(c, err, catalog.RequestFailed)
		return
	}

	success(c, http.StatusCreated, "File uploaded successfully.", nil)
}

// Ask handles POST /api/ai/ask
func (h *assistantHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	answer, err := h.assistantService.Ask(c.Request.Context(), req.AssistantName, req.Question)
	if err != nil {
		h.remoteFailure(c, err, catalog.UnhandledException)
		return
	}

	c.JSON(http.StatusOK, answer)
}

// remoteFailure maps orchestrator errors to catalog responses; remoteKey is
// used for faults of the assistants API itself. Remote detail stays in the
// logs.
func (h *assistantHandler) remoteFailure(c *gin.Context, err error, remoteKey catalog.Key) {
	switch {
	case errors.Is(err, service.ErrAssistantNotFound):
		fail(c, h.logger, http.StatusBadRequest, catalog.AssistantNotFound, err)
	case errors.Is(err, service.ErrAssistantExists):
		fail(c, h.logger, http.StatusBadRequest, catalog.AssistantAlreadyExists, err)
	case errors.Is(err, service.ErrFileMissing):
		fail(c, h.logger, http.StatusBadRequest, catalog.FileNotFound, err)
	case errors.Is(err, service.ErrFilenameNotAllowed):
		fail(c, h.logger, http.StatusBadRequest, catalog.FilenameNotAllowed, err)
	case errors.Is(err, service.ErrRunFailed), errors.Is(err, service.ErrIndexFailed):
		fail(c, h.logger, http.StatusInternalServerError, catalog.ClientRunFail, err)
	case errors.Is(err, service.ErrRemote):
		fail(c, h.logger, http.StatusInternalServerError, remoteKey, err)
	default:
		fail(c, h.logger, http.StatusInternalServerError, catalog.UnhandledException, err)
	}
}
