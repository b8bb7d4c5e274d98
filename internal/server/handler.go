package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const excerptLength = 200

type QuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

type SourceResponse struct {
	ChunkID    int     `json:"chunk_id"`
	Page       int     `json:"page"`
	Similarity float32 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

type AnswerResponse struct {
	Answer     string             `json:"answer"`
	AnswerHTML string             `json:"answer_html"`
	Sources    []SourceResponse   `json:"sources"`
	Usage      *models.TokenUsage `json:"usage,omitempty"`
}

type Handler struct {
	session  Service
	maxBytes int64
}

func NewHandler(session Service, maxUploadMB int) *Handler {
	return &Handler{session: session, maxBytes: int64(maxUploadMB) << 20}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"document": h.session.Summary(),
	})
}

func (h *Handler) Document(c *gin.Context) {
	summary := h.session.Summary()
	if summary == nil {
		Error(c, http.StatusNotFound, CodeEmptyContent, "no document has been loaded")
		return
	}
	OK(c, summary)
}

// UploadDocument accepts a multipart form with "file" (PDF) and builds a new knowledge base from it.
func (h *Handler) UploadDocument(c *gin.Context) {
	// multipart overhead on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			Error(c, http.StatusRequestEntityTooLarge, CodeTooLarge, h.tooLargeMessage())
			return
		}
		Error(c, http.StatusBadRequest, CodeBadRequest, "missing file")
		return
	}
	if file.Size > h.maxBytes {
		Error(c, http.StatusRequestEntityTooLarge, CodeTooLarge, h.tooLargeMessage())
		return
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
		Error(c, http.StatusBadRequest, CodeBadRequest, "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		Error(c, http.StatusInternalServerError, CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		Error(c, http.StatusInternalServerError, CodeInternalServer, "failed to read file")
		return
	}

	log.Info().Str("file", file.Filename).Int("bytes", len(data)).Msg("Document uploaded")
	summary, err := h.session.Upload(c.Request.Context(), filepath.Base(file.Filename), data)
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, summary)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	h.session.Reset()
	OK(c, nil)
}

func (h *Handler) Ask(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}

	resp, err := h.session.Ask(c.Request.Context(), req.Question)
	if err != nil {
		Fail(c, err)
		return
	}

	sources := make([]SourceResponse, len(resp.Sources))
	for i, s := range resp.Sources {
		sources[i] = SourceResponse{
			ChunkID:    s.ChunkID,
			Page:       s.PageNumber,
			Similarity: s.Similarity,
			Excerpt:    helper.Truncate(s.Content, excerptLength),
		}
	}
	OK(c, AnswerResponse{
		Answer:     resp.Content,
		AnswerHTML: renderAnswer(resp.Content),
		Sources:    sources,
		Usage:      resp.Usage,
	})
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("file too large (max %dMB)", h.maxBytes>>20)
}
