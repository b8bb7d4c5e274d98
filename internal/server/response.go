package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

const (
	CodeOK             = 0
	CodeBadRequest     = 40000
	CodeBadFormat      = 40001
	CodeTooLarge       = 41300
	CodeEmptyContent   = 42200
	CodeInternalServer = 50000
	CodeBackend        = 50200
	CodeAuth           = 50201
	CodeNetwork        = 50400
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Fail reports a pipeline error with the status matching its kind.
func Fail(c *gin.Context, err error) {
	status, code := statusOf(models.KindOf(err))
	Error(c, status, code, llmservice.UserMessage(err))
}

func statusOf(kind models.Kind) (int, int) {
	switch kind {
	case models.KindInvalidInput:
		return http.StatusBadRequest, CodeBadRequest
	case models.KindFormat:
		return http.StatusBadRequest, CodeBadFormat
	case models.KindEmptyContent:
		return http.StatusUnprocessableEntity, CodeEmptyContent
	case models.KindAuth:
		return http.StatusBadGateway, CodeAuth
	case models.KindNetwork:
		return http.StatusGatewayTimeout, CodeNetwork
	case models.KindBackend:
		return http.StatusBadGateway, CodeBackend
	default:
		return http.StatusInternalServerError, CodeInternalServer
	}
}
