package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"khoj/internal/apperr"
	"khoj/internal/dto"
)

// geminiKeyHeaders are checked in order; the first non-empty value
// overrides the configured AI credential for that request.
var geminiKeyHeaders = []string{"X-Gemini-Api-Key", "X-Google-Api-Key", "X-Api-Key"}

func apiKeyFromRequest(ctx *gin.Context) string {
	for _, h := range geminiKeyHeaders {
		if v := strings.TrimSpace(ctx.GetHeader(h)); v != "" {
			return v
		}
	}
	return ""
}

// parseIntParam reads a numeric path parameter, writing the 400 itself on
// failure.
func parseIntParam(ctx *gin.Context, name string) (int, bool) {
	val, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + name + " format"})
		return 0, false
	}
	return val, true
}

// respondError translates the service error taxonomy into HTTP statuses.
func respondError(ctx *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	switch e.Kind {
	case apperr.KindInvalidInput:
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: e.Msg})
	case apperr.KindNotFound:
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: e.Msg})
	case apperr.KindOffTopic:
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: e.Msg, RequiredTopic: e.Topic})
	case apperr.KindConflict, apperr.KindAlreadySubmitted:
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: e.Msg})
	case apperr.KindProviderUnavailable:
		ctx.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: e.Msg})
	default:
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: e.Msg})
	}
}
