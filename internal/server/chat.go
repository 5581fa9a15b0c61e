package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sevasetu/sevasetu/internal/assistant"
	"github.com/sevasetu/sevasetu/internal/store"
	"github.com/sevasetu/sevasetu/internal/tools"
)

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// ChatResponse is the outbound chat payload. ErrorCode is set only for
// degraded turns (e.g. model unavailability); AIResponse stays human-readable.
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	AIResponse     string `json:"ai_response"`
	ErrorCode      string `json:"error_code,omitempty"`
}

// ChatHandler exposes the single chat operation.
type ChatHandler struct {
	Engine *assistant.Engine
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	reply, err := h.Engine.HandleMessage(c.Request().Context(), assistant.ChatRequest{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		recordTurn("error")
		switch {
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, tools.ErrUnknownTool):
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	recordTurn(reply.Outcome)
	return c.JSON(http.StatusOK, ChatResponse{
		ConversationID: reply.ConversationID,
		AIResponse:     reply.Reply,
		ErrorCode:      reply.ErrCode,
	})
}
