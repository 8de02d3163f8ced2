package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"apply-codes/internal/chat"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const streamTimeout = 2 * time.Minute

type ChatHandler struct {
	uc     usecase.ChatUsecase
	logger *zap.Logger
}

func NewChatHandler(uc usecase.ChatUsecase, log *zap.Logger) *ChatHandler {
	return &ChatHandler{uc: uc, logger: logger.OrNop(log).Named("chat")}
}

type chatRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	ProjectID string        `json:"project_id"`
	History   []llm.Message `json:"history"`
}

func (r chatRequest) input() usecase.ChatInput {
	return usecase.ChatInput{Message: r.Message, SessionID: r.SessionID, ProjectID: r.ProjectID, History: r.History}
}

type confirmationRequest struct {
	ToolName    string         `json:"tool_name"`
	Parameters  map[string]any `json:"parameters"`
	Description string         `json:"description"`
}

func (h *ChatHandler) Chat(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req chatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.Chat(c.Context(), id, req.input())
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

// Stream validates the turn first so that bad input and ownership failures
// still get a status code; once the body starts, failures are events.
func (h *ChatHandler) Stream(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req chatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	stream, err := h.uc.PrepareStream(c.Context(), id, req.input())
	if err != nil {
		return mapUsecaseError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sessionID := stream.SessionID()
	return c.SendStreamWriter(func(w *bufio.Writer) {
		// the request context is gone once the handler returns
		ctx, cancel := context.WithTimeout(context.Background(), streamTimeout)
		defer cancel()

		err := stream.Run(ctx, func(ev usecase.ChatEvent) error {
			b, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			h.logger.Debug("chat stream closed", zap.String("session_id", sessionID), zap.Error(err))
		}
	})
}

func (h *ChatHandler) CreateConfirmation(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req confirmationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.CreateConfirmation(c.Context(), id.UID, usecase.ConfirmationInput{
		ToolName:    req.ToolName,
		Parameters:  req.Parameters,
		Description: req.Description,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *ChatHandler) Confirm(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	approved := true
	if raw := c.Query("approved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest("approved must be true or false")
		}
		approved = v
	}
	res, err := h.uc.Confirm(c.Context(), id.UID, c.Params("id"), approved)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *ChatHandler) Capabilities(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, h.uc.Capabilities())
}

func (h *ChatHandler) Tools(c fiber.Ctx) error {
	tools := chat.Tools()
	return response.Success(c, fiber.StatusOK, fiber.Map{"tools": tools, "count": len(tools)})
}

func (h *ChatHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	api := r.Group("/api")
	api.Post("/chat", requireAuth, h.Chat)
	api.Post("/chat/stream", requireAuth, h.Stream)
	api.Post("/chat/confirmations", requireAuth, h.CreateConfirmation)
	api.Post("/chat/confirm/:id", requireAuth, h.Confirm)
	api.Get("/capabilities", h.Capabilities)
	api.Get("/tools", h.Tools)
}
