package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"apply-codes/internal/delivery/http/middleware"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/pkg/auth"
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

// bind decodes the JSON body into out. An empty body decodes as {} so that
// missing fields surface as validation errors, and a body of the form
// {"data": {...}} is unwrapped first.
func bind(c fiber.Ctx, out any) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		body = []byte("{}")
	}
	decode := c.App().Config().JSONDecoder

	var fields map[string]json.RawMessage
	if err := decode(body, &fields); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Request body must be a JSON object", nil, err)
	}
	if raw, ok := fields["data"]; ok && len(fields) == 1 {
		if raw = bytes.TrimSpace(raw); len(raw) > 0 && raw[0] == '{' {
			body = raw
		}
	}
	if err := decode(body, out); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid request body", nil, err)
	}
	return nil
}

func caller(c fiber.Ctx) (auth.Identity, error) {
	id, ok := middleware.Identity(c)
	if !ok {
		return auth.Identity{}, middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}
	return id, nil
}

func badRequest(message string) error {
	return middleware.NewAppError(fiber.StatusBadRequest, message, nil, nil)
}

// mapUsecaseError turns usecase and vendor failures into AppErrors. Vendor
// statuses are folded with vendor.MapStatus and the vendor message is kept
// in details.
func mapUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	var outErr *usecase.ModelOutputError
	if errors.As(err, &outErr) {
		return middleware.NewAppError(fiber.StatusInternalServerError, "The model returned an unusable answer",
			fiber.Map{"raw": outErr.Raw}, err)
	}

	var apiErr *vendor.APIError
	if errors.As(err, &apiErr) {
		status := vendor.MapStatus(apiErr.StatusCode)
		return middleware.NewAppError(status, vendorMessage(apiErr.Vendor, status),
			fiber.Map{"vendor": apiErr.Vendor, "status": apiErr.StatusCode, "message": apiErr.Message}, err)
	}

	if errors.Is(err, vendor.ErrNotConfigured) {
		return middleware.NewAppError(fiber.StatusInternalServerError, "Service is not configured", nil, err)
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, inputMessage(err), nil, err)
	case errors.Is(err, usecase.ErrUnauthorized):
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, err)
	case errors.Is(err, usecase.ErrForbidden):
		return middleware.NewAppError(fiber.StatusForbidden, "Forbidden", nil, err)
	case errors.Is(err, usecase.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Not found", nil, err)
	}

	if code := llm.StatusCode(err); code != 0 {
		status := vendor.MapStatus(code)
		return middleware.NewAppError(status, vendorMessage("gemini", status), fiber.Map{"vendor": "gemini", "status": code}, err)
	}

	return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
}

func inputMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, usecase.ErrInvalidInput.Error()+": "); ok && rest != "" {
		return rest
	}
	return "Bad request"
}

func vendorMessage(name string, status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return name + " rejected the API credentials"
	case fiber.StatusPaymentRequired:
		return name + " quota or billing limit reached"
	case fiber.StatusForbidden:
		return name + " denied access"
	case fiber.StatusNotFound:
		return name + " found no matching record"
	case fiber.StatusTooManyRequests:
		return name + " rate limit exceeded"
	case fiber.StatusBadRequest:
		return name + " rejected the request"
	default:
		return name + " request failed"
	}
}
