package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"apply-codes/internal/delivery/http/middleware"
	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapUsecaseError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid input", fmt.Errorf("%w: content is required", usecase.ErrInvalidInput), fiber.StatusBadRequest, "content is required"},
		{"forbidden", usecase.ErrForbidden, fiber.StatusForbidden, "Forbidden"},
		{"not found", usecase.ErrNotFound, fiber.StatusNotFound, "Not found"},
		{"vendor quota", &vendor.APIError{Vendor: "hunter", StatusCode: 429, Message: "slow down"}, fiber.StatusTooManyRequests, "hunter rate limit exceeded"},
		{"vendor unprocessable", &vendor.APIError{Vendor: "stripe", StatusCode: 422}, fiber.StatusBadRequest, "stripe rejected the request"},
		{"vendor outage", &vendor.APIError{Vendor: "daily", StatusCode: 503}, fiber.StatusInternalServerError, "daily request failed"},
		{"not configured", vendor.NotConfigured("pdl"), fiber.StatusInternalServerError, "Service is not configured"},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var appErr *middleware.AppError
			require.ErrorAs(t, mapUsecaseError(tc.err), &appErr)
			assert.Equal(t, tc.status, appErr.StatusCode)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
	assert.NoError(t, mapUsecaseError(nil))
}

func TestMapUsecaseError_ModelOutputKeepsRaw(t *testing.T) {
	var appErr *middleware.AppError
	require.ErrorAs(t, mapUsecaseError(&usecase.ModelOutputError{Prompt: "summarizeJob", Raw: "not json", Err: errors.New("parse")}), &appErr)
	assert.Equal(t, fiber.StatusInternalServerError, appErr.StatusCode)
	assert.Equal(t, fiber.Map{"raw": "not json"}, appErr.Data)
}

func TestBind(t *testing.T) {
	type payload struct {
		Content string `json:"content"`
	}

	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(nil).Middleware())
	app.Post("/", func(c fiber.Ctx) error {
		var p payload
		if err := bind(c, &p); err != nil {
			return err
		}
		return c.SendString(p.Content)
	})

	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"plain", `{"content":"go"}`, fiber.StatusOK, "go"},
		{"envelope", `{"data":{"content":"rust"}}`, fiber.StatusOK, "rust"},
		{"data is a field", `{"data":"x","content":"zig"}`, fiber.StatusOK, "zig"},
		{"empty", ``, fiber.StatusOK, ""},
		{"array", `[1]`, fiber.StatusBadRequest, "Request body must be a JSON object"},
		{"wrong type", `{"content":1}`, fiber.StatusBadRequest, "Invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Contains(t, string(body), tc.want)
		})
	}
}
