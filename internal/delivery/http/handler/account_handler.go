package handler

import (
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

// AccountHandler serves the per-user reads: client API keys and dashboard
// metrics.
type AccountHandler struct {
	secrets   usecase.SecretsUsecase
	dashboard usecase.DashboardUsecase
}

func NewAccountHandler(secrets usecase.SecretsUsecase, dashboard usecase.DashboardUsecase) *AccountHandler {
	return &AccountHandler{secrets: secrets, dashboard: dashboard}
}

type apiKeyRequest struct {
	Service string `json:"service"`
}

type dashboardRequest struct {
	MetricType string `json:"metricType"`
	DateRange  string `json:"dateRange"`
	ProjectID  string `json:"projectId"`
}

func (h *AccountHandler) GetAPIKey(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req apiKeyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.secrets.GetAPIKey(c.Context(), id.UID, req.Service)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *AccountHandler) GenerateDashboardMetrics(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req dashboardRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.dashboard.Metrics(c.Context(), id.UID, usecase.DashboardInput{
		MetricType: req.MetricType,
		DateRange:  req.DateRange,
		ProjectID:  req.ProjectID,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *AccountHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/getApiKey", requireAuth, h.GetAPIKey)
	r.Post("/generateDashboardMetrics", requireAuth, h.GenerateDashboardMetrics)
}
