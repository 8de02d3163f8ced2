package handler

import (
	"apply-codes/internal/boolean"
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type BooleanHandler struct {
	uc usecase.BooleanUsecase
}

func NewBooleanHandler(uc usecase.BooleanUsecase) *BooleanHandler {
	return &BooleanHandler{uc: uc}
}

type processRequirementsRequest struct {
	Content      string                `json:"content"`
	SearchType   string                `json:"searchType"`
	ContextItems []boolean.ContextItem `json:"contextItems"`
	ProjectID    string                `json:"projectId"`
}

func (h *BooleanHandler) ProcessJobRequirements(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req processRequirementsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.uc.ProcessJobRequirements(c.Context(), id.UID, usecase.ProcessRequirementsInput{
		Content:      req.Content,
		SearchType:   req.SearchType,
		ContextItems: req.ContextItems,
		ProjectID:    req.ProjectID,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

type processRequirementsV2Request struct {
	Content      string                `json:"content"`
	CompanyName  string                `json:"companyName"`
	Industry     string                `json:"industry"`
	ContextItems []boolean.ContextItem `json:"contextItems"`
	ProjectID    string                `json:"projectId"`
}

func (h *BooleanHandler) ProcessJobRequirementsV2(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req processRequirementsV2Request
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.uc.ProcessJobRequirementsV2(c.Context(), id.UID, usecase.ProcessRequirementsV2Input{
		Content:      req.Content,
		CompanyName:  req.CompanyName,
		Industry:     req.Industry,
		ContextItems: req.ContextItems,
		ProjectID:    req.ProjectID,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

type booleanSearchRequest struct {
	Description  string                `json:"description"`
	JobTitle     string                `json:"jobTitle"`
	ContextItems []boolean.ContextItem `json:"contextItems"`
}

func (h *BooleanHandler) GenerateBooleanSearch(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req booleanSearchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.uc.GenerateBooleanSearch(c.Context(), id.UID, usecase.BooleanSearchInput{
		Description:  req.Description,
		JobTitle:     req.JobTitle,
		ContextItems: req.ContextItems,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *BooleanHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/processJobRequirements", requireAuth, h.ProcessJobRequirements)
	r.Post("/processJobRequirementsV2", requireAuth, h.ProcessJobRequirementsV2)
	r.Post("/generateBooleanSearch", requireAuth, h.GenerateBooleanSearch)
}
