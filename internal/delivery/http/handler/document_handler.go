package handler

import (
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type DocumentHandler struct {
	uc usecase.DocumentUsecase
}

func NewDocumentHandler(uc usecase.DocumentUsecase) *DocumentHandler {
	return &DocumentHandler{uc: uc}
}

type documentSource struct {
	DocumentURL  string `json:"documentUrl"`
	DocumentText string `json:"documentText"`
	DocumentType string `json:"documentType"`
}

func (s documentSource) source() usecase.DocumentSource {
	return usecase.DocumentSource{URL: s.DocumentURL, Text: s.DocumentText, Type: s.DocumentType}
}

type parseDocumentRequest struct {
	documentSource
	ExtractTables      *bool `json:"extractTables"`
	PreserveFormatting bool  `json:"preserveFormatting"`
}

type textExtractionRequest struct {
	documentSource
	ExtractionType string `json:"extractionType"`
	OCREnabled     bool   `json:"ocrEnabled"`
	Language       string `json:"language"`
	OutputFormat   string `json:"outputFormat"`
}

func (h *DocumentHandler) ParseDocument(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req parseDocumentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tables := true
	if req.ExtractTables != nil {
		tables = *req.ExtractTables
	}
	res, err := h.uc.ParseDocument(c.Context(), id.UID, usecase.ParseDocumentInput{
		DocumentSource:     req.source(),
		ExtractTables:      tables,
		PreserveFormatting: req.PreserveFormatting,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

// ProcessTextExtraction accepts ocrEnabled for compatibility; text comes
// from the scraper or the caller, so there is nothing to OCR here.
func (h *DocumentHandler) ProcessTextExtraction(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req textExtractionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.uc.ProcessTextExtraction(c.Context(), id.UID, usecase.TextExtractionInput{
		DocumentSource: req.source(),
		ExtractionType: req.ExtractionType,
		Language:       req.Language,
		OutputFormat:   req.OutputFormat,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *DocumentHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/parseDocument", requireAuth, h.ParseDocument)
	r.Post("/processTextExtraction", requireAuth, h.ProcessTextExtraction)
}
