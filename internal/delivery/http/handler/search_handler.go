package handler

import (
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type SearchHandler struct {
	uc usecase.SearchUsecase
}

func NewSearchHandler(uc usecase.SearchUsecase) *SearchHandler {
	return &SearchHandler{uc: uc}
}

type googleSearchRequest struct {
	Query string `json:"query"`
	Num   int    `json:"num"`
	Start int    `json:"start"`
}

type linkedInSearchRequest struct {
	Keywords       string `json:"keywords"`
	Title          string `json:"title"`
	Location       string `json:"location"`
	CurrentCompany string `json:"currentCompany"`
	PastCompany    string `json:"pastCompany"`
	School         string `json:"school"`
	Industry       string `json:"industry"`
	Num            int    `json:"num"`
	Start          int    `json:"start"`
}

type perplexityRequest struct {
	Query string `json:"query"`
	Focus string `json:"focus"`
}

type locationRequest struct {
	Query string `json:"query"`
}

type scrapeRequest struct {
	URL            string `json:"url"`
	ScrapeFullPage bool   `json:"scrapeFullPage"`
	ExtractLinks   bool   `json:"extractLinks"`
	WaitForJS      bool   `json:"waitForJs"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func (h *SearchHandler) GoogleSearch(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req googleSearchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.GoogleSearch(c.Context(), id.UID, usecase.GoogleSearchInput{Query: req.Query, Num: req.Num, Start: req.Start})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *SearchHandler) LinkedInSearch(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req linkedInSearchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.LinkedInSearch(c.Context(), id.UID, usecase.LinkedInSearchInput{
		Keywords:       req.Keywords,
		Title:          req.Title,
		Location:       req.Location,
		CurrentCompany: req.CurrentCompany,
		PastCompany:    req.PastCompany,
		School:         req.School,
		Industry:       req.Industry,
		Num:            req.Num,
		Start:          req.Start,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *SearchHandler) PerplexitySearch(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req perplexityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.PerplexitySearch(c.Context(), id.UID, req.Query, req.Focus)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

// LocationSearch is public; the location picker runs before sign-in.
func (h *SearchHandler) LocationSearch(c fiber.Ctx) error {
	var req locationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.LocationSearch(c.Context(), req.Query)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *SearchHandler) FirecrawlURL(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req scrapeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	page, err := h.uc.Scrape(c.Context(), id.UID, usecase.ScrapeInput{
		URL:            req.URL,
		FullPage:       req.ScrapeFullPage,
		ExtractLinks:   req.ExtractLinks,
		WaitForJS:      req.WaitForJS,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, page)
}

func (h *SearchHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/googleSearch", requireAuth, h.GoogleSearch)
	r.Post("/linkedinSearch", requireAuth, h.LinkedInSearch)
	r.Post("/perplexitySearch", requireAuth, h.PerplexitySearch)
	r.Post("/firecrawlUrl", requireAuth, h.FirecrawlURL)
	r.Post("/locationSearch", h.LocationSearch)
}
