package handler

import (
	"context"

	"apply-codes/internal/infrastructure/enrichment"
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type EnrichmentHandler struct {
	uc usecase.EnrichmentUsecase
}

func NewEnrichmentHandler(uc usecase.EnrichmentUsecase) *EnrichmentHandler {
	return &EnrichmentHandler{uc: uc}
}

type personRequest struct {
	Email       string `json:"email"`
	LinkedInURL string `json:"linkedinUrl"`
	Name        string `json:"name"`
	Company     string `json:"company"`
}

func (r personRequest) query() enrichment.PersonQuery {
	return enrichment.PersonQuery{Email: r.Email, LinkedInURL: r.LinkedInURL, Name: r.Name, Company: r.Company}
}

type peopleSearchRequest struct {
	Query      string            `json:"query"`
	Filters    map[string]string `json:"filters"`
	MaxResults int               `json:"maxResults"`
}

type clearbitRequest struct {
	Email  string `json:"email"`
	Domain string `json:"domain"`
}

type hunterRequest struct {
	Domain    string `json:"domain"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Limit     int    `json:"limit"`
}

type githubRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *EnrichmentHandler) EnrichProfile(c fiber.Ctx) error {
	return h.person(c, h.uc.EnrichProfile)
}

func (h *EnrichmentHandler) GetContactInfo(c fiber.Ctx) error {
	return h.person(c, h.uc.ContactInfo)
}

func (h *EnrichmentHandler) person(c fiber.Ctx, lookup func(ctx context.Context, uid string, q enrichment.PersonQuery) (usecase.EnrichmentResult, error)) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req personRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := lookup(c.Context(), id.UID, req.query())
	return enrichmentResponse(c, res, err)
}

func (h *EnrichmentHandler) searchPeople(kind string) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		var req peopleSearchRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		res, err := h.uc.SearchPeople(c.Context(), id.UID, kind, usecase.PeopleSearchInput{
			Query:      req.Query,
			Filters:    req.Filters,
			MaxResults: req.MaxResults,
		})
		return enrichmentResponse(c, res, err)
	}
}

func (h *EnrichmentHandler) Clearbit(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req clearbitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.Clearbit(c.Context(), id.UID, req.Email, req.Domain)
	return enrichmentResponse(c, res, err)
}

func (h *EnrichmentHandler) Hunter(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req hunterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.Hunter(c.Context(), id.UID, usecase.HunterInput{
		Domain:    req.Domain,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Limit:     req.Limit,
	})
	return enrichmentResponse(c, res, err)
}

func (h *EnrichmentHandler) GitHub(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req githubRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.GitHub(c.Context(), id.UID, req.Username, req.Email)
	return enrichmentResponse(c, res, err)
}

// enrichmentResponse writes misses as 200 {found:false, data:null}; the
// usecase already folds vendor 404s into a miss.
func enrichmentResponse(c fiber.Ctx, res usecase.EnrichmentResult, err error) error {
	if err != nil {
		return mapUsecaseError(err)
	}
	if !res.Found {
		res.Data = nil
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *EnrichmentHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/enrichProfile", requireAuth, h.EnrichProfile)
	r.Post("/getContactInfo", requireAuth, h.GetContactInfo)
	r.Post("/pdlSearch", requireAuth, h.searchPeople("pdlSearch"))
	r.Post("/searchContacts", requireAuth, h.searchPeople("searchContacts"))
	r.Post("/clearbitEnrichment", requireAuth, h.Clearbit)
	r.Post("/hunterIoSearch", requireAuth, h.Hunter)
	r.Post("/githubProfile", requireAuth, h.GitHub)
}
