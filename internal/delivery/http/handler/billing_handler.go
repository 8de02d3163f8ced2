package handler

import (
	"errors"

	"apply-codes/internal/delivery/http/middleware"
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

const headerStripeSignature = "Stripe-Signature"

type BillingHandler struct {
	uc usecase.BillingUsecase
}

func NewBillingHandler(uc usecase.BillingUsecase) *BillingHandler {
	return &BillingHandler{uc: uc}
}

type checkoutRequest struct {
	PriceID    string `json:"priceId"`
	Mode       string `json:"mode"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

func (h *BillingHandler) CreateCheckoutSession(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.uc.CreateCheckoutSession(c.Context(), id, usecase.CheckoutInput{
		PriceID:        req.PriceID,
		Mode:           req.Mode,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: c.Get(middleware.HeaderIdempotencyKey),
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *BillingHandler) CreatePortalSession(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req portalRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.uc.CreatePortalSession(c.Context(), id, req.ReturnURL)
	if err != nil {
		if errors.Is(err, usecase.ErrNotFound) {
			return middleware.NewAppError(fiber.StatusNotFound, "No billing account for this user", nil, err)
		}
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

// StripeWebhook verifies the signature over the raw body, so the body is
// never re-encoded before it reaches the usecase.
func (h *BillingHandler) StripeWebhook(c fiber.Ctx) error {
	sig := c.Get(headerStripeSignature)
	if sig == "" {
		return badRequest("Missing Stripe-Signature header")
	}

	payload := append([]byte(nil), c.Body()...)
	res, err := h.uc.HandleWebhook(c.Context(), payload, sig)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidInput) {
			return middleware.NewAppError(fiber.StatusBadRequest, "Webhook signature verification failed", nil, err)
		}
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *BillingHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/createCheckoutSession", requireAuth, h.CreateCheckoutSession)
	r.Post("/createPortalSession", requireAuth, h.CreatePortalSession)
	r.Post("/stripeWebhook", h.StripeWebhook)
}
