package handler

import (
	"encoding/json"
	"errors"

	"apply-codes/internal/delivery/http/middleware"
	"apply-codes/internal/infrastructure/mail"
	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type EmailHandler struct {
	uc      usecase.EmailUsecase
	webhook usecase.EmailWebhookUsecase
}

func NewEmailHandler(uc usecase.EmailUsecase, webhook usecase.EmailWebhookUsecase) *EmailHandler {
	return &EmailHandler{uc: uc, webhook: webhook}
}

// addressList accepts either "a@x" or ["a@x", "b@x"].
type addressList []string

func (a *addressList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*a = addressList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

type sendEmailRequest struct {
	To       addressList `json:"to"`
	CC       addressList `json:"cc"`
	BCC      addressList `json:"bcc"`
	Subject  string      `json:"subject"`
	Body     string      `json:"body"`
	FromName string      `json:"fromName"`
	ReplyTo  string      `json:"replyTo"`
}

type outreachRequest struct {
	CandidateEmail  string `json:"candidateEmail"`
	CandidateName   string `json:"candidateName"`
	JobTitle        string `json:"jobTitle"`
	TemplateType    string `json:"templateType"`
	Personalization string `json:"personalization"`
	CompanyName     string `json:"companyName"`
	SenderName      string `json:"senderName"`
}

type campaignRequest struct {
	CampaignName    string              `json:"campaignName"`
	RecipientList   []usecase.Recipient `json:"recipientList"`
	TemplateContent struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	} `json:"templateContent"`
	TrackOpens  bool `json:"trackOpens"`
	TrackClicks bool `json:"trackClicks"`
}

func (h *EmailHandler) SendEmail(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req sendEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.SendEmail(c.Context(), id.UID, usecase.SendEmailInput{
		To:       req.To,
		CC:       req.CC,
		BCC:      req.BCC,
		Subject:  req.Subject,
		Body:     req.Body,
		FromName: req.FromName,
		ReplyTo:  req.ReplyTo,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *EmailHandler) SendOutreachEmail(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req outreachRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.SendOutreachEmail(c.Context(), id.UID, usecase.OutreachInput{
		CandidateEmail:  req.CandidateEmail,
		CandidateName:   req.CandidateName,
		JobTitle:        req.JobTitle,
		TemplateType:    req.TemplateType,
		Personalization: req.Personalization,
		CompanyName:     req.CompanyName,
		SenderName:      req.SenderName,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *EmailHandler) SendCampaignEmail(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req campaignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.uc.SendCampaignEmail(c.Context(), id.UID, usecase.CampaignInput{
		Name:        req.CampaignName,
		Recipients:  req.RecipientList,
		Subject:     req.TemplateContent.Subject,
		Body:        req.TemplateContent.Body,
		TrackOpens:  req.TrackOpens,
		TrackClicks: req.TrackClicks,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

// SendGridWebhook answers 500 when any event failed so SendGrid retries the
// batch; events already applied are skipped on the retry.
func (h *EmailHandler) SendGridWebhook(c fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	res, err := h.webhook.HandleEvents(c.Context(), payload, c.Get(mail.SignatureHeader), c.Get(mail.TimestampHeader))
	if err != nil {
		if errors.Is(err, usecase.ErrUnauthorized) {
			return middleware.NewAppError(fiber.StatusUnauthorized, "Webhook signature verification failed", nil, err)
		}
		if errors.Is(err, usecase.ErrInternal) {
			return middleware.NewAppError(fiber.StatusInternalServerError, "Some events could not be processed", res, err)
		}
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *EmailHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/sendEmail", requireAuth, h.SendEmail)
	r.Post("/sendOutreachEmail", requireAuth, h.SendOutreachEmail)
	r.Post("/sendCampaignEmail", requireAuth, h.SendCampaignEmail)
	r.Post("/sendgridWebhook", h.SendGridWebhook)
}
