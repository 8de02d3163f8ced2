package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	netmail "net/mail"
	"strings"
	"sync"
	"text/template"
	"time"

	"apply-codes/internal/domain/email"
	"apply-codes/internal/infrastructure/mail"
	"apply-codes/internal/logger"
	"apply-codes/internal/store"
	"apply-codes/internal/worker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Custom args attached to every message; the event webhook reads them back.
const (
	ArgEmailLogID = "emailLogId"
	ArgUserID     = "userId"
	ArgCampaignID = "campaignId"
)

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (string, error)
}

type EmailConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

type SendEmailInput struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	Body     string
	FromName string
	ReplyTo  string
}

type SendEmailResult struct {
	Success      bool      `json:"success"`
	MessageID    string    `json:"messageId"`
	EmailLogID   string    `json:"emailLogId"`
	Timestamp    time.Time `json:"timestamp"`
	TemplateUsed string    `json:"templateUsed,omitempty"`
}

type OutreachInput struct {
	CandidateEmail  string
	CandidateName   string
	JobTitle        string
	TemplateType    string
	Personalization string
	CompanyName     string
	SenderName      string
}

type Recipient struct {
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	CustomFields map[string]string `json:"customFields"`
}

type CampaignInput struct {
	Name        string
	Recipients  []Recipient
	Subject     string
	Body        string
	TrackOpens  bool
	TrackClicks bool
}

type CampaignResult struct {
	CampaignID      string `json:"campaignId"`
	TotalRecipients int    `json:"totalRecipients"`
	Sent            int    `json:"sent"`
	Failed          int    `json:"failed"`
	Skipped         int    `json:"skipped"`
	Unsent          int    `json:"unsent"`
	Status          string `json:"status"`
}

type EmailUsecase interface {
	SendEmail(ctx context.Context, userID string, in SendEmailInput) (SendEmailResult, error)
	SendOutreachEmail(ctx context.Context, userID string, in OutreachInput) (SendEmailResult, error)
	SendCampaignEmail(ctx context.Context, userID string, in CampaignInput) (CampaignResult, error)
}

type Email struct {
	mailer Mailer
	store  store.Store
	cfg    EmailConfig
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewEmailUsecase(mailer Mailer, s store.Store, cfg EmailConfig, log *zap.Logger) *Email {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Email{
		mailer: mailer,
		store:  s,
		cfg:    cfg,
		logger: logger.OrNop(log),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (u *Email) SendEmail(ctx context.Context, userID string, in SendEmailInput) (SendEmailResult, error) {
	to, err := parseAddresses("to", in.To)
	if err != nil {
		return SendEmailResult{}, err
	}
	if len(to) == 0 {
		return SendEmailResult{}, invalid("to is required")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return SendEmailResult{}, invalid("subject is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return SendEmailResult{}, invalid("body is required")
	}
	cc, err := parseAddresses("cc", in.CC)
	if err != nil {
		return SendEmailResult{}, err
	}
	bcc, err := parseAddresses("bcc", in.BCC)
	if err != nil {
		return SendEmailResult{}, err
	}

	msg := mail.Message{To: to, CC: cc, BCC: bcc, Subject: strings.TrimSpace(in.Subject), Category: "transactional", TrackOpens: true, TrackClicks: true}
	msg.Text, msg.HTML = bodyParts(in.Body)
	if name := strings.TrimSpace(in.FromName); name != "" {
		msg.From = &mail.Address{Name: name}
	}
	if r := strings.TrimSpace(in.ReplyTo); r != "" {
		addr, err := netmail.ParseAddress(r)
		if err != nil {
			return SendEmailResult{}, invalid("replyTo is not a valid email address")
		}
		msg.ReplyTo = &mail.Address{Email: addr.Address, Name: addr.Name}
	}
	return u.deliver(ctx, userID, msg, "", "")
}

type outreachTemplate struct {
	Subject string
	Body    *template.Template
}

var outreachTemplates = map[string]outreachTemplate{
	"initial": {
		Subject: "{{.JobTitle}} opportunity{{if .CompanyName}} at {{.CompanyName}}{{end}}",
		Body: template.Must(template.New("initial").Parse(`Hi {{.FirstName}},

I came across your profile and think you could be a great fit for our {{.JobTitle}} role{{if .CompanyName}} at {{.CompanyName}}{{end}}.
{{if .Personalization}}
{{.Personalization}}
{{end}}
Would you be open to a short call this week?

Best,
{{.SenderName}}`)),
	},
	"follow_up": {
		Subject: "Following up: {{.JobTitle}}",
		Body: template.Must(template.New("follow_up").Parse(`Hi {{.FirstName}},

I wanted to follow up on my earlier note about the {{.JobTitle}} position{{if .CompanyName}} at {{.CompanyName}}{{end}}.
{{if .Personalization}}
{{.Personalization}}
{{end}}
Happy to share more details whenever suits you.

Best,
{{.SenderName}}`)),
	},
	"interview_invite": {
		Subject: "Interview invitation: {{.JobTitle}}",
		Body: template.Must(template.New("interview_invite").Parse(`Hi {{.FirstName}},

Thank you for your interest in the {{.JobTitle}} role{{if .CompanyName}} at {{.CompanyName}}{{end}}. We would like to invite you to an interview.
{{if .Personalization}}
{{.Personalization}}
{{end}}
Please reply with a few times that work for you.

Best,
{{.SenderName}}`)),
	},
}

func (u *Email) SendOutreachEmail(ctx context.Context, userID string, in OutreachInput) (SendEmailResult, error) {
	addr, err := netmail.ParseAddress(strings.TrimSpace(in.CandidateEmail))
	if strings.TrimSpace(in.CandidateEmail) == "" {
		return SendEmailResult{}, invalid("candidateEmail is required")
	}
	if err != nil {
		return SendEmailResult{}, invalid("candidateEmail is not a valid email address")
	}
	if strings.TrimSpace(in.CandidateName) == "" {
		return SendEmailResult{}, invalid("candidateName is required")
	}
	if strings.TrimSpace(in.JobTitle) == "" {
		return SendEmailResult{}, invalid("jobTitle is required")
	}

	name := strings.TrimSpace(in.TemplateType)
	if name == "" {
		name = "initial"
	}
	tpl, ok := outreachTemplates[name]
	if !ok {
		return SendEmailResult{}, invalid("unknown templateType %q", name)
	}

	data := map[string]string{
		"FirstName":       strings.Fields(in.CandidateName)[0],
		"JobTitle":        strings.TrimSpace(in.JobTitle),
		"CompanyName":     strings.TrimSpace(in.CompanyName),
		"Personalization": strings.TrimSpace(in.Personalization),
		"SenderName":      firstNonEmpty(in.SenderName, "The hiring team"),
	}
	var body strings.Builder
	if err := tpl.Body.Execute(&body, data); err != nil {
		return SendEmailResult{}, fmt.Errorf("%w: render outreach template: %v", ErrInternal, err)
	}
	subject, err := renderString(tpl.Subject, data)
	if err != nil {
		return SendEmailResult{}, fmt.Errorf("%w: render outreach subject: %v", ErrInternal, err)
	}

	msg := mail.Message{
		To:          []mail.Address{{Email: addr.Address, Name: strings.TrimSpace(in.CandidateName)}},
		Subject:     subject,
		Category:    "outreach",
		TrackOpens:  true,
		TrackClicks: true,
	}
	msg.Text, msg.HTML = bodyParts(body.String())
	if s := strings.TrimSpace(in.SenderName); s != "" {
		msg.From = &mail.Address{Name: s}
	}
	res, err := u.deliver(ctx, userID, msg, "", name)
	res.TemplateUsed = name
	return res, err
}

// SendCampaignEmail sends one personalised message per recipient in
// batches of cfg.BatchSize, waiting cfg.BatchDelay between batches.
// Suppressed addresses are skipped.
func (u *Email) SendCampaignEmail(ctx context.Context, userID string, in CampaignInput) (CampaignResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return CampaignResult{}, invalid("campaignName is required")
	}
	if len(in.Recipients) == 0 {
		return CampaignResult{}, invalid("recipientList is required")
	}
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Body) == "" {
		return CampaignResult{}, invalid("templateContent.subject and templateContent.body are required")
	}

	recipients := make([]Recipient, 0, len(in.Recipients))
	seen := map[string]bool{}
	for i, r := range in.Recipients {
		addr, err := netmail.ParseAddress(strings.TrimSpace(r.Email))
		if err != nil {
			return CampaignResult{}, invalid("recipientList[%d].email is not a valid email address", i)
		}
		key := strings.ToLower(addr.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		r.Email = addr.Address
		recipients = append(recipients, r)
	}

	campaignID := u.newID()
	res := CampaignResult{CampaignID: campaignID, TotalRecipients: len(recipients), Status: email.CampaignSending}
	campaign := email.Campaign{
		UserID:          userID,
		Name:            name,
		Subject:         in.Subject,
		Status:          email.CampaignSending,
		TotalRecipients: len(recipients),
		Stats:           map[string]int{},
		CreatedAt:       u.now().UTC(),
	}
	if err := u.store.Set(ctx, store.CollectionCampaigns, campaignID, campaign); err != nil {
		u.logger.Warn("campaign record failed", zap.String("campaign_id", campaignID), zap.Error(err))
	}

	var sendable []Recipient
	for _, r := range recipients {
		if u.suppressed(ctx, r.Email) {
			res.Skipped++
			continue
		}
		sendable = append(sendable, r)
	}

	batches := chunk(sendable, u.cfg.BatchSize)
	pool := worker.NewPool(1, len(batches))
	pool.SetInterval(u.cfg.BatchDelay)

	var mu sync.Mutex
	for _, batch := range batches {
		pool.Submit(func(ctx context.Context) error {
			for _, r := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				msg := mail.Message{
					To:          []mail.Address{{Email: r.Email, Name: r.Name}},
					Subject:     personalize(in.Subject, r),
					Category:    "campaign",
					TrackOpens:  in.TrackOpens,
					TrackClicks: in.TrackClicks,
				}
				msg.Text, msg.HTML = bodyParts(personalize(in.Body, r))
				_, err := u.deliver(ctx, userID, msg, campaignID, "")
				mu.Lock()
				if err != nil {
					res.Failed++
				} else {
					res.Sent++
				}
				mu.Unlock()
				if errors.Is(err, context.Canceled) {
					return err
				}
			}
			return nil
		})
	}
	pool.Close()
	drainErr := worker.Drain(pool.Run(ctx))
	res.Unsent = len(sendable) - res.Sent - res.Failed

	switch {
	case drainErr != nil || res.Unsent > 0:
		res.Status = email.CampaignInterrupted
		u.logger.Warn("campaign interrupted",
			zap.String("campaign_id", campaignID),
			zap.Int("unsent", res.Unsent),
			zap.Error(drainErr),
		)
	case res.Sent == 0 && res.Failed > 0:
		res.Status = email.CampaignFailed
	default:
		res.Status = email.CampaignCompleted
	}
	// the request context may already be done; the record must still close
	err := u.store.Merge(context.WithoutCancel(ctx), store.CollectionCampaigns, campaignID, map[string]any{
		"status":       res.Status,
		"sent":         res.Sent,
		"failed":       res.Failed,
		"skipped":      res.Skipped,
		"unsent":       res.Unsent,
		"completed_at": u.now().UTC(),
	})
	if err != nil {
		u.logger.Warn("campaign update failed", zap.String("campaign_id", campaignID), zap.Error(err))
	}
	u.logger.Info("campaign finished",
		zap.String("campaign_id", campaignID),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.String("status", res.Status),
	)
	return res, nil
}

// deliver sends msg and writes its email_logs record. A vendor failure is
// recorded as a failed log and returned.
func (u *Email) deliver(ctx context.Context, userID string, msg mail.Message, campaignID, templateName string) (SendEmailResult, error) {
	logID := u.newID()
	msg.CustomArgs = map[string]string{ArgEmailLogID: logID, ArgUserID: userID}
	if campaignID != "" {
		msg.CustomArgs[ArgCampaignID] = campaignID
	}

	messageID, sendErr := u.mailer.Send(ctx, msg)
	now := u.now().UTC()

	rec := email.Log{
		UserID:     userID,
		To:         addressList(msg.To),
		Subject:    msg.Subject,
		Status:     email.StatusSent,
		MessageID:  messageID,
		CampaignID: campaignID,
		Template:   templateName,
		SentAt:     now,
	}
	if sendErr != nil {
		rec.Status = email.StatusFailed
		rec.Error = sendErr.Error()
	}
	// a message that left SendGrid needs its log even if the caller is gone
	if err := u.store.Set(context.WithoutCancel(ctx), store.CollectionEmailLogs, logID, rec); err != nil {
		u.logger.Warn("email log write failed", zap.String("email_log_id", logID), zap.Error(err))
	}

	if sendErr != nil {
		u.logger.Warn("email send failed", zap.String("email_log_id", logID), zap.Error(sendErr))
		return SendEmailResult{}, sendErr
	}
	return SendEmailResult{Success: true, MessageID: messageID, EmailLogID: logID, Timestamp: now}, nil
}

func (u *Email) suppressed(ctx context.Context, addr string) bool {
	doc, err := u.store.Get(ctx, store.CollectionSubscribers, strings.ToLower(addr))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			u.logger.Warn("subscriber lookup failed", zap.Error(err))
		}
		return false
	}
	return email.Suppressed(doc.String("status"))
}

func parseAddresses(field string, in []string) ([]mail.Address, error) {
	var out []mail.Address
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := netmail.ParseAddress(raw)
		if err != nil {
			return nil, invalid("%s contains an invalid email address: %s", field, raw)
		}
		out = append(out, mail.Address{Email: addr.Address, Name: addr.Name})
	}
	return out, nil
}

func addressList(in []mail.Address) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, a.Email)
	}
	return out
}

// bodyParts treats markup as HTML; plain text gets an HTML twin with one
// paragraph per blank-line block.
func bodyParts(body string) (text, htmlBody string) {
	body = strings.TrimSpace(body)
	if strings.Contains(body, "<") && strings.Contains(body, ">") {
		return "", body
	}
	var b strings.Builder
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return body, b.String()
}

func renderString(tpl string, data any) (string, error) {
	t, err := template.New("s").Parse(tpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return ""
}

// personalize fills {{name}}, {{firstName}}, {{email}} and {{<customField>}}.
func personalize(s string, r Recipient) string {
	pairs := []string{"{{name}}", r.Name, "{{firstName}}", firstName(r.Name), "{{email}}", r.Email}
	for k, v := range r.CustomFields {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func chunk[T any](in []T, size int) [][]T {
	if size <= 0 {
		size = len(in)
	}
	var out [][]T
	for size < len(in) {
		in, out = in[size:], append(out, in[:size:size])
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}
