// Package mail sends transactional email through SendGrid and reads its event webhook.
package mail

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorSendGrid = "sendgrid"

var ErrNoRecipient = errors.New("email needs at least one recipient")

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Message struct {
	To       []Address
	CC       []Address
	BCC      []Address
	From     *Address
	ReplyTo  *Address
	Subject  string
	HTML     string
	Text     string
	Category string
	// CustomArgs come back on every webhook event for the message.
	CustomArgs  map[string]string
	TrackOpens  bool
	TrackClicks bool
}

type SendGrid struct {
	api  *vendor.Client
	from Address
}

// NewSendGrid returns nil when apiKey is empty.
func NewSendGrid(apiKey, baseURL, fromEmail, fromName string, logger *zap.Logger, opts ...vendor.Option) *SendGrid {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	opts = append([]vendor.Option{vendor.WithBearer(apiKey)}, opts...)
	return &SendGrid{
		api:  vendor.New(VendorSendGrid, baseURL, logger, opts...),
		from: Address{Email: strings.TrimSpace(fromEmail), Name: strings.TrimSpace(fromName)},
	}
}

type personalization struct {
	To  []Address `json:"to"`
	CC  []Address `json:"cc,omitempty"`
	BCC []Address `json:"bcc,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type toggle struct {
	Enable bool `json:"enable"`
}

type trackingSettings struct {
	ClickTracking toggle `json:"click_tracking"`
	OpenTracking  toggle `json:"open_tracking"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             Address           `json:"from"`
	ReplyTo          *Address          `json:"reply_to,omitempty"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
	Categories       []string          `json:"categories,omitempty"`
	CustomArgs       map[string]string `json:"custom_args,omitempty"`
	TrackingSettings trackingSettings  `json:"tracking_settings"`
}

// Send posts one message and returns SendGrid's X-Message-Id, which may be empty.
func (s *SendGrid) Send(ctx context.Context, msg Message) (string, error) {
	if s == nil {
		return "", vendor.NotConfigured(VendorSendGrid)
	}
	to := cleanAddresses(msg.To)
	if len(to) == 0 {
		return "", ErrNoRecipient
	}

	from := s.from
	if msg.From != nil {
		if e := strings.TrimSpace(msg.From.Email); e != "" {
			from.Email = e
		}
		if n := strings.TrimSpace(msg.From.Name); n != "" {
			from.Name = n
		}
	}

	body := sendRequest{
		Personalizations: []personalization{{To: to, CC: cleanAddresses(msg.CC), BCC: cleanAddresses(msg.BCC)}},
		From:             from,
		ReplyTo:          msg.ReplyTo,
		Subject:          msg.Subject,
		CustomArgs:       msg.CustomArgs,
		TrackingSettings: trackingSettings{
			ClickTracking: toggle{Enable: msg.TrackClicks},
			OpenTracking:  toggle{Enable: msg.TrackOpens},
		},
	}
	if msg.Category != "" {
		body.Categories = []string{msg.Category}
	}
	// text/plain must come first when both parts are present.
	if msg.Text != "" {
		body.Content = append(body.Content, content{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		body.Content = append(body.Content, content{Type: "text/html", Value: msg.HTML})
	}
	if len(body.Content) == 0 {
		body.Content = []content{{Type: "text/plain", Value: " "}}
	}

	header := http.Header{}
	if err := s.api.Do(ctx, vendor.Request{
		Method:         http.MethodPost,
		Path:           "/v3/mail/send",
		JSON:           body,
		ResponseHeader: header,
	}, nil); err != nil {
		return "", err
	}
	return header.Get("X-Message-Id"), nil
}

func cleanAddresses(in []Address) []Address {
	var out []Address
	seen := map[string]struct{}{}
	for _, a := range in {
		e := strings.TrimSpace(a.Email)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Address{Email: e, Name: strings.TrimSpace(a.Name)})
	}
	return out
}
