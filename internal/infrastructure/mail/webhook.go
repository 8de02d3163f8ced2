package mail

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	SignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	TimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPublicKey = errors.New("invalid webhook public key")
	ErrInvalidPayload   = errors.New("webhook payload must be a JSON array of events")
)

// Verifier checks the signed event webhook. A nil Verifier accepts everything.
type Verifier struct {
	key *ecdsa.PublicKey
}

// NewVerifier parses the base64 DER public key shown in the SendGrid console.
// An empty key yields a nil Verifier.
func NewVerifier(publicKey string) (*Verifier, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return nil, nil
	}
	der, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ECDSA key", ErrInvalidPublicKey)
	}
	return &Verifier{key: key}, nil
}

// Verify checks signature over timestamp followed by the raw payload.
func (v *Verifier) Verify(payload []byte, signature, timestamp string) error {
	if v == nil {
		return nil
	}
	signature, timestamp = strings.TrimSpace(signature), strings.TrimSpace(timestamp)
	if signature == "" || timestamp == "" {
		return ErrMissingSignature
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write(payload)
	if !ecdsa.VerifyASN1(v.key, h.Sum(nil), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Event is one entry of the event webhook batch. Custom args sent with the
// message arrive as top-level keys and are kept in Args.
type Event struct {
	ID        string `mapstructure:"sg_event_id"`
	MessageID string `mapstructure:"sg_message_id"`
	Type      string `mapstructure:"event"`
	Email     string `mapstructure:"email"`
	Timestamp int64  `mapstructure:"timestamp"`
	Reason    string `mapstructure:"reason"`
	Status    string `mapstructure:"status"`
	URL       string `mapstructure:"url"`
	UserAgent string `mapstructure:"useragent"`
	IP        string `mapstructure:"ip"`

	Args map[string]any `mapstructure:",remain"`
}

// Arg returns a custom arg as a string.
func (e Event) Arg(key string) string {
	switch v := e.Args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ParseEvents decodes the webhook body. Entries that are not objects are skipped.
func ParseEvents(payload []byte) ([]Event, error) {
	var raw []any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrInvalidPayload
	}
	events := make([]Event, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var ev Event
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &ev,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(obj); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
		ev.Email = strings.TrimSpace(ev.Email)
		events = append(events, ev)
	}
	return events, nil
}
