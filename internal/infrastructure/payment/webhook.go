package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing stripe signature")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrStaleSignature   = errors.New("stripe signature timestamp outside tolerance")
)

// DefaultTolerance is how far the signed timestamp may be from now.
const DefaultTolerance = 5 * time.Minute

// Event is the part of a Stripe event the webhook handler reads.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object map[string]any `json:"object"`
	} `json:"data"`
}

// ConstructEvent verifies the Stripe-Signature header over payload and
// decodes the event. The header carries "t=<unix>" and one or more
// "v1=<hex hmac>" entries; any matching v1 passes.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration, now time.Time) (Event, error) {
	if strings.TrimSpace(header) == "" {
		return Event{}, ErrMissingSignature
	}
	if secret == "" {
		return Event{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidSignature)
	}

	var ts int64
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Event{}, ErrInvalidSignature
			}
			ts = n
		case "v1":
			if b, err := hex.DecodeString(v); err == nil {
				sigs = append(sigs, b)
			}
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return Event{}, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	matched := false
	for _, s := range sigs {
		if hmac.Equal(s, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return Event{}, ErrInvalidSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return Event{}, ErrStaleSignature
		}
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode stripe event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("decode stripe event: missing id or type")
	}
	return ev, nil
}

// Sign builds a Stripe-Signature header value for payload.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
