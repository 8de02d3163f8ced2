package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"apply-codes/internal/app"
	"apply-codes/internal/chat"
	"apply-codes/internal/config"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/store"

	"github.com/gofiber/fiber/v3"
)

const testSecret = "integration-secret"

type errorResponse struct {
	Status  int             `json:"status"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// fakeVendors answers the PDL and Stripe endpoints the tests hit.
type fakeVendors struct {
	srv       *httptest.Server
	customers atomic.Int32
	sessions  atomic.Int32
}

func newFakeVendors(t *testing.T) *fakeVendors {
	t.Helper()
	v := &fakeVendors{}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v5/person/enrich":
			switch r.URL.Query().Get("email") {
			case "known@example.com":
				_, _ = io.WriteString(w, `{"status":200,"likelihood":8,"data":{"full_name":"Known Person","job_title":"Engineer"}}`)
			case "limited@example.com":
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
			case "badkey@example.com":
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":{"message":"invalid api key"}}`)
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"status":404,"error":{"message":"no records"}}`)
			}
		case r.URL.Path == "/v1/customers":
			n := v.customers.Add(1)
			_, _ = io.WriteString(w, `{"id":"cus_`+strconv.Itoa(int(n))+`"}`)
		case r.URL.Path == "/v1/checkout/sessions":
			v.sessions.Add(1)
			_, _ = io.WriteString(w, `{"id":"cs_test","url":"https://checkout.stripe.test/cs_test"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func newTestApp(t *testing.T, vendors *fakeVendors) (*app.App, string) {
	t.Helper()

	for k, v := range map[string]string{
		"APP_ENV":            "test",
		"DB_HOST":            "",
		"REDIS_DISABLED":     "true",
		"AUTH_PROVIDER":      "hmac",
		"AUTH_HMAC_SECRET":   testSecret,
		"PDL_API_KEY":        "pdl-key",
		"PDL_BASE_URL":       vendors.srv.URL,
		"STRIPE_SECRET_KEY":  "sk_test",
		"STRIPE_BASE_URL":    vendors.srv.URL,
		"GEMINI_API_KEY":     "",
		"CORS_ALLOW_ORIGINS": "*",
	} {
		t.Setenv(k, v)
	}
	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := app.NewContainer(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	// Make the offline model fail so routes take their deterministic paths.
	if s, ok := c.LLM.(*llm.Scripted); ok {
		s.Fallback = func(llm.Request) (llm.Response, error) {
			return llm.Response{}, errors.New("offline")
		}
	}

	tok, err := app.NewTokenService(cfg.Auth).GenerateToken("user-1", "user1@example.com", "User One")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return app.New(c), tok
}

func doJSON(t *testing.T, a *app.App, method, path, token string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.Fiber.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decodeError(t *testing.T, body []byte) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e
}

var booleanOps = regexp.MustCompile(`\b(AND|OR)\b`)

func TestIntegration_ProcessJobRequirements(t *testing.T) {
	a, tok := newTestApp(t, newFakeVendors(t))

	status, body := doJSON(t, a, http.MethodPost, "/processJobRequirements", tok,
		map[string]any{"content": "Senior Go Engineer, Kubernetes"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var res struct {
		SearchString string `json:"searchString"`
		Source       string `json:"source"`
		Requirements struct {
			Title  string   `json:"title"`
			Skills []string `json:"skills"`
		} `json:"requirements"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !booleanOps.MatchString(res.SearchString) {
		t.Fatalf("expected a boolean operator in %q", res.SearchString)
	}
	if !strings.Contains(strings.ToLower(res.SearchString), "kubernetes") {
		t.Fatalf("expected Kubernetes in %q", res.SearchString)
	}
	if res.Source != "fallback" {
		t.Fatalf("expected fallback source, got %q", res.Source)
	}
}

func TestIntegration_DataEnvelopeIsUnwrapped(t *testing.T) {
	a, tok := newTestApp(t, newFakeVendors(t))

	status, body := doJSON(t, a, http.MethodPost, "/processJobRequirements", tok,
		`{"data":{"content":"Staff Rust Engineer, Tokio"}}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), "Tokio") {
		t.Fatalf("expected the enveloped content to be used: %s", body)
	}
}

func TestIntegration_Validation(t *testing.T) {
	a, tok := newTestApp(t, newFakeVendors(t))

	cases := []struct {
		name string
		path string
		body any
		want string
	}{
		{"missing content", "/processJobRequirements", map[string]any{}, "content is required"},
		{"empty body", "/generateBooleanSearch", nil, "description is required"},
		{"not an object", "/processJobRequirements", `[1,2]`, "Request body must be a JSON object"},
		{"no searchable terms", "/processJobRequirements", map[string]any{"content": "!!! ???"}, "content has no searchable terms"},
		{"no person keys", "/enrichProfile", map[string]any{"company": "Acme"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doJSON(t, a, http.MethodPost, tc.path, tok, tc.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", status, body)
			}
			e := decodeError(t, body)
			if e.Status != http.StatusBadRequest {
				t.Fatalf("expected status 400 in body, got %d", e.Status)
			}
			if tc.want != "" && e.Error != tc.want {
				t.Fatalf("expected error %q, got %q", tc.want, e.Error)
			}
		})
	}
}

func TestIntegration_ToolRoutesAreMounted(t *testing.T) {
	a, _ := newTestApp(t, newFakeVendors(t))

	for _, tool := range chat.Tools() {
		status, body := doJSON(t, a, http.MethodPost, tool.Route, "", map[string]any{})
		if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
			t.Fatalf("%s %s is not mounted: %d %s", tool.Name, tool.Route, status, body)
		}
	}
}

func TestIntegration_ParseDocument(t *testing.T) {
	a, tok := newTestApp(t, newFakeVendors(t))

	status, body := doJSON(t, a, http.MethodPost, "/parseDocument", tok, map[string]any{
		"documentText": "# Jane Doe\n\nGo engineer.\n\n## Skills\n\n| Skill | Years |\n| --- | --- |\n| Go | 6 |\n",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var res struct {
		DocumentType string `json:"documentType"`
		Sections     []struct {
			Heading string `json:"heading"`
		} `json:"sections"`
		Tables []struct {
			Headers []string `json:"headers"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.DocumentType != "markdown" {
		t.Fatalf("expected markdown, got %q", res.DocumentType)
	}
	if len(res.Sections) != 2 || res.Sections[1].Heading != "Skills" {
		t.Fatalf("unexpected sections: %s", body)
	}
	if len(res.Tables) != 1 || res.Tables[0].Headers[0] != "Skill" {
		t.Fatalf("expected the skills table, got %s", body)
	}
}

func TestIntegration_Auth(t *testing.T) {
	a, _ := newTestApp(t, newFakeVendors(t))

	status, body := doJSON(t, a, http.MethodPost, "/processJobRequirements", "", map[string]any{"content": "Go"})
	if status != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", status)
	}
	if e := decodeError(t, body); e.Error != "Unauthorized" {
		t.Fatalf("no token: unexpected error %q", e.Error)
	}

	status, body = doJSON(t, a, http.MethodPost, "/processJobRequirements", "not-a-jwt", map[string]any{"content": "Go"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", status)
	}
	if e := decodeError(t, body); e.Error != "Invalid token" {
		t.Fatalf("bad token: unexpected error %q", e.Error)
	}

	// public routes stay reachable without a token
	status, _ = doJSON(t, a, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", status)
	}
	status, _ = doJSON(t, a, http.MethodGet, "/api/capabilities", "", nil)
	if status != http.StatusOK {
		t.Fatalf("capabilities: expected 200, got %d", status)
	}
}

func TestIntegration_EnrichProfile(t *testing.T) {
	a, tok := newTestApp(t, newFakeVendors(t))

	status, body := doJSON(t, a, http.MethodPost, "/enrichProfile", tok, map[string]any{"email": "nobody@example.com"})
	if status != http.StatusOK {
		t.Fatalf("miss: expected 200, got %d: %s", status, body)
	}
	var miss map[string]any
	if err := json.Unmarshal(body, &miss); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if miss["found"] != false {
		t.Fatalf("miss: expected found=false, got %v", miss["found"])
	}
	if v, ok := miss["data"]; !ok || v != nil {
		t.Fatalf("miss: expected data=null, got %v", v)
	}

	status, body = doJSON(t, a, http.MethodPost, "/enrichProfile", tok, map[string]any{"email": "known@example.com"})
	if status != http.StatusOK {
		t.Fatalf("hit: expected 200, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), `"found":true`) {
		t.Fatalf("hit: expected found=true: %s", body)
	}

	for email, want := range map[string]int{
		"limited@example.com": http.StatusTooManyRequests,
		"badkey@example.com":  http.StatusUnauthorized,
	} {
		status, body = doJSON(t, a, http.MethodPost, "/enrichProfile", tok, map[string]any{"email": email})
		if status != want {
			t.Fatalf("%s: expected %d, got %d: %s", email, want, status, body)
		}
		e := decodeError(t, body)
		if !strings.Contains(string(e.Details), "peopledatalabs") {
			t.Fatalf("%s: expected vendor in details, got %s", email, e.Details)
		}
	}
}

func TestIntegration_CheckoutCreatesOneCustomer(t *testing.T) {
	vendors := newFakeVendors(t)
	a, tok := newTestApp(t, vendors)

	for i := 0; i < 2; i++ {
		status, body := doJSON(t, a, http.MethodPost, "/createCheckoutSession", tok,
			map[string]any{"priceId": "price_123"}, "Idempotency-Key", "checkout-"+strconv.Itoa(i))
		if status != http.StatusOK {
			t.Fatalf("checkout %d: expected 200, got %d: %s", i, status, body)
		}
		if !strings.Contains(string(body), "checkout.stripe.test") {
			t.Fatalf("checkout %d: expected checkout url: %s", i, body)
		}
	}
	if got := vendors.customers.Load(); got != 1 {
		t.Fatalf("expected one Stripe customer, got %d", got)
	}
	if got := vendors.sessions.Load(); got != 2 {
		t.Fatalf("expected two checkout sessions, got %d", got)
	}
}

func TestIntegration_SendGridDeliveredIsIdempotent(t *testing.T) {
	a, _ := newTestApp(t, newFakeVendors(t))

	ctx := context.Background()
	st := a.Container.Store
	if err := st.Set(ctx, store.CollectionEmailLogs, "log-1", map[string]any{"user_id": "user-1", "status": "sent"}); err != nil {
		t.Fatalf("seed email log: %v", err)
	}

	events := `[{"sg_event_id":"evt-1","event":"delivered","email":"to@example.com","timestamp":1700000000,"emailLogId":"log-1","userId":"user-1"}]`
	var results []map[string]any
	for i := 0; i < 2; i++ {
		status, body := doJSON(t, a, http.MethodPost, "/sendgridWebhook", "", events)
		if status != http.StatusOK {
			t.Fatalf("webhook %d: expected 200, got %d: %s", i, status, body)
		}
		var res map[string]any
		if err := json.Unmarshal(body, &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		results = append(results, res)
	}
	if results[0]["processed"] != float64(1) {
		t.Fatalf("first delivery: expected processed=1, got %v", results[0])
	}
	if results[1]["duplicates"] != float64(1) || results[1]["processed"] != float64(0) {
		t.Fatalf("redelivery: expected one duplicate, got %v", results[1])
	}

	doc, err := st.Get(ctx, store.CollectionEmailLogs, "log-1")
	if err != nil {
		t.Fatalf("read email log: %v", err)
	}
	if doc.String("status") != "delivered" {
		t.Fatalf("expected delivered status, got %q", doc.String("status"))
	}
}

func TestIntegration_CORSPreflight(t *testing.T) {
	a, _ := newTestApp(t, newFakeVendors(t))

	req := httptest.NewRequest(http.MethodOptions, "/processJobRequirements", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")

	resp, err := a.Fiber.Test(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected allow-origin *, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("expected POST in allow-methods, got %q", got)
	}
}
