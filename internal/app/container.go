package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apply-codes/internal/chat"
	"apply-codes/internal/config"
	"apply-codes/internal/database"
	"apply-codes/internal/database/migration"
	dbpostgres "apply-codes/internal/database/postgres"
	"apply-codes/internal/infrastructure/cache"
	"apply-codes/internal/infrastructure/enrichment"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/infrastructure/mail"
	"apply-codes/internal/infrastructure/meeting"
	"apply-codes/internal/infrastructure/payment"
	"apply-codes/internal/infrastructure/scraper"
	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/infrastructure/websearch"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/auth"
	"apply-codes/internal/pkg/jwt"
	"apply-codes/internal/pkg/secretbox"
	"apply-codes/internal/prompts"
	"apply-codes/internal/store"
	"apply-codes/internal/usecase"
	"apply-codes/internal/ws"
	"apply-codes/migrations"

	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const EnvProduction = "production"

type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	DB       database.DB
	Store    store.Store
	Cache    *cache.Redis
	Verifier auth.Verifier
	LLM      llm.Generator
	Hub      *ws.Hub

	Boolean      *usecase.Boolean
	Generation   *usecase.Generation
	Enrichment   *usecase.Enrichment
	Search       *usecase.Search
	Billing      *usecase.Billing
	Email        *usecase.Email
	EmailWebhook *usecase.EmailWebhook
	Secrets      *usecase.Secrets
	Meetings     *usecase.Meetings
	Documents    *usecase.Documents
	Dashboard    *usecase.Dashboard
	Chat         *usecase.Chat

	hubDone chan struct{}
}

// NewContainer wires every dependency from cfg. Without DB_HOST the store
// is in-memory; without a Gemini key outside production the model is an
// offline echo.
func NewContainer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Container, error) {
	log = logger.OrNop(log)
	c := &Container{Config: cfg, Logger: log}

	if err := c.openStore(ctx); err != nil {
		return nil, err
	}
	c.Cache = cache.NewRedis(cfg.Redis, log.Named("cache"))

	verifier, err := NewVerifier(ctx, cfg.Auth, cfg.Vendors.HTTPTimeout)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Verifier = verifier

	gen, err := c.newGenerator(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.LLM = gen

	catalog, err := prompts.Load(prompts.NewBudget(cfg.LLM.MaxPromptTokens, log.Named("prompts")))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	if err := c.wireUsecases(catalog); err != nil {
		c.Close()
		return nil, err
	}

	c.hubDone = make(chan struct{})
	go c.Hub.Run(c.hubDone)
	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	cfg, log := c.Config, c.Logger
	if !cfg.Database.Enabled() {
		if cfg.App.Environment == EnvProduction {
			return errors.New("DB_HOST is required in production")
		}
		log.Warn("no database configured, using in-memory store")
		c.Store = store.NewMemory()
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := dbpostgres.Connect(cctx, cfg.Database, log.Named("db"))
	if err != nil {
		return err
	}
	if _, err := (migration.Runner{FS: migrations.FS, Logger: log.Named("migration")}).Run(cctx, pool.SQLDB()); err != nil {
		_ = pool.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	c.DB = pool
	c.Store = store.NewPostgres(pool)
	return nil
}

// NewVerifier builds the bearer token verifier for the configured provider.
func NewVerifier(ctx context.Context, cfg config.AuthConfig, timeout time.Duration) (auth.Verifier, error) {
	switch cfg.Provider {
	case config.AuthProviderOIDC:
		v, err := auth.NewOIDCVerifier(ctx, cfg.Issuer, cfg.Audience, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		return v, nil
	case config.AuthProviderHMAC:
		return auth.NewHMACVerifier(NewTokenService(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

func NewTokenService(cfg config.AuthConfig) *jwt.HMACService {
	return jwt.NewHMACService(cfg.HMACSecret, cfg.Issuer, cfg.TokenTTL)
}

func (c *Container) newGenerator(ctx context.Context) (llm.Generator, error) {
	cfg := c.Config
	if cfg.LLM.GeminiAPIKey == "" {
		if cfg.App.Environment == EnvProduction {
			return nil, errors.New("GEMINI_API_KEY is required in production")
		}
		c.Logger.Warn("no GEMINI_API_KEY, model answers are echoed offline")
		return llm.NewScripted(cfg.LLM.DefaultModel), nil
	}
	return llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:     cfg.LLM.GeminiAPIKey,
		Model:      cfg.LLM.DefaultModel,
		MaxRetries: cfg.LLM.MaxRetries,
	}, c.Logger.Named("llm"))
}

func (c *Container) wireUsecases(catalog *prompts.Catalog) error {
	cfg, log, s := c.Config, c.Logger, c.Store
	v := cfg.Vendors
	timeout := vendor.WithTimeout(v.HTTPTimeout)
	audit := usecase.NewRecorder(s, log.Named("audit"))

	c.Boolean = usecase.NewBooleanUsecase(catalog, c.LLM, s, audit, log.Named("boolean"))
	c.Generation = usecase.NewGenerationUsecase(catalog, c.LLM, audit, log.Named("generation"))
	c.Chat = usecase.NewChatUsecase(catalog, c.LLM, s, chat.Models{
		Default: cfg.LLM.DefaultModel,
		Complex: cfg.LLM.ComplexModel,
	}, log.Named("chat"))

	vlog := log.Named("vendor")
	c.Enrichment = usecase.NewEnrichmentUsecase(
		enrichment.NewPDL(v.PDLAPIKey, v.PDLBaseURL, vlog, timeout),
		enrichment.NewClearbit(v.ClearbitAPIKey, v.ClearbitPersonBaseURL, v.ClearbitCompanyBaseURL, vlog, timeout),
		enrichment.NewHunter(v.HunterAPIKey, v.HunterBaseURL, vlog, timeout),
		enrichment.NewGitHub(v.GitHubToken, v.GitHubBaseURL, vlog, timeout),
		c.Cache, audit, log.Named("enrichment"),
	)

	var primary, headless scraper.Fetcher
	if fc := scraper.NewFirecrawl(v.FirecrawlAPIKey, v.FirecrawlBaseURL, vlog); fc != nil {
		primary = fc
	}
	if cfg.Scraper.Headless {
		headless = scraper.NewBrowser(cfg.Scraper.UserAgent)
	}
	pages := scraper.NewClient(
		primary,
		scraper.NewCollector(cfg.Scraper.UserAgent),
		headless,
		log.Named("scraper"),
	)
	c.Search = usecase.NewSearchUsecase(
		websearch.NewGoogle(v.GoogleCSEAPIKey, v.GoogleCSEID, v.GoogleCSEBaseURL, vlog, timeout),
		websearch.NewPerplexity(v.PerplexityAPIKey, v.PerplexityBaseURL, v.PerplexityModel, vlog,
			option.WithRequestTimeout(v.HTTPTimeout)),
		websearch.NewGeocoder(v.GoogleMapsAPIKey, v.GoogleMapsBaseURL, vlog, timeout),
		pages, audit, log.Named("search"),
	)
	c.Documents = usecase.NewDocumentUsecase(pages, catalog, c.LLM, audit, log.Named("documents"))

	c.Billing = usecase.NewBillingUsecase(
		payment.NewStripe(v.StripeSecretKey, v.StripeBaseURL, vlog, timeout),
		s, c.Cache,
		usecase.BillingConfig{
			SuccessURL:    v.StripeSuccessURL,
			CancelURL:     v.StripeCancelURL,
			WebhookSecret: v.StripeWebhookSecret,
		},
		log.Named("billing"),
	)

	c.Hub = ws.NewHub(log.Named("ws"))
	mailVerifier, err := mail.NewVerifier(v.SendGridWebhookPublicKey)
	if err != nil {
		return fmt.Errorf("sendgrid webhook key: %w", err)
	}
	if mailVerifier == nil {
		log.Warn("SENDGRID_WEBHOOK_PUBLIC_KEY not set, email webhook signatures are not checked")
	}
	c.Email = usecase.NewEmailUsecase(
		mail.NewSendGrid(v.SendGridAPIKey, v.SendGridBaseURL, v.SendGridFromEmail, v.SendGridFromName, vlog, timeout),
		s,
		usecase.EmailConfig{BatchSize: cfg.Email.BatchSize, BatchDelay: cfg.Email.BatchDelay},
		log.Named("email"),
	)
	c.EmailWebhook = usecase.NewEmailWebhookUsecase(mailVerifier, s, c.Cache, c.Hub, log.Named("email_webhook"))

	box, err := secretbox.New(cfg.Secrets.EncryptionKey)
	if err != nil && !errors.Is(err, secretbox.ErrNoKey) {
		return fmt.Errorf("secrets key: %w", err)
	}
	c.Secrets = usecase.NewSecretsUsecase(cfg.Secrets.ClientAPIKeys, ClientKeys(v), box, s, audit, log.Named("secrets"))

	c.Meetings = usecase.NewMeetingUsecase(meeting.NewDaily(v.DailyAPIKey, v.DailyBaseURL, vlog, timeout), c.Email, s, log.Named("meetings"))
	c.Dashboard = usecase.NewDashboardUsecase(s, log.Named("dashboard"))
	return nil
}

// ClientKeys are the configured keys a browser may ask for by service name,
// subject to CLIENT_API_KEYS.
func ClientKeys(v config.VendorConfig) map[string]string {
	return map[string]string{
		"googleMaps": v.GoogleMapsAPIKey,
		"googleCse":  v.GoogleCSEAPIKey,
		"firecrawl":  v.FirecrawlAPIKey,
		"perplexity": v.PerplexityAPIKey,
		"daily":      v.DailyAPIKey,
		"hunter":     v.HunterAPIKey,
	}
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.hubDone != nil {
		close(c.hubDone)
		c.hubDone = nil
	}
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
