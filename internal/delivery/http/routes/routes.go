package routes

import (
	"apply-codes/internal/delivery/http/handler"
	"apply-codes/internal/delivery/http/middleware"
	"apply-codes/internal/pkg/auth"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// Deps are the usecases behind the routes. Nil usecases leave their routes
// unregistered.
type Deps struct {
	Service  string
	Verifier auth.Verifier
	Health   map[string]handler.Pinger

	Boolean      usecase.BooleanUsecase
	Generation   usecase.GenerationUsecase
	Enrichment   usecase.EnrichmentUsecase
	Search       usecase.SearchUsecase
	Billing      usecase.BillingUsecase
	Email        usecase.EmailUsecase
	EmailWebhook usecase.EmailWebhookUsecase
	Secrets      usecase.SecretsUsecase
	Meetings     usecase.MeetingUsecase
	Documents    usecase.DocumentUsecase
	Dashboard    usecase.DashboardUsecase
	Chat         usecase.ChatUsecase

	// Events serves the email status websocket.
	Events fiber.Handler
	Logger *zap.Logger
}

type routeGroup interface {
	RegisterRoutes(r fiber.Router, requireAuth fiber.Handler)
}

type Registry struct {
	deps   Deps
	health *handler.HealthHandler
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, health: handler.NewHealthHandler(deps.Service, deps.Health)}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	r.health.RegisterRoutes(app)
}

// registerAPI mounts every function at the root, the path the clients call.
// Auth is attached per route so public webhooks share the same paths.
func (r *Registry) registerAPI(app *fiber.App) {
	d := r.deps
	requireAuth := middleware.NewAuthMiddleware(d.Verifier).Middleware()

	var groups []routeGroup
	if d.Generation != nil {
		groups = append(groups, handler.NewGenerationHandler(d.Generation))
	}
	if d.Boolean != nil {
		groups = append(groups, handler.NewBooleanHandler(d.Boolean))
	}
	if d.Enrichment != nil {
		groups = append(groups, handler.NewEnrichmentHandler(d.Enrichment))
	}
	if d.Search != nil {
		groups = append(groups, handler.NewSearchHandler(d.Search))
	}
	if d.Billing != nil {
		groups = append(groups, handler.NewBillingHandler(d.Billing))
	}
	if d.Email != nil && d.EmailWebhook != nil {
		groups = append(groups, handler.NewEmailHandler(d.Email, d.EmailWebhook))
	}
	if d.Secrets != nil && d.Dashboard != nil {
		groups = append(groups, handler.NewAccountHandler(d.Secrets, d.Dashboard))
	}
	if d.Meetings != nil {
		groups = append(groups, handler.NewMeetingHandler(d.Meetings))
	}
	if d.Documents != nil {
		groups = append(groups, handler.NewDocumentHandler(d.Documents))
	}
	if d.Chat != nil {
		groups = append(groups, handler.NewChatHandler(d.Chat, d.Logger))
	}

	for _, g := range groups {
		g.RegisterRoutes(app, requireAuth)
	}

	if d.Events != nil {
		app.Get("/ws/events", d.Events)
	}
}
