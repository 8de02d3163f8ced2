package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"apply-codes/internal/config"
	"apply-codes/internal/delivery/http/handler"
	"apply-codes/internal/delivery/http/middleware"
	"apply-codes/internal/delivery/http/routes"
	"apply-codes/internal/ws"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 3 * time.Minute
	bodyLimit    = 10 * 1024 * 1024
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

// New builds the Fiber app around an already wired container.
func New(c *Container) *App {
	cfg := c.Config
	f := fiber.New(fiber.Config{
		AppName:      cfg.App.AppName,
		BodyLimit:    bodyLimit,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	registerGlobalMiddleware(f, c)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

// Bootstrap wires the container and the app. The cleanup func releases the
// database pool, the cache and the websocket hub.
func Bootstrap(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, func() error, error) {
	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return New(c), c.Close, nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	app.Use(middleware.NewAccessLogMiddleware(c.Logger).Middleware())
	app.Use(middleware.CORS(c.Config.CORS.AllowOrigins))
	app.Use(middleware.NewErrorMiddleware(c.Logger).Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	health := map[string]handler.Pinger{"store": c.Store, "cache": c.Cache}
	if c.Config.Redis.Disabled {
		health["cache"] = nil
	}

	routes.NewRegistry(routes.Deps{
		Service:      c.Config.App.AppName,
		Verifier:     c.Verifier,
		Health:       health,
		Boolean:      c.Boolean,
		Generation:   c.Generation,
		Enrichment:   c.Enrichment,
		Search:       c.Search,
		Billing:      c.Billing,
		Email:        c.Email,
		EmailWebhook: c.EmailWebhook,
		Secrets:      c.Secrets,
		Meetings:     c.Meetings,
		Documents:    c.Documents,
		Dashboard:    c.Dashboard,
		Chat:         c.Chat,
		Events:       ws.NewHandler(c.Hub, c.Verifier, c.Config.CORS.AllowOrigins, c.Logger).Handle,
		Logger:       c.Logger,
	}).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
