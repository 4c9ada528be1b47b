package stubshop

import (
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storegate/metrics"
	"storegate/utils"
)

// Config configures the stub application.
type Config struct {
	// JWTSecret signs the stub's tokens. When empty a random secret is
	// generated, so issued tokens do not survive a restart.
	JWTSecret []byte
	// SeedProducts pre-fills the catalog with that many sample products.
	SeedProducts int
}

// App bundles the fiber app with its backing store.
type App struct {
	fiber     *fiber.App
	store     *Store
	tokens    *TokenService
	startTime time.Time
}

// New assembles the stub with all routes registered.
func New(cfg Config) (*App, error) {
	secret := cfg.JWTSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
	}

	store := NewStore()
	if cfg.SeedProducts > 0 {
		store.Seed(cfg.SeedProducts)
		metrics.UpdateCatalog(store.CatalogStats())
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			if code >= 500 {
				utils.LogError("HTTP_ERROR", err,
					"method", c.Method(),
					"path", c.Path(),
				)
			}
			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(recover.New())
	app.Use(metrics.PrometheusMiddleware())

	a := &App{
		fiber:     app,
		store:     store,
		tokens:    NewTokenService(secret),
		startTime: time.Now(),
	}
	a.registerRoutes()
	return a, nil
}

// Trailing slashes mirror the wrapped services' URL style; the router accepts
// both forms since strict routing stays off.
func (a *App) registerRoutes() {
	users := NewUserHandler(a.store, a.tokens)
	products := NewProductHandler(a.store)
	auth := RequireAuth(a.tokens, a.store)

	api := a.fiber.Group("/api")

	u := api.Group("/users")
	u.Post("/register/", users.Register)
	u.Post("/login/", users.Login)
	u.Post("/logout/", auth, users.Logout)
	u.Post("/token/refresh/", users.Refresh)
	u.Get("/profile/", auth, users.Profile)
	u.Put("/profile/", auth, users.UpdateProfile)
	u.Patch("/profile/", auth, users.UpdateProfile)

	// search/ and :id/stock/ are registered before :id/ so they are not
	// swallowed by the detail route.
	p := api.Group("/products")
	p.Get("/", products.List)
	p.Post("/", auth, products.Create)
	p.Get("/search/", products.Search)
	p.Get("/:id/stock/", products.Stock)
	p.Get("/:id/", products.Detail)
	p.Put("/:id/", auth, products.Update)
	p.Patch("/:id/", auth, products.Update)
	p.Delete("/:id/", auth, products.Delete)

	a.fiber.Get("/health", a.health)
	a.fiber.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (a *App) health(c *fiber.Ctx) error {
	total, _, _ := a.store.CatalogStats()
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"service":  "stubshop",
		"uptime":   time.Since(a.startTime).String(),
		"users":    a.store.UserCount(),
		"products": total,
	})
}

// Store exposes the backing store for seeding and tests.
func (a *App) Store() *Store { return a.store }

// Tokens exposes the token service for tests that mint tokens directly.
func (a *App) Tokens() *TokenService { return a.tokens }

// Listen serves the stub on addr until the listener fails or Shutdown is
// called.
func (a *App) Listen(addr string) error { return a.fiber.Listen(addr) }

// Serve serves the stub on an existing listener.
func (a *App) Serve(ln net.Listener) error { return a.fiber.Listener(ln) }

// Shutdown gracefully stops the app.
func (a *App) Shutdown() error { return a.fiber.ShutdownWithTimeout(5 * time.Second) }

// Test routes a request through the app without a network listener. The
// timeout is generous because password hashing makes the register and login
// handlers deliberately slow.
func (a *App) Test(req *http.Request) (*http.Response, error) {
	return a.fiber.Test(req, 10000)
}
