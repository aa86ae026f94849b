package main

import (
	"context"
	"fmt"
	"log"

	common_api "crmflow/internal/common/api"
	"crmflow/internal/config"
	"crmflow/internal/database"
	"crmflow/internal/features/aiagent"
	"crmflow/internal/features/automation"
	"crmflow/internal/features/contact"
	"crmflow/internal/features/conversation"
	"crmflow/internal/features/directory"
	"crmflow/internal/features/export"
	"crmflow/internal/features/messaging"
	"crmflow/internal/features/system"
	"crmflow/internal/logger"
	"crmflow/internal/middleware"
	"crmflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute tags a constructor so Fx adds its result to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d routes\n", len(routes))
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Repositories
			automation.NewAutomationRepository,
			contact.NewContactRepository,
			conversation.NewConversationRepository,
			directory.NewAgentRepository,
			aiagent.NewAgentRepository,

			// Gateways & services
			messaging.NewWhatsAppGateway,
			aiagent.NewAgentService,
			automation.NewActionExecutor,
			automation.NewRunner,
			automation.NewEventProcessor,
			automation.NewScheduler,
			automation.NewAutomationService,
			export.NewExportService,

			// Controllers
			automation.NewAutomationController,
			export.NewExportController,
			system.NewWebSocketController,

			// Run events flow to websocket subscribers
			func(h *system.WebSocketController) automation.RunPublisher { return h },

			// API routes
			AsRoute(automation.NewAutomationApi),
			AsRoute(export.NewExportApi),
			AsRoute(system.NewWebSocketApi),
			AsRoute(system.NewHealthApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, scheduler automation.Scheduler) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return scheduler.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return scheduler.StopScheduler()
					},
				})
			},
		),
	)

	app.Run()
}
