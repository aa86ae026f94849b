package automation

import (
	"crmflow/internal/common/api"
	"crmflow/internal/config"
	"crmflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AutomationApi struct {
	controller *AutomationController
	config     *config.Config
}

func NewAutomationApi(controller *AutomationController, config *config.Config) api.Route {
	return &AutomationApi{
		controller: controller,
		config:     config,
	}
}

func (h *AutomationApi) Setup(app *fiber.App) {
	group := app.Group("/api/automation", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/rules", h.controller.ListAutomations)
	group.Get("/rules/:id", h.controller.GetAutomation)
	group.Post("/rules", h.controller.CreateAutomation)
	group.Put("/rules/:id", h.controller.UpdateAutomation)
	group.Delete("/rules/:id", h.controller.DeleteAutomation)
	group.Patch("/rules/:id/enable", h.controller.EnableAutomation)
	group.Get("/rules/:id/logs", h.controller.ListRunLogs)

	group.Post("/events", h.controller.ProcessEvent)
	group.Post("/scheduler/tick", h.controller.TickScheduler)
}
