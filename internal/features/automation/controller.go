package automation

import (
	"errors"
	"time"

	"crmflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AutomationController struct {
	Service   AutomationService
	Processor EventProcessor
	Scheduler Scheduler
}

func NewAutomationController(service AutomationService, processor EventProcessor, scheduler Scheduler) *AutomationController {
	return &AutomationController{
		Service:   service,
		Processor: processor,
		Scheduler: scheduler,
	}
}

func statusForError(err error) int {
	var validationErr *ValidationError
	var configErr *ConfigurationError
	var notFoundErr *NotFoundError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &configErr):
		return fiber.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// CreateAutomation godoc
// @Summary Create automation
// @Description Create a new automation with a trigger and ordered actions
// @Tags automation
// @Accept json
// @Produce json
// @Param automation body Automation true "Automation"
// @Success 201 {object} Automation
// @Failure 400 {object} map[string]interface{}
// @Router /api/automation/rules [post]
func (ctrl *AutomationController) CreateAutomation(c *fiber.Ctx) error {
	var automation Automation
	if err := c.BodyParser(&automation); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.CreateAutomation(c.UserContext(), &automation); err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

// GetAutomation godoc
// @Summary Get automation
// @Description Get an automation by ID
// @Tags automation
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} Automation
// @Failure 404 {object} map[string]interface{}
// @Router /api/automation/rules/{id} [get]
func (ctrl *AutomationController) GetAutomation(c *fiber.Ctx) error {
	id := c.Params("id")
	automation, err := ctrl.Service.GetAutomation(c.UserContext(), id)
	if err != nil || automation == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Automation not found"})
	}
	return c.JSON(automation)
}

// ListAutomations godoc
// @Summary List automations
// @Description List automations scoped to the caller's organization
// @Tags automation
// @Produce json
// @Param organization_id query string false "Organization ID override"
// @Success 200 {array} Automation
// @Router /api/automation/rules [get]
func (ctrl *AutomationController) ListAutomations(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		if fromToken, ok := c.Locals(middleware.OrganizationIDKey).(string); ok {
			organizationID = fromToken
		}
	}
	automations, err := ctrl.Service.ListAutomations(c.UserContext(), organizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(automations)
}

// UpdateAutomation godoc
// @Summary Update automation
// @Description Update an existing automation
// @Tags automation
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param automation body Automation true "Automation"
// @Success 200 {object} Automation
// @Failure 400 {object} map[string]interface{}
// @Router /api/automation/rules/{id} [put]
func (ctrl *AutomationController) UpdateAutomation(c *fiber.Ctx) error {
	var automation Automation
	if err := c.BodyParser(&automation); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.UpdateAutomation(c.UserContext(), &automation); err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(automation)
}

// DeleteAutomation godoc
// @Summary Delete automation
// @Description Delete an automation by ID
// @Tags automation
// @Param id path string true "Automation ID"
// @Success 204 {object} nil
// @Router /api/automation/rules/{id} [delete]
func (ctrl *AutomationController) DeleteAutomation(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := ctrl.Service.DeleteAutomation(c.UserContext(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// EnableAutomation godoc
// @Summary Enable or disable automation
// @Tags automation
// @Accept json
// @Param id path string true "Automation ID"
// @Param body body map[string]bool true "{\"active\": true}"
// @Success 200 {object} map[string]interface{}
// @Router /api/automation/rules/{id}/enable [patch]
func (ctrl *AutomationController) EnableAutomation(c *fiber.Ctx) error {
	id := c.Params("id")
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.EnableAutomation(c.UserContext(), id, body.Active); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"id": id, "active": body.Active})
}

// ListRunLogs godoc
// @Summary List run logs
// @Description List recent run logs for an automation
// @Tags automation
// @Produce json
// @Param id path string true "Automation ID"
// @Param limit query int false "Max entries"
// @Success 200 {array} RunLog
// @Router /api/automation/rules/{id}/logs [get]
func (ctrl *AutomationController) ListRunLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	limit := int64(c.QueryInt("limit", 50))
	logs, err := ctrl.Service.ListRunLogs(c.UserContext(), id, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(logs)
}

// ProcessEvent godoc
// @Summary Process a business event
// @Description Run every matching automation for an incoming event
// @Tags automation
// @Accept json
// @Produce json
// @Param event body map[string]interface{} true "{eventType, organizationId, payload}"
// @Success 200 {object} ProcessResult
// @Failure 400 {object} map[string]interface{}
// @Router /api/automation/events [post]
func (ctrl *AutomationController) ProcessEvent(c *fiber.Ctx) error {
	var body struct {
		EventType      string                 `json:"eventType"`
		OrganizationID string                 `json:"organizationId"`
		Payload        map[string]interface{} `json:"payload"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.EventType == "" || body.OrganizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "eventType and organizationId are required"})
	}
	if body.Payload == nil {
		body.Payload = map[string]interface{}{}
	}

	result, err := ctrl.Processor.ProcessEvent(c.UserContext(), TriggerType(body.EventType), body.OrganizationID, body.Payload)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// TickScheduler godoc
// @Summary Run a scheduler sweep now
// @Tags automation
// @Produce json
// @Success 200 {object} SchedulerResult
// @Router /api/automation/scheduler/tick [post]
func (ctrl *AutomationController) TickScheduler(c *fiber.Ctx) error {
	result, err := ctrl.Scheduler.Tick(c.UserContext(), time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}
