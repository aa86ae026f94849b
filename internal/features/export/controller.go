package export

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

type ExportController struct {
	Service ExportService
}

func NewExportController(service ExportService) *ExportController {
	return &ExportController{Service: service}
}

// ExportAutomations godoc
// @Summary Export automations to Excel
// @Description Download an xlsx listing automations with execution stats
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param organization_id query string false "Organization ID"
// @Success 200 {file} binary
// @Router /api/export/automations [get]
func (ctrl *ExportController) ExportAutomations(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")

	f, err := ctrl.Service.BuildAutomationWorkbook(c.UserContext(), organizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	filename := fmt.Sprintf("automations_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))

	return f.Write(c.Response().BodyWriter())
}
