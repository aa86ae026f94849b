package automation

import (
	"context"

	"go.uber.org/zap"
)

// AutomationService owns the automation definitions: CRUD plus the
// explicit template-variable derivation on the write path.
type AutomationService interface {
	CreateAutomation(ctx context.Context, automation *Automation) error
	GetAutomation(ctx context.Context, id string) (*Automation, error)
	ListAutomations(ctx context.Context, organizationID string) ([]Automation, error)
	UpdateAutomation(ctx context.Context, automation *Automation) error
	DeleteAutomation(ctx context.Context, id string) error
	EnableAutomation(ctx context.Context, id string, active bool) error
	ListRunLogs(ctx context.Context, automationID string, limit int64) ([]RunLog, error)
}

type AutomationServiceImpl struct {
	Repo   AutomationRepository
	Logger *zap.Logger
}

func NewAutomationService(repo AutomationRepository, logger *zap.Logger) AutomationService {
	return &AutomationServiceImpl{
		Repo:   repo,
		Logger: logger,
	}
}

func (s *AutomationServiceImpl) CreateAutomation(ctx context.Context, automation *Automation) error {
	if err := validateDefinition(automation); err != nil {
		return err
	}
	automation.DeriveVariables()

	if err := s.Repo.Create(ctx, automation); err != nil {
		return err
	}
	s.Logger.Info("automation created",
		zap.String("automation_id", automation.ID.Hex()),
		zap.String("organizationId", automation.OrganizationID.Hex()),
		zap.String("name", automation.Name))
	return nil
}

func (s *AutomationServiceImpl) GetAutomation(ctx context.Context, id string) (*Automation, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *AutomationServiceImpl) ListAutomations(ctx context.Context, organizationID string) ([]Automation, error) {
	return s.Repo.List(ctx, organizationID)
}

func (s *AutomationServiceImpl) UpdateAutomation(ctx context.Context, automation *Automation) error {
	if err := validateDefinition(automation); err != nil {
		return err
	}
	automation.DeriveVariables()

	if err := s.Repo.Update(ctx, automation); err != nil {
		return err
	}
	s.Logger.Info("automation updated",
		zap.String("automation_id", automation.ID.Hex()),
		zap.String("name", automation.Name))
	return nil
}

func (s *AutomationServiceImpl) DeleteAutomation(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("automation deleted", zap.String("automation_id", id))
	return nil
}

func (s *AutomationServiceImpl) EnableAutomation(ctx context.Context, id string, active bool) error {
	return s.Repo.Enable(ctx, id, active)
}

func (s *AutomationServiceImpl) ListRunLogs(ctx context.Context, automationID string, limit int64) ([]RunLog, error) {
	return s.Repo.ListRunLogs(ctx, automationID, limit)
}

// validateDefinition rejects malformed automations at save time: unknown
// trigger types, schedules on non-scheduled triggers, and per-action
// config problems.
func validateDefinition(automation *Automation) error {
	if automation.Name == "" {
		return NewValidationError("automation name is required")
	}
	if automation.OrganizationID.IsZero() {
		return NewValidationError("organization id is required")
	}

	switch automation.Trigger.Type {
	case TriggerNewContact, TriggerContactUpdated, TriggerNewMessage,
		TriggerPipelineStageChanged, TriggerFormSubmitted,
		TriggerTagAdded, TriggerTagRemoved, TriggerScheduled, TriggerCustom:
	default:
		return NewConfigurationError("unsupported trigger type: %s", automation.Trigger.Type)
	}

	if automation.Trigger.Type == TriggerScheduled {
		if automation.Trigger.Schedule == nil {
			return NewValidationError("scheduled trigger requires a schedule")
		}
		switch automation.Trigger.Schedule.Frequency {
		case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		default:
			return NewConfigurationError("unsupported schedule frequency: %s", automation.Trigger.Schedule.Frequency)
		}
		if automation.Trigger.Schedule.Time != "" {
			if _, _, err := parseClock(automation.Trigger.Schedule.Time); err != nil {
				return NewValidationError("invalid schedule time: %v", err)
			}
		}
	} else if automation.Trigger.Schedule != nil {
		return NewValidationError("schedule is only valid on scheduled triggers")
	}

	for _, action := range automation.Actions {
		if err := ValidateAction(action); err != nil {
			return err
		}
	}
	return nil
}
