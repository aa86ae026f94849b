package automation

import (
	"context"
	"fmt"

	"crmflow/pkg/condition"

	"go.uber.org/zap"
)

// ProcessResult aggregates one event's outcome across all matched
// automations. Errors are human-readable "<automation>: <message>"
// strings for operator legibility.
type ProcessResult struct {
	Triggered int      `json:"triggered"`
	Executed  int      `json:"executed"`
	Errors    []string `json:"errors"`
}

// EventProcessor is the engine's entry point for business events.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventType TriggerType, organizationID string, payload map[string]interface{}) (*ProcessResult, error)
}

type EventProcessorImpl struct {
	repo   AutomationRepository
	runner Runner
	logger *zap.Logger
}

func NewEventProcessor(repo AutomationRepository, runner Runner, logger *zap.Logger) EventProcessor {
	return &EventProcessorImpl{
		repo:   repo,
		runner: runner,
		logger: logger,
	}
}

func (p *EventProcessorImpl) ProcessEvent(ctx context.Context, eventType TriggerType, organizationID string, payload map[string]interface{}) (*ProcessResult, error) {
	automations, err := p.repo.FindActiveByTrigger(ctx, organizationID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to load automations: %w", err)
	}

	result := &ProcessResult{Errors: []string{}}

	for i := range automations {
		automation := &automations[i]
		if !matchesTrigger(automation, payload) {
			continue
		}
		result.Triggered++

		// One broken automation never blocks its siblings.
		if _, err := p.runner.Run(ctx, automation, payload, "event"); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", automation.Name, err.Error()))
			continue
		}
		result.Executed++
	}

	p.logger.Info("event processed",
		zap.String("event_type", string(eventType)),
		zap.String("organizationId", organizationID),
		zap.Int("triggered", result.Triggered),
		zap.Int("executed", result.Executed),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// matchesTrigger evaluates the automation's trigger conditions against
// the payload. All present condition kinds must hold.
func matchesTrigger(automation *Automation, payload map[string]interface{}) bool {
	conds := automation.Trigger.Conditions
	if conds == nil {
		return true
	}

	if len(conds.Channels) > 0 {
		if channel, ok := payload["channel"].(string); ok && channel != "" {
			if !containsString(conds.Channels, channel) {
				return false
			}
		}
	}

	if len(conds.Tags) > 0 {
		if payloadTags := toStringSlice(payload["tags"]); len(payloadTags) > 0 {
			if !intersects(conds.Tags, payloadTags) {
				return false
			}
		}
	}

	if conds.Field != "" && conds.Operator != "" {
		value := condition.Resolve(payload, conds.Field)
		if value == nil && !operatorAcceptsMissing(conds.Operator) {
			return false
		}
		if !condition.Evaluate(value, string(conds.Operator), conds.Value) {
			return false
		}
	}

	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, item := range a {
		set[item] = true
	}
	for _, item := range b {
		if set[item] {
			return true
		}
	}
	return false
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
