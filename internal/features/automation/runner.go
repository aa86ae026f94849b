package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes an automation's full action sequence against one
// payload and keeps the execution bookkeeping.
type Runner interface {
	Run(ctx context.Context, automation *Automation, payload map[string]interface{}, source string) (map[string]interface{}, error)
}

type RunnerImpl struct {
	repo      AutomationRepository
	executor  ActionExecutor
	publisher RunPublisher
	logger    *zap.Logger
}

func NewRunner(repo AutomationRepository, executor ActionExecutor, publisher RunPublisher, logger *zap.Logger) Runner {
	return &RunnerImpl{
		repo:      repo,
		executor:  executor,
		publisher: publisher,
		logger:    logger,
	}
}

// Run executes actions ascending by order, storing each outcome under
// results["action_<i>"]. The first action error aborts the rest of the
// sequence; side effects of actions that already ran are not rolled
// back. Counters are always bumped exactly once per invocation.
func (r *RunnerImpl) Run(ctx context.Context, automation *Automation, payload map[string]interface{}, source string) (map[string]interface{}, error) {
	startedAt := time.Now()
	actions := automation.SortedActions()
	results := make(map[string]interface{}, len(actions))

	var runErr error
	actionsRun := 0

	for i, action := range actions {
		out, err := r.executor.Execute(ctx, action, payload, results)
		if err != nil {
			runErr = err
			break
		}
		results[fmt.Sprintf("action_%d", i)] = out
		actionsRun++
	}

	success := runErr == nil
	if err := r.repo.RecordExecution(ctx, automation.ID, startedAt, success); err != nil {
		r.logger.Warn("failed to record execution stats",
			zap.String("automation_id", automation.ID.Hex()),
			zap.Error(err))
	}

	r.writeRunLog(ctx, automation, source, startedAt, actionsRun, results, runErr)
	r.publish(automation, source, runErr)

	if runErr != nil {
		r.logger.Error("automation run failed",
			zap.String("automation", automation.Name),
			zap.String("organizationId", automation.OrganizationID.Hex()),
			zap.Int("actions_run", actionsRun),
			zap.Error(runErr))
		return results, runErr
	}

	r.logger.Info("automation run completed",
		zap.String("automation", automation.Name),
		zap.String("organizationId", automation.OrganizationID.Hex()),
		zap.Int("actions_run", actionsRun))
	return results, nil
}

func (r *RunnerImpl) writeRunLog(ctx context.Context, automation *Automation, source string, startedAt time.Time, actionsRun int, results map[string]interface{}, runErr error) {
	status := "success"
	errMsg := ""
	if runErr != nil {
		status = "failed"
		errMsg = runErr.Error()
	}

	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entry := &RunLog{
		AutomationID:   automation.ID,
		AutomationName: automation.Name,
		OrganizationID: automation.OrganizationID,
		Source:         source,
		Status:         status,
		Error:          errMsg,
		ActionsRun:     actionsRun,
		ResultKeys:     keys,
		StartTime:      startedAt,
		EndTime:        time.Now(),
	}
	if err := r.repo.CreateRunLog(ctx, entry); err != nil {
		r.logger.Warn("failed to write run log",
			zap.String("automation_id", automation.ID.Hex()),
			zap.Error(err))
	}
}

func (r *RunnerImpl) publish(automation *Automation, source string, runErr error) {
	if r.publisher == nil {
		return
	}
	event := RunEvent{
		AutomationID:   automation.ID.Hex(),
		AutomationName: automation.Name,
		OrganizationID: automation.OrganizationID.Hex(),
		Source:         source,
		Status:         "success",
		Timestamp:      time.Now(),
	}
	if runErr != nil {
		event.Status = "failed"
		event.Error = runErr.Error()
	}
	r.publisher.Publish(event)
}
