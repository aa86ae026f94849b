package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func testAutomation(actions ...Action) *Automation {
	return &Automation{
		ID:             primitive.NewObjectID(),
		OrganizationID: primitive.NewObjectID(),
		Name:           "Test automation",
		IsActive:       true,
		Trigger:        Trigger{Type: TriggerNewMessage},
		Actions:        actions,
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	repo := &fakeAutomationRepo{}
	executor := &fakeExecutor{
		failOn: map[ActionType]error{ActionWebhook: errors.New("connection refused")},
	}
	runner := NewRunner(repo, executor, nil, zap.NewNop())

	automation := testAutomation(
		Action{Type: ActionAddTag, Order: 0},
		Action{Type: ActionWebhook, Order: 1},
		Action{Type: ActionWait, Order: 2},
	)

	results, err := runner.Run(context.Background(), automation, map[string]interface{}{}, "event")
	if err == nil {
		t.Fatal("expected the run to fail")
	}

	if len(results) != 1 {
		t.Fatalf("results should only contain the action that succeeded, got %v", results)
	}
	if _, ok := results["action_0"]; !ok {
		t.Errorf("missing action_0 in results %v", results)
	}

	for _, executed := range executor.executed {
		if executed == ActionWait {
			t.Fatal("actions after the failing one must not execute")
		}
	}
	if len(executor.executed) != 2 {
		t.Errorf("executed %d actions, want 2", len(executor.executed))
	}
}

func TestRunKeysResultsByPosition(t *testing.T) {
	repo := &fakeAutomationRepo{}
	executor := &fakeExecutor{}
	runner := NewRunner(repo, executor, nil, zap.NewNop())

	// Out-of-order declarations, with an order tie between the last two.
	automation := testAutomation(
		Action{Type: ActionWebhook, Order: 2},
		Action{Type: ActionAddTag, Order: 1},
		Action{Type: ActionRemoveTag, Order: 1},
	)

	results, err := runner.Run(context.Background(), automation, map[string]interface{}{}, "event")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []ActionType{ActionAddTag, ActionRemoveTag, ActionWebhook}
	if len(executor.executed) != len(want) {
		t.Fatalf("executed %v, want %v", executor.executed, want)
	}
	for i, typ := range want {
		if executor.executed[i] != typ {
			t.Errorf("position %d: executed %s, want %s", i, executor.executed[i], typ)
		}
	}

	for i, typ := range want {
		key := fmt.Sprintf("action_%d", i)
		out, ok := results[key].(map[string]interface{})
		if !ok {
			t.Fatalf("missing %s in results %v", key, results)
		}
		if out["done"] != string(typ) {
			t.Errorf("%s holds output of %v, want %s", key, out["done"], typ)
		}
	}
}

func TestRunRecordsStats(t *testing.T) {
	tests := []struct {
		name        string
		failOn      map[ActionType]error
		wantSuccess bool
	}{
		{name: "success", wantSuccess: true},
		{name: "failure", failOn: map[ActionType]error{ActionAddTag: errors.New("boom")}, wantSuccess: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeAutomationRepo{}
			executor := &fakeExecutor{failOn: tc.failOn}
			runner := NewRunner(repo, executor, nil, zap.NewNop())

			automation := testAutomation(Action{Type: ActionAddTag, Order: 0})
			_, _ = runner.Run(context.Background(), automation, map[string]interface{}{}, "event")

			if len(repo.executions) != 1 {
				t.Fatalf("execution must be recorded exactly once, got %d", len(repo.executions))
			}
			if repo.executions[0].Success != tc.wantSuccess {
				t.Errorf("recorded success=%v, want %v", repo.executions[0].Success, tc.wantSuccess)
			}
			if repo.executions[0].ID != automation.ID {
				t.Errorf("recorded for %s, want %s", repo.executions[0].ID.Hex(), automation.ID.Hex())
			}
		})
	}
}

func TestRunWritesRunLogAndPublishes(t *testing.T) {
	repo := &fakeAutomationRepo{}
	executor := &fakeExecutor{
		failOn: map[ActionType]error{ActionWebhook: errors.New("timeout")},
	}
	publisher := &fakePublisher{}
	runner := NewRunner(repo, executor, publisher, zap.NewNop())

	automation := testAutomation(
		Action{Type: ActionAddTag, Order: 0},
		Action{Type: ActionWebhook, Order: 1},
	)

	_, err := runner.Run(context.Background(), automation, map[string]interface{}{}, "schedule")
	if err == nil {
		t.Fatal("expected the run to fail")
	}

	if len(repo.runLogs) != 1 {
		t.Fatalf("expected 1 run log, got %d", len(repo.runLogs))
	}
	log := repo.runLogs[0]
	if log.Status != "failed" {
		t.Errorf("log status = %s, want failed", log.Status)
	}
	if log.Source != "schedule" {
		t.Errorf("log source = %s, want schedule", log.Source)
	}
	if log.ActionsRun != 1 {
		t.Errorf("log actions_run = %d, want 1", log.ActionsRun)
	}
	if log.Error == "" {
		t.Error("failed run log should carry the error message")
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Status != "failed" || event.AutomationID != automation.ID.Hex() {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestRunWithNilPublisher(t *testing.T) {
	repo := &fakeAutomationRepo{}
	runner := NewRunner(repo, &fakeExecutor{}, nil, zap.NewNop())

	automation := testAutomation(Action{Type: ActionAddTag, Order: 0})
	if _, err := runner.Run(context.Background(), automation, map[string]interface{}{}, "manual"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
