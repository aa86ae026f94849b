package automation

import (
	"reflect"
	"testing"
)

func TestDeriveVariables(t *testing.T) {
	automation := &Automation{
		Actions: []Action{
			{
				Type: ActionSendMessage,
				Config: map[string]interface{}{
					"content": "Hi {{contact.name}}, your order {{payload.orderId}} shipped",
				},
			},
			{
				Type: ActionWebhook,
				Config: map[string]interface{}{
					"url": "https://example.com/hooks",
					"body": map[string]interface{}{
						"name":   "{{contact.name}}",
						"nested": []interface{}{"{{payload.source}}"},
					},
				},
			},
		},
	}

	automation.DeriveVariables()

	want := []string{"contact.name", "payload.orderId", "payload.source"}
	if !reflect.DeepEqual(automation.Variables, want) {
		t.Errorf("Variables = %v, want %v", automation.Variables, want)
	}
}

func TestDeriveVariablesEmpty(t *testing.T) {
	automation := &Automation{
		Actions: []Action{
			{Type: ActionWait, Config: map[string]interface{}{"duration": float64(5), "unit": "seconds"}},
		},
	}
	automation.DeriveVariables()
	if len(automation.Variables) != 0 {
		t.Errorf("expected no variables, got %v", automation.Variables)
	}
}

func TestSortedActionsStable(t *testing.T) {
	automation := &Automation{
		Actions: []Action{
			{Type: ActionWebhook, Order: 2},
			{Type: ActionAddTag, Order: 1},
			{Type: ActionRemoveTag, Order: 1},
			{Type: ActionWait, Order: 0},
		},
	}

	sorted := automation.SortedActions()
	want := []ActionType{ActionWait, ActionAddTag, ActionRemoveTag, ActionWebhook}
	for i, typ := range want {
		if sorted[i].Type != typ {
			t.Errorf("position %d: %s, want %s", i, sorted[i].Type, typ)
		}
	}

	// The original slice is untouched.
	if automation.Actions[0].Type != ActionWebhook {
		t.Error("SortedActions must not mutate the automation")
	}
}

func TestValidateAction(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{
			name: "valid send_message",
			action: Action{
				Type:   ActionSendMessage,
				Config: map[string]interface{}{"content": "hello"},
			},
		},
		{
			name: "send_message without content or template",
			action: Action{
				Type:   ActionSendMessage,
				Config: map[string]interface{}{"channel": "whatsapp"},
			},
			wantErr: true,
		},
		{
			name: "update_contact without fields",
			action: Action{
				Type:   ActionUpdateContact,
				Config: map[string]interface{}{"contactId": "abc"},
			},
			wantErr: true,
		},
		{
			name: "add_tag without tags",
			action: Action{
				Type:   ActionAddTag,
				Config: map[string]interface{}{},
			},
			wantErr: true,
		},
		{
			name: "move_pipeline missing stage",
			action: Action{
				Type:   ActionMovePipeline,
				Config: map[string]interface{}{"pipelineId": "p1"},
			},
			wantErr: true,
		},
		{
			name: "valid wait",
			action: Action{
				Type:   ActionWait,
				Config: map[string]interface{}{"duration": float64(10), "unit": "seconds"},
			},
		},
		{
			name: "wait with unknown unit",
			action: Action{
				Type:   ActionWait,
				Config: map[string]interface{}{"duration": float64(10), "unit": "weeks"},
			},
			wantErr: true,
		},
		{
			name: "wait with zero duration",
			action: Action{
				Type:   ActionWait,
				Config: map[string]interface{}{"duration": float64(0), "unit": "seconds"},
			},
			wantErr: true,
		},
		{
			name: "webhook without url",
			action: Action{
				Type:   ActionWebhook,
				Config: map[string]interface{}{"method": "POST"},
			},
			wantErr: true,
		},
		{
			name: "run_script without script",
			action: Action{
				Type:   ActionRunScript,
				Config: map[string]interface{}{},
			},
			wantErr: true,
		},
		{
			name: "unsupported type",
			action: Action{
				Type:   ActionType("teleport"),
				Config: map[string]interface{}{},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAction(tc.action)
			if tc.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
