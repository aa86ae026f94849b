package automation

import (
	"encoding/json"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TriggerType string

const (
	TriggerNewContact           TriggerType = "new_contact"
	TriggerContactUpdated       TriggerType = "contact_updated"
	TriggerNewMessage           TriggerType = "new_message"
	TriggerPipelineStageChanged TriggerType = "pipeline_stage_changed"
	TriggerFormSubmitted        TriggerType = "form_submitted"
	TriggerTagAdded             TriggerType = "tag_added"
	TriggerTagRemoved           TriggerType = "tag_removed"
	TriggerScheduled            TriggerType = "scheduled"
	TriggerCustom               TriggerType = "custom"
)

type ActionType string

const (
	ActionSendMessage   ActionType = "send_message"
	ActionAssignAgent   ActionType = "assign_agent"
	ActionUpdateContact ActionType = "update_contact"
	ActionAddTag        ActionType = "add_tag"
	ActionRemoveTag     ActionType = "remove_tag"
	ActionMovePipeline  ActionType = "move_pipeline"
	ActionWait          ActionType = "wait"
	ActionRunAIAgent    ActionType = "run_ai_agent"
	ActionWebhook       ActionType = "webhook"
	ActionRunScript     ActionType = "run_script"
)

type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "notEquals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "notContains"
	OperatorGreaterThan Operator = "greaterThan"
	OperatorLessThan    Operator = "lessThan"
	OperatorExists      Operator = "exists"
	OperatorNotExists   Operator = "notExists"
)

// operatorAcceptsMissing reports whether an operator is meaningful when
// the field did not resolve. Every other operator fails closed on a
// missing field.
func operatorAcceptsMissing(op Operator) bool {
	return op == OperatorExists || op == OperatorNotExists
}

type ScheduleFrequency string

const (
	FrequencyOnce    ScheduleFrequency = "once"
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// Condition gates a single action. A list of conditions is evaluated as
// logical AND; an empty list always passes.
type Condition struct {
	Field    string      `json:"field" bson:"field"`
	Operator Operator    `json:"operator" bson:"operator"`
	Value    interface{} `json:"value,omitempty" bson:"value,omitempty"`
}

// TriggerConditions gate whether an automation is eligible for an event.
type TriggerConditions struct {
	Field    string      `json:"field,omitempty" bson:"field,omitempty"`
	Operator Operator    `json:"operator,omitempty" bson:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty" bson:"value,omitempty"`
	Channels []string    `json:"channels,omitempty" bson:"channels,omitempty"`
	Tags     []string    `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Schedule configures time-based triggers.
type Schedule struct {
	Frequency  ScheduleFrequency `json:"frequency" bson:"frequency"`
	Time       string            `json:"time,omitempty" bson:"time,omitempty"` // "HH:MM"
	DaysOfWeek []int             `json:"days_of_week,omitempty" bson:"days_of_week,omitempty"`
	DayOfMonth *int              `json:"day_of_month,omitempty" bson:"day_of_month,omitempty"`
	StartDate  *time.Time        `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate    *time.Time        `json:"end_date,omitempty" bson:"end_date,omitempty"`
}

type Trigger struct {
	Type       TriggerType        `json:"type" bson:"type"`
	Conditions *TriggerConditions `json:"conditions,omitempty" bson:"conditions,omitempty"`
	Schedule   *Schedule          `json:"schedule,omitempty" bson:"schedule,omitempty"`
}

type Action struct {
	Type       ActionType             `json:"type" bson:"type"`
	Order      int                    `json:"order" bson:"order"`
	Conditions []Condition            `json:"conditions,omitempty" bson:"conditions,omitempty"`
	Config     map[string]interface{} `json:"config" bson:"config"`
}

type Automation struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrganizationID primitive.ObjectID `json:"organization_id" bson:"organization_id"`
	Name           string             `json:"name" bson:"name"`
	IsActive       bool               `json:"is_active" bson:"is_active"`
	Trigger        Trigger            `json:"trigger" bson:"trigger"`
	Actions        []Action           `json:"actions" bson:"actions"`

	// Derived on the write path, see DeriveVariables.
	Variables []string `json:"variables,omitempty" bson:"variables,omitempty"`

	TotalExecutions      int64      `json:"total_executions" bson:"total_executions"`
	SuccessfulExecutions int64      `json:"successful_executions" bson:"successful_executions"`
	FailedExecutions     int64      `json:"failed_executions" bson:"failed_executions"`
	LastExecutedAt       *time.Time `json:"last_executed_at,omitempty" bson:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// RunLog records one execution of one automation.
type RunLog struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AutomationID   primitive.ObjectID `json:"automation_id" bson:"automation_id"`
	AutomationName string             `json:"automation_name" bson:"automation_name"`
	OrganizationID primitive.ObjectID `json:"organization_id" bson:"organization_id"`
	Source         string             `json:"source" bson:"source"` // event | schedule | manual
	Status         string             `json:"status" bson:"status"` // success | failed
	Error          string             `json:"error,omitempty" bson:"error,omitempty"`
	ActionsRun     int                `json:"actions_run" bson:"actions_run"`
	ResultKeys     []string           `json:"result_keys,omitempty" bson:"result_keys,omitempty"`
	StartTime      time.Time          `json:"start_time" bson:"start_time"`
	EndTime        time.Time          `json:"end_time" bson:"end_time"`
}

// RunEvent is published to live subscribers after every run.
type RunEvent struct {
	AutomationID   string    `json:"automation_id"`
	AutomationName string    `json:"automation_name"`
	OrganizationID string    `json:"organization_id"`
	Source         string    `json:"source"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RunPublisher receives run outcomes; implementations must not block.
type RunPublisher interface {
	Publish(event RunEvent)
}

var variablePattern = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// DeriveVariables collects the distinct template paths referenced by the
// automation's action configs. It is invoked explicitly by the write path
// (create/update) rather than hidden in a persistence hook.
func (a *Automation) DeriveVariables() {
	seen := make(map[string]bool)
	var vars []string

	var scan func(v interface{})
	scan = func(v interface{}) {
		switch t := v.(type) {
		case string:
			for _, m := range variablePattern.FindAllStringSubmatch(t, -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					vars = append(vars, m[1])
				}
			}
		case map[string]interface{}:
			for _, nested := range t {
				scan(nested)
			}
		case []interface{}:
			for _, nested := range t {
				scan(nested)
			}
		}
	}

	for _, action := range a.Actions {
		scan(action.Config)
	}

	sort.Strings(vars)
	a.Variables = vars
}

// SortedActions returns the actions ordered ascending by Order; ties keep
// their original array position.
func (a *Automation) SortedActions() []Action {
	actions := make([]Action, len(a.Actions))
	copy(actions, a.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Order < actions[j].Order
	})
	return actions
}

// decodeConfig round-trips a config map into a typed struct so missing or
// mistyped fields surface before dispatch.
func decodeConfig(config map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

type SendMessageConfig struct {
	ContactID          string        `json:"contactId"`
	Channel            string        `json:"channel"`
	Content            string        `json:"content"`
	TemplateName       string        `json:"templateName"`
	TemplateLanguage   string        `json:"templateLanguage"`
	TemplateComponents []interface{} `json:"templateComponents"`
}

type AssignAgentConfig struct {
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
	ContactID      string `json:"contactId"`
}

type UpdateContactConfig struct {
	ContactID string                 `json:"contactId"`
	Fields    map[string]interface{} `json:"fields"`
}

type TagConfig struct {
	ContactID string   `json:"contactId"`
	Tags      []string `json:"tags"`
}

type MovePipelineConfig struct {
	ContactID  string `json:"contactId"`
	PipelineID string `json:"pipelineId"`
	StageID    string `json:"stageId"`
}

type WaitConfig struct {
	Duration float64 `json:"duration"`
	Unit     string  `json:"unit"`
}

type RunAIAgentConfig struct {
	AgentID        string `json:"agentId"`
	Input          string `json:"input"`
	ConversationID string `json:"conversationId"`
}

type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    interface{}       `json:"body"`
}

type RunScriptConfig struct {
	Script string `json:"script"`
}

// ValidateAction decodes the action's config for its kind and reports
// missing required fields, so malformed automations fail at save time
// instead of mid-run.
func ValidateAction(action Action) error {
	switch action.Type {
	case ActionSendMessage:
		var cfg SendMessageConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("send_message config is malformed: %v", err)
		}
		if cfg.Content == "" && cfg.TemplateName == "" {
			return NewValidationError("send_message requires content or templateName")
		}
	case ActionAssignAgent:
		var cfg AssignAgentConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("assign_agent config is malformed: %v", err)
		}
	case ActionUpdateContact:
		var cfg UpdateContactConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("update_contact config is malformed: %v", err)
		}
		if len(cfg.Fields) == 0 {
			return NewValidationError("update_contact requires a non-empty fields map")
		}
	case ActionAddTag, ActionRemoveTag:
		var cfg TagConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("%s config is malformed: %v", action.Type, err)
		}
		if len(cfg.Tags) == 0 {
			return NewValidationError("%s requires a non-empty tag list", action.Type)
		}
	case ActionMovePipeline:
		var cfg MovePipelineConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("move_pipeline config is malformed: %v", err)
		}
		if cfg.PipelineID == "" || cfg.StageID == "" {
			return NewValidationError("move_pipeline requires pipelineId and stageId")
		}
	case ActionWait:
		var cfg WaitConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("wait config is malformed: %v", err)
		}
		if cfg.Duration <= 0 {
			return NewValidationError("wait requires a positive duration")
		}
		if _, err := waitUnitMillis(cfg.Unit); err != nil {
			return err
		}
	case ActionRunAIAgent:
		var cfg RunAIAgentConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("run_ai_agent config is malformed: %v", err)
		}
	case ActionWebhook:
		var cfg WebhookConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("webhook config is malformed: %v", err)
		}
		if cfg.URL == "" {
			return NewValidationError("webhook requires a url")
		}
	case ActionRunScript:
		var cfg RunScriptConfig
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return NewValidationError("run_script config is malformed: %v", err)
		}
		if cfg.Script == "" {
			return NewValidationError("run_script requires script content")
		}
	default:
		return NewConfigurationError("unsupported action type: %s", action.Type)
	}
	return nil
}
