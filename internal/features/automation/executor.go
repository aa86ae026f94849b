package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crmflow/internal/features/aiagent"
	"crmflow/internal/features/contact"
	"crmflow/internal/features/conversation"
	"crmflow/internal/features/directory"
	"crmflow/internal/features/messaging"
	"crmflow/pkg/condition"
	"crmflow/pkg/template"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"
)

// waitCeiling bounds how long a single wait action can block a run.
const waitCeiling = 30 * time.Second

// ActionExecutor runs one action against a payload and the results of
// the actions that already ran in the same automation run.
type ActionExecutor interface {
	Execute(ctx context.Context, action Action, payload map[string]interface{}, results map[string]interface{}) (map[string]interface{}, error)
}

type ActionExecutorImpl struct {
	contactRepo contact.ContactRepository
	convRepo    conversation.ConversationRepository
	agentRepo   directory.AgentRepository
	messenger   messaging.Gateway
	aiAgents    aiagent.AgentService
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewActionExecutor(
	contactRepo contact.ContactRepository,
	convRepo conversation.ConversationRepository,
	agentRepo directory.AgentRepository,
	messenger messaging.Gateway,
	aiAgents aiagent.AgentService,
	logger *zap.Logger,
) ActionExecutor {
	return &ActionExecutorImpl{
		contactRepo: contactRepo,
		convRepo:    convRepo,
		agentRepo:   agentRepo,
		messenger:   messenger,
		aiAgents:    aiAgents,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

func (e *ActionExecutorImpl) Execute(ctx context.Context, action Action, payload map[string]interface{}, results map[string]interface{}) (map[string]interface{}, error) {
	if !conditionsSatisfied(action.Conditions, payload, results) {
		return map[string]interface{}{"skipped": true}, nil
	}

	var out map[string]interface{}
	var err error

	switch action.Type {
	case ActionSendMessage:
		out, err = e.executeSendMessage(ctx, action.Config, payload)
	case ActionAssignAgent:
		out, err = e.executeAssignAgent(ctx, action.Config, payload)
	case ActionUpdateContact:
		out, err = e.executeUpdateContact(ctx, action.Config, payload)
	case ActionAddTag:
		out, err = e.executeTagChange(ctx, action.Config, payload, true)
	case ActionRemoveTag:
		out, err = e.executeTagChange(ctx, action.Config, payload, false)
	case ActionMovePipeline:
		out, err = e.executeMovePipeline(ctx, action.Config, payload)
	case ActionWait:
		out, err = e.executeWait(ctx, action.Config)
	case ActionRunAIAgent:
		out, err = e.executeRunAIAgent(ctx, action.Config, payload)
	case ActionWebhook:
		out, err = e.executeWebhook(ctx, action.Config, payload)
	case ActionRunScript:
		out, err = e.executeRunScript(ctx, action.Config, payload, results)
	default:
		err = NewConfigurationError("unsupported action type: %s", action.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", action.Type, err)
	}
	return out, nil
}

// conditionsSatisfied evaluates the action's own gate. Fields prefixed
// "results." resolve against prior action outputs, everything else
// against the payload. A field that does not resolve fails the gate
// unless the operator itself is about existence.
func conditionsSatisfied(conditions []Condition, payload map[string]interface{}, results map[string]interface{}) bool {
	for _, cond := range conditions {
		var value interface{}
		if path, ok := strings.CutPrefix(cond.Field, "results."); ok {
			value = condition.Resolve(results, path)
		} else {
			value = condition.Resolve(payload, cond.Field)
		}
		if value == nil && !operatorAcceptsMissing(cond.Operator) {
			return false
		}
		if !condition.Evaluate(value, string(cond.Operator), cond.Value) {
			return false
		}
	}
	return true
}

func (e *ActionExecutorImpl) executeSendMessage(ctx context.Context, config map[string]interface{}, payload map[string]interface{}) (map[string]interface{}, error) {
	var cfg SendMessageConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("send_message config is malformed: %v", err)
	}

	contactID := cfg.ContactID
	if contactID == "" {
		contactID = payloadString(payload, "contactId")
	}
	if contactID == "" {
		return nil, NewValidationError("send_message requires a contact id")
	}

	c, err := e.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewNotFoundError("contact", contactID)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = payloadString(payload, "channel")
	}
	if channel == "" {
		channel = "whatsapp"
	}

	switch channel {
	case "whatsapp":
		if c.Phone == "" {
			return nil, NewValidationError("contact %s has no phone number", contactID)
		}

		if cfg.TemplateName != "" {
			if err := e.messenger.SendTemplate(ctx, c.Phone, cfg.TemplateName, cfg.TemplateLanguage, cfg.TemplateComponents); err != nil {
				return nil, &ExternalCallError{Op: "send template message", Err: err}
			}
			return map[string]interface{}{
				"sent":     true,
				"channel":  channel,
				"to":       c.Phone,
				"template": cfg.TemplateName,
			}, nil
		}

		content := template.Render(cfg.Content, map[string]interface{}{
			"payload": payload,
			"contact": c.TemplateContext(),
		})
		if err := e.messenger.SendText(ctx, c.Phone, content); err != nil {
			return nil, &ExternalCallError{Op: "send message", Err: err}
		}
		return map[string]interface{}{
			"sent":    true,
			"channel": channel,
			"to":      c.Phone,
		}, nil

	case "email", "sms":
		// Declared but not dispatched yet; reported instead of raised.
		return map[string]interface{}{
			"sent":    false,
			"channel": channel,
			"status":  "not_implemented",
		}, nil

	default:
		return nil, NewConfigurationError("unsupported message channel: %s", channel)
	}
}

func (e *ActionExecutorImpl) executeAssignAgent(ctx context.Context, config map[string]interface{}, payload map[string]interface{}) (map[string]interface{}, error) {
	var cfg AssignAgentConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("assign_agent config is malformed: %v", err)
	}

	agentID := cfg.AgentID
	if agentID == "" {
		agentID = payloadString(payload, "agentId")
	}
	if agentID == "" {
		return nil, NewValidationError("assign_agent requires an agent id")
	}

	conversationID := cfg.ConversationID
	if conversationID == "" {
		conversationID = payloadString(payload, "conversationId")
	}
	contactID := cfg.ContactID
	if conversationID == "" && contactID == "" {
		contactID = payloadString(payload, "contactId")
	}

	if conversationID == "" && contactID == "" {
		return nil, NewValidationError("assign_agent requires a conversation id or a contact id")
	}
	if conversationID != "" && cfg.ContactID != "" {
		return nil, NewValidationError("assign_agent accepts either a conversation id or a contact id, not both")
	}

	agent, err := e.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, NewNotFoundError("agent", agentID)
	}

	if conversationID != "" {
		conv, err := e.convRepo.GetByID(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, NewNotFoundError("conversation", conversationID)
		}
		if err := e.convRepo.UpdateAssignee(ctx, conversationID, agentID); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"assigned":       true,
			"agentId":        agentID,
			"conversationId": conversationID,
		}, nil
	}

	c, err := e.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewNotFoundError("contact", contactID)
	}
	if err := e.contactRepo.UpdateAssignee(ctx, contactID, agentID); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"assigned":  true,
		"agentId":   agentID,
		"contactId": contactID,
	}, nil
}

func (e *ActionExecutorImpl) executeUpdateContact(ctx context.Context, config map[string]interface{}, payload map[string]interface{}) (map[string]interface{}, error) {
	var cfg UpdateContactConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("update_contact config is malformed: %v", err)
	}

	contactID := cfg.ContactID
	if contactID == "" {
		contactID = payloadString(payload, "contactId")
	}
	if contactID == "" {
		return nil, NewValidationError("update_contact requires a contact id")
	}
	if len(cfg.Fields) == 0 {
		return nil, NewValidationError("update_contact requires a non-empty fields map")
	}

	c, err := e.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewNotFoundError("contact", contactID)
	}

	templateCtx := map[string]interface{}{"payload": payload}
	fields := make(map[string]interface{}, len(cfg.Fields))
	for k, v := range cfg.Fields {
		if s, ok := v.(string); ok {
			fields[k] = template.Render(s, templateCtx)
		} else {
			fields[k] = v
		}
	}

	if err := e.contactRepo.UpdateFields(ctx, contactID, fields); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return map[string]interface{}{
		"updated":   true,
		"contactId": contactID,
		"fields":    keys,
	}, nil
}

func (e *ActionExecutorImpl) executeTagChange(ctx context.Context, config map[string]interface{}, payload map[string]interface{}, add bool) (map[string]interface{}, error) {
	var cfg TagConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("tag config is malformed: %v", err)
	}

	contactID := cfg.ContactID
	if contactID == "" {
		contactID = payloadString(payload, "contactId")
	}
	if contactID == "" {
		return nil, NewValidationError("tag action requires a contact id")
	}
	if len(cfg.Tags) == 0 {
		return nil, NewValidationError("tag action requires a non-empty tag list")
	}

	c, err := e.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewNotFoundError("contact", contactID)
	}

	if add {
		err = e.contactRepo.AddTags(ctx, contactID, cfg.Tags)
	} else {
		err = e.contactRepo.RemoveTags(ctx, contactID, cfg.Tags)
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"contactId": contactID,
		"tags":      cfg.Tags,
		"added":     add,
	}, nil
}

func (e *ActionExecutorImpl) executeMovePipeline(ctx context.Context, config map[string]interface{}, payload map[string]interface{}) (map[string]interface{}, error) {
	var cfg MovePipelineConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("move_pipeline config is malformed: %v", err)
	}

	contactID := cfg.ContactID
	if contactID == "" {
		contactID = payloadString(payload, "contactId")
	}
	if contactID == "" {
		return nil, NewValidationError("move_pipeline requires a contact id")
	}
	if cfg.PipelineID == "" || cfg.StageID == "" {
		return nil, NewValidationError("move_pipeline requires pipelineId and stageId")
	}

	c, err := e.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewNotFoundError("contact", contactID)
	}

	movedAt := time.Now()
	if err := e.contactRepo.SetPipelineStage(ctx, contactID, cfg.PipelineID, cfg.StageID, movedAt); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"moved":      true,
		"contactId":  contactID,
		"pipelineId": cfg.PipelineID,
		"stageId":    cfg.StageID,
		"movedAt":    movedAt,
	}, nil
}

func waitUnitMillis(unit string) (float64, error) {
	switch unit {
	case "seconds":
		return 1000, nil
	case "minutes":
		return 60 * 1000, nil
	case "hours":
		return 60 * 60 * 1000, nil
	case "days":
		return 24 * 60 * 60 * 1000, nil
	default:
		return 0, NewConfigurationError("unsupported wait unit: %s", unit)
	}
}

// clampWait converts the requested duration to a suspension bounded by
// waitCeiling, reporting whether the request was cut down.
func clampWait(duration float64, unit string) (time.Duration, bool, error) {
	if duration <= 0 {
		return 0, false, NewValidationError("wait requires a positive duration")
	}
	unitMs, err := waitUnitMillis(unit)
	if err != nil {
		return 0, false, err
	}

	// Compare in float space: converting an enormous request to
	// time.Duration first would overflow int64.
	requestedMs := duration * unitMs
	if requestedMs > float64(waitCeiling.Milliseconds()) {
		return waitCeiling, true, nil
	}
	return time.Duration(requestedMs) * time.Millisecond, false, nil
}

func (e *ActionExecutorImpl) executeWait(ctx context.Context, config map[string]interface{}) (map[string]interface{}, error) {
	var cfg WaitConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("wait config is malformed: %v", err)
	}

	suspension, limited, err := clampWait(cfg.Duration, cfg.Unit)
	if err != nil {
		return nil, err
	}

	select {
	case <-time.After(suspension):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]interface{}{
		"waited":     suspension.Milliseconds(),
		"wasLimited": limited,
	}, nil
}

func (e *ActionExecutorImpl) executeRunAIAgent(ctx context.Context, config map[string]interface{}, payload map[string]interface{}) (map[string]interface{}, error) {
	var cfg RunAIAgentConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("run_ai_agent config is malformed: %v", err)
	}

	agentID := cfg.AgentID
	if agentID == "" {
		agentID = payloadString(payload, "agentId")
	}
	if agentID == "" {
		return nil, NewValidationError("run_ai_agent requires an agent id")
	}

	input := payloadString(payload, "message")
	if input == "" {
		input = cfg.Input
	}
	if input == "" {
		return nil, NewValidationError("run_ai_agent requires an input text")
	}

	var history []conversation.Message
	conversationID := cfg.ConversationID
	if conversationID == "" {
		conversationID = payloadString(payload, "conversationId")
	}
	if conversationID != "" {
		var err error
		history, err = e.convRepo.LastMessages(ctx, conversationID, 10)
		if err != nil {
			return nil, err
		}
	}

	reply, err := e.aiAgents.Run(ctx, agentID, history, input)
	if err != nil {
		return nil, &ExternalCallError{Op: "run AI agent", Err: err}
	}

	return map[string]interface{}{
		"reply":          reply.Content,
		"classification": reply.Classification,
		"agentId":        agentID,
	}, nil
}

func (e *ActionExecutorImpl) executeWebhook(ctx context.Context, config map[string]interface{}, payload map[string]interface{}) (map[string]interface{}, error) {
	var cfg WebhookConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("webhook config is malformed: %v", err)
	}
	if cfg.URL == "" {
		return nil, NewValidationError("webhook requires a url")
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	templateCtx := map[string]interface{}{"payload": payload}

	var bodyReader io.Reader
	switch body := cfg.Body.(type) {
	case nil:
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, NewValidationError("failed to marshal webhook payload: %v", err)
		}
		bodyReader = bytes.NewBuffer(raw)
	case string:
		bodyReader = strings.NewReader(template.Render(body, templateCtx))
	default:
		rendered, err := template.RenderJSON(body, templateCtx)
		if err != nil {
			return nil, NewValidationError("failed to render webhook body: %v", err)
		}
		raw, err := json.Marshal(rendered)
		if err != nil {
			return nil, NewValidationError("failed to marshal webhook body: %v", err)
		}
		bodyReader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bodyReader)
	if err != nil {
		return nil, NewValidationError("failed to create webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CRMFlow-Automation")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ExternalCallError{Op: "webhook call", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExternalCallError{Op: "webhook call", Status: resp.StatusCode}
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	return map[string]interface{}{
		"status": resp.StatusCode,
		"body":   decoded,
	}, nil
}

func (e *ActionExecutorImpl) executeRunScript(_ context.Context, config map[string]interface{}, payload map[string]interface{}, results map[string]interface{}) (map[string]interface{}, error) {
	var cfg RunScriptConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, NewValidationError("run_script config is malformed: %v", err)
	}
	if cfg.Script == "" {
		return nil, NewValidationError("run_script requires script content")
	}

	script := tengo.NewScript([]byte(cfg.Script))
	if err := script.Add("payload", payload); err != nil {
		return nil, NewValidationError("failed to bind payload into script: %v", err)
	}
	if err := script.Add("results", results); err != nil {
		return nil, NewValidationError("failed to bind results into script: %v", err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, NewConfigurationError("failed to compile script: %v", err)
	}
	if err := compiled.Run(); err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}

	out := map[string]interface{}{"ok": true}
	if v := compiled.Get("output"); v != nil && !v.IsUndefined() {
		out["output"] = v.Value()
	}
	return out, nil
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
