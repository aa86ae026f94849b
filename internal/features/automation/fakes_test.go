package automation

import (
	"context"
	"fmt"
	"time"

	"crmflow/internal/features/aiagent"
	"crmflow/internal/features/contact"
	"crmflow/internal/features/conversation"
	"crmflow/internal/features/directory"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeAutomationRepo struct {
	automations []Automation

	executions []recordedExecution
	runLogs    []RunLog
}

type recordedExecution struct {
	ID      primitive.ObjectID
	Success bool
}

func (r *fakeAutomationRepo) Create(_ context.Context, a *Automation) error {
	a.ID = primitive.NewObjectID()
	r.automations = append(r.automations, *a)
	return nil
}

func (r *fakeAutomationRepo) GetByID(_ context.Context, id string) (*Automation, error) {
	for i := range r.automations {
		if r.automations[i].ID.Hex() == id {
			return &r.automations[i], nil
		}
	}
	return nil, nil
}

func (r *fakeAutomationRepo) List(_ context.Context, _ string) ([]Automation, error) {
	return r.automations, nil
}

func (r *fakeAutomationRepo) Update(_ context.Context, _ *Automation) error { return nil }
func (r *fakeAutomationRepo) Delete(_ context.Context, _ string) error      { return nil }
func (r *fakeAutomationRepo) Enable(_ context.Context, _ string, _ bool) error {
	return nil
}

func (r *fakeAutomationRepo) FindActiveByTrigger(_ context.Context, organizationID string, triggerType TriggerType) ([]Automation, error) {
	var out []Automation
	for _, a := range r.automations {
		if a.IsActive && a.Trigger.Type == triggerType && a.OrganizationID.Hex() == organizationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAutomationRepo) FindScheduled(_ context.Context) ([]Automation, error) {
	var out []Automation
	for _, a := range r.automations {
		if a.IsActive && a.Trigger.Type == TriggerScheduled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAutomationRepo) RecordExecution(_ context.Context, id primitive.ObjectID, _ time.Time, success bool) error {
	r.executions = append(r.executions, recordedExecution{ID: id, Success: success})
	return nil
}

func (r *fakeAutomationRepo) CreateRunLog(_ context.Context, log *RunLog) error {
	r.runLogs = append(r.runLogs, *log)
	return nil
}

func (r *fakeAutomationRepo) ListRunLogs(_ context.Context, _ string, _ int64) ([]RunLog, error) {
	return r.runLogs, nil
}

type fakeContactRepo struct {
	contacts map[string]*contact.Contact

	addTagCalls    []tagCall
	removeTagCalls []tagCall
	fieldUpdates   []fieldUpdate
	assignments    []assignment
	pipelineMoves  []pipelineMove
}

type tagCall struct {
	ContactID string
	Tags      []string
}

type fieldUpdate struct {
	ContactID string
	Fields    map[string]interface{}
}

type assignment struct {
	ID      string
	AgentID string
}

type pipelineMove struct {
	ContactID  string
	PipelineID string
	StageID    string
}

func newFakeContactRepo(contacts ...*contact.Contact) *fakeContactRepo {
	repo := &fakeContactRepo{contacts: make(map[string]*contact.Contact)}
	for _, c := range contacts {
		repo.contacts[c.ID.Hex()] = c
	}
	return repo
}

func (r *fakeContactRepo) GetByID(_ context.Context, id string) (*contact.Contact, error) {
	return r.contacts[id], nil
}

func (r *fakeContactRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	r.fieldUpdates = append(r.fieldUpdates, fieldUpdate{ContactID: id, Fields: fields})
	return nil
}

func (r *fakeContactRepo) AddTags(_ context.Context, id string, tags []string) error {
	r.addTagCalls = append(r.addTagCalls, tagCall{ContactID: id, Tags: tags})
	return nil
}

func (r *fakeContactRepo) RemoveTags(_ context.Context, id string, tags []string) error {
	r.removeTagCalls = append(r.removeTagCalls, tagCall{ContactID: id, Tags: tags})
	return nil
}

func (r *fakeContactRepo) SetPipelineStage(_ context.Context, id, pipelineID, stageID string, _ time.Time) error {
	r.pipelineMoves = append(r.pipelineMoves, pipelineMove{ContactID: id, PipelineID: pipelineID, StageID: stageID})
	return nil
}

func (r *fakeContactRepo) UpdateAssignee(_ context.Context, id, agentID string) error {
	r.assignments = append(r.assignments, assignment{ID: id, AgentID: agentID})
	return nil
}

type fakeConversationRepo struct {
	conversations map[string]*conversation.Conversation
	assignments   []assignment
}

func newFakeConversationRepo(convs ...*conversation.Conversation) *fakeConversationRepo {
	repo := &fakeConversationRepo{conversations: make(map[string]*conversation.Conversation)}
	for _, c := range convs {
		repo.conversations[c.ID.Hex()] = c
	}
	return repo
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id string) (*conversation.Conversation, error) {
	return r.conversations[id], nil
}

func (r *fakeConversationRepo) UpdateAssignee(_ context.Context, id, agentID string) error {
	r.assignments = append(r.assignments, assignment{ID: id, AgentID: agentID})
	return nil
}

func (r *fakeConversationRepo) AppendMessage(_ context.Context, _ string, _ conversation.Message) error {
	return nil
}

func (r *fakeConversationRepo) LastMessages(_ context.Context, id string, limit int) ([]conversation.Message, error) {
	conv := r.conversations[id]
	if conv == nil {
		return nil, nil
	}
	msgs := conv.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

type fakeDirectoryRepo struct {
	agents map[string]*directory.Agent
}

func newFakeDirectoryRepo(agents ...*directory.Agent) *fakeDirectoryRepo {
	repo := &fakeDirectoryRepo{agents: make(map[string]*directory.Agent)}
	for _, a := range agents {
		repo.agents[a.ID.Hex()] = a
	}
	return repo
}

func (r *fakeDirectoryRepo) GetByID(_ context.Context, id string) (*directory.Agent, error) {
	return r.agents[id], nil
}

type sentMessage struct {
	Phone    string
	Text     string
	Template string
}

type fakeMessenger struct {
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) SendText(_ context.Context, phone, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{Phone: phone, Text: text})
	return nil
}

func (m *fakeMessenger) SendTemplate(_ context.Context, phone, templateName, _ string, _ []interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{Phone: phone, Template: templateName})
	return nil
}

type fakeAgentService struct {
	reply   *aiagent.Reply
	err     error
	lastRun struct {
		AgentID string
		History int
		Input   string
	}
}

func (s *fakeAgentService) Run(_ context.Context, agentID string, history []conversation.Message, input string) (*aiagent.Reply, error) {
	s.lastRun.AgentID = agentID
	s.lastRun.History = len(history)
	s.lastRun.Input = input
	if s.err != nil {
		return nil, s.err
	}
	if s.reply != nil {
		return s.reply, nil
	}
	return &aiagent.Reply{Content: "ok", Classification: "short_reply"}, nil
}

// fakeRunner records which automations ran and can fail named ones.
type fakeRunner struct {
	ran    []string
	failOn map[string]error
}

func (r *fakeRunner) Run(_ context.Context, automation *Automation, _ map[string]interface{}, _ string) (map[string]interface{}, error) {
	r.ran = append(r.ran, automation.Name)
	if err, ok := r.failOn[automation.Name]; ok {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

type fakePublisher struct {
	events []RunEvent
}

func (p *fakePublisher) Publish(event RunEvent) {
	p.events = append(p.events, event)
}

// fakeExecutor lets runner tests script per-action outcomes.
type fakeExecutor struct {
	failOn   map[ActionType]error
	executed []ActionType
}

func (e *fakeExecutor) Execute(_ context.Context, action Action, _ map[string]interface{}, _ map[string]interface{}) (map[string]interface{}, error) {
	e.executed = append(e.executed, action.Type)
	if err, ok := e.failOn[action.Type]; ok {
		return nil, fmt.Errorf("%s: %w", action.Type, err)
	}
	return map[string]interface{}{"done": string(action.Type)}, nil
}
