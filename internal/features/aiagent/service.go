package aiagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crmflow/internal/config"
	"crmflow/internal/features/conversation"

	"go.uber.org/zap"
)

// AgentService runs a stored AI agent against an input, optionally with
// prior conversation messages as context.
type AgentService interface {
	Run(ctx context.Context, agentID string, history []conversation.Message, input string) (*Reply, error)
}

type AgentServiceImpl struct {
	Repo       AgentRepository
	BaseURL    string
	APIKey     string
	HttpClient *http.Client
	Logger     *zap.Logger
}

func NewAgentService(repo AgentRepository, cfg *config.Config, logger *zap.Logger) AgentService {
	return &AgentServiceImpl{
		Repo:    repo,
		BaseURL: cfg.AIGatewayURL,
		APIKey:  cfg.AIGatewayKey,
		HttpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		Logger: logger,
	}
}

func (s *AgentServiceImpl) Run(ctx context.Context, agentID string, history []conversation.Message, input string) (*Reply, error) {
	agent, err := s.Repo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("AI agent %s not found", agentID)
	}

	messages := []map[string]string{}
	if agent.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": agent.SystemPrompt})
	}
	for _, msg := range history {
		role := "user"
		if msg.Role == "agent" || msg.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}
	messages = append(messages, map[string]string{"role": "user", "content": input})

	model := agent.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":    model,
		"messages": messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("agent gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("agent returned no choices")
	}

	content := parsed.Choices[0].Message.Content

	s.Logger.Debug("agent run completed",
		zap.String("agent_id", agentID),
		zap.Int("history", len(history)))

	return &Reply{
		Content:        content,
		Classification: classify(content),
	}, nil
}

// classify tags replies so automations can branch on the agent output.
func classify(content string) string {
	switch {
	case content == "":
		return "empty"
	case len(content) < 80:
		return "short_reply"
	default:
		return "detailed_reply"
	}
}
