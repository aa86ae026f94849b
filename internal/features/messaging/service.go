package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crmflow/internal/config"

	"go.uber.org/zap"
)

// Gateway sends outbound messages through the WhatsApp Business API.
type Gateway interface {
	SendText(ctx context.Context, phone, text string) error
	SendTemplate(ctx context.Context, phone, templateName, language string, components []interface{}) error
}

type WhatsAppGateway struct {
	BaseURL    string
	Token      string
	HttpClient *http.Client
	Logger     *zap.Logger
}

func NewWhatsAppGateway(cfg *config.Config, logger *zap.Logger) Gateway {
	return &WhatsAppGateway{
		BaseURL: cfg.WhatsAppURL,
		Token:   cfg.WhatsAppToken,
		HttpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Logger: logger,
	}
}

func (g *WhatsAppGateway) SendText(ctx context.Context, phone, text string) error {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]interface{}{"body": text},
	}
	return g.post(ctx, body)
}

func (g *WhatsAppGateway) SendTemplate(ctx context.Context, phone, templateName, language string, components []interface{}) error {
	if language == "" {
		language = "en"
	}
	template := map[string]interface{}{
		"name":     templateName,
		"language": map[string]interface{}{"code": language},
	}
	if len(components) > 0 {
		template["components"] = components
	}

	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "template",
		"template":          template,
	}
	return g.post(ctx, body)
}

func (g *WhatsAppGateway) post(ctx context.Context, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := g.BaseURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.Token)

	resp, err := g.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("messaging gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	g.Logger.Debug("message dispatched",
		zap.String("to", body["to"].(string)),
		zap.Int("status", resp.StatusCode))
	return nil
}
