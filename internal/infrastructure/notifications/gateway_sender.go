package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/pkg/config"
)

// GatewaySender delivers customer messages through the pharmacy notification
// gateway. The gateway owns channel selection (SMS, WhatsApp, email) and the
// customer contact lookup; this sender only addresses messages by customer ID.
type GatewaySender struct {
	baseURL    string
	apiToken   string
	senderID   string
	httpClient *http.Client
}

// NewGatewaySender creates a new gateway sender
func NewGatewaySender(cfg config.NotificationsConfig) (*GatewaySender, error) {
	if cfg.GatewayURL == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("NOTIFY_GATEWAY_URL and NOTIFY_API_TOKEN must be set")
	}

	return &GatewaySender{
		baseURL:  cfg.GatewayURL,
		apiToken: cfg.APIToken,
		senderID: cfg.SenderID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GatewayMessage represents an outbound templated message
type GatewayMessage struct {
	Sender     string            `json:"sender"`
	CustomerID string            `json:"customer_id"`
	Template   string            `json:"template"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// GatewayResponse represents the gateway API response
type GatewayResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// Send delivers a templated message to a customer
func (g *GatewaySender) Send(ctx context.Context, customerID string, template providers.NotificationTemplate, data map[string]string) error {
	message := GatewayMessage{
		Sender:     g.senderID,
		CustomerID: customerID,
		Template:   string(template),
		Parameters: data,
	}

	_, err := g.sendMessage(ctx, message)
	return err
}

// sendMessage posts a message to the gateway
func (g *GatewaySender) sendMessage(ctx context.Context, message GatewayMessage) (string, error) {
	url := fmt.Sprintf("%s/v1/messages", g.baseURL)

	jsonData, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+g.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("notification gateway error (status %d): %s", resp.StatusCode, string(body))
	}

	var gatewayResp GatewayResponse
	if err := json.Unmarshal(body, &gatewayResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if gatewayResp.MessageID == "" {
		return "", fmt.Errorf("no message ID in response")
	}

	return gatewayResp.MessageID, nil
}
