package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/pkg/config"
)

func TestNewGatewaySender(t *testing.T) {
	tests := []struct {
		name       string
		gatewayURL string
		apiToken   string
		wantErr    bool
	}{
		{
			name:       "Valid configuration",
			gatewayURL: "https://notify.example.com",
			apiToken:   "test_token",
			wantErr:    false,
		},
		{
			name:       "Missing gateway URL",
			gatewayURL: "",
			apiToken:   "test_token",
			wantErr:    true,
		},
		{
			name:       "Missing API token",
			gatewayURL: "https://notify.example.com",
			apiToken:   "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewGatewaySender(config.NotificationsConfig{
				GatewayURL: tt.gatewayURL,
				APIToken:   tt.apiToken,
				SenderID:   "medleaf-pharmacy",
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGatewaySender() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sender == nil {
				t.Error("NewGatewaySender() returned nil sender")
			}
		})
	}
}

func TestGatewaySender_Send(t *testing.T) {
	tests := []struct {
		name           string
		customerID     string
		template       providers.NotificationTemplate
		data           map[string]string
		mockStatusCode int
		mockResponse   GatewayResponse
		wantErr        bool
	}{
		{
			name:       "Successful template send",
			customerID: "cust-001",
			template:   providers.TemplatePrescriptionApproved,
			data:       map[string]string{"prescription_id": "rx-123"},
			mockStatusCode: http.StatusOK,
			mockResponse: GatewayResponse{
				MessageID: "msg-abc123",
				Status:    "queued",
			},
			wantErr: false,
		},
		{
			name:           "Accepted status is treated as success",
			customerID:     "cust-002",
			template:       providers.TemplateClarificationRequested,
			data:           map[string]string{"prescription_id": "rx-456", "note": "dosage unreadable"},
			mockStatusCode: http.StatusAccepted,
			mockResponse: GatewayResponse{
				MessageID: "msg-def456",
				Status:    "queued",
			},
			wantErr: false,
		},
		{
			name:           "Gateway error response",
			customerID:     "cust-003",
			template:       providers.TemplatePrescriptionRejected,
			data:           map[string]string{"prescription_id": "rx-789"},
			mockStatusCode: http.StatusBadRequest,
			mockResponse:   GatewayResponse{},
			wantErr:        true,
		},
		{
			name:           "Empty parameters",
			customerID:     "cust-004",
			template:       providers.TemplatePrescriptionApproved,
			data:           nil,
			mockStatusCode: http.StatusOK,
			mockResponse: GatewayResponse{
				MessageID: "msg-ghi789",
				Status:    "queued",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "POST" {
					t.Errorf("Expected POST request, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Expected Content-Type: application/json, got %s", r.Header.Get("Content-Type"))
				}
				if r.Header.Get("Authorization") != "Bearer test_token" {
					t.Errorf("Expected bearer token header, got %s", r.Header.Get("Authorization"))
				}

				var message GatewayMessage
				if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
					t.Errorf("failed to decode request body: %v", err)
				}
				if message.CustomerID != tt.customerID {
					t.Errorf("Expected customer_id %s, got %s", tt.customerID, message.CustomerID)
				}
				if message.Template != string(tt.template) {
					t.Errorf("Expected template %s, got %s", tt.template, message.Template)
				}

				w.WriteHeader(tt.mockStatusCode)
				if err := json.NewEncoder(w).Encode(tt.mockResponse); err != nil {
					t.Errorf("failed to encode mock response: %v", err)
				}
			}))
			defer server.Close()

			sender := &GatewaySender{
				baseURL:    server.URL,
				apiToken:   "test_token",
				senderID:   "medleaf-pharmacy",
				httpClient: server.Client(),
			}

			err := sender.Send(context.Background(), tt.customerID, tt.template, tt.data)

			if (err != nil) != tt.wantErr {
				t.Errorf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGatewaySender_Send_NetworkError(t *testing.T) {
	sender := &GatewaySender{
		baseURL:    "http://127.0.0.1:1",
		apiToken:   "test_token",
		senderID:   "medleaf-pharmacy",
		httpClient: &http.Client{},
	}

	err := sender.Send(context.Background(), "cust-001", providers.TemplatePrescriptionApproved, nil)
	if err == nil {
		t.Error("Expected network error, got nil")
	}
}

func TestGatewaySender_NoMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(GatewayResponse{Status: "queued"}); err != nil {
			t.Errorf("failed to encode mock response: %v", err)
		}
	}))
	defer server.Close()

	sender := &GatewaySender{
		baseURL:    server.URL,
		apiToken:   "test_token",
		senderID:   "medleaf-pharmacy",
		httpClient: server.Client(),
	}

	err := sender.Send(context.Background(), "cust-001", providers.TemplatePrescriptionRejected, nil)
	if err == nil {
		t.Error("Expected error for missing message ID, got nil")
	}
}
