package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
)

// HTTPOrderGateway signals the downstream order service when a prescription is
// approved. Fulfillment, invoicing and payment are owned by that service.
type HTTPOrderGateway struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewHTTPOrderGateway creates a new order gateway client
func NewHTTPOrderGateway(baseURL, apiToken string) (providers.OrderProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("order service URL must be set")
	}
	return &HTTPOrderGateway{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type createOrderRequest struct {
	PrescriptionID string `json:"prescription_id"`
	CustomerID     string `json:"customer_id"`
	ImageURL       string `json:"image_url"`
}

type createOrderResponse struct {
	OrderID string `json:"order_id"`
}

// CreateFromPrescription creates a downstream order for an approved prescription
func (g *HTTPOrderGateway) CreateFromPrescription(ctx context.Context, prescription *entities.PrescriptionRecord) (string, error) {
	payload, err := json.Marshal(createOrderRequest{
		PrescriptionID: prescription.ID,
		CustomerID:     prescription.CustomerID,
		ImageURL:       prescription.ImageURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/orders", g.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call order service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("order service error (status %d): %s", resp.StatusCode, string(body))
	}

	var orderResp createOrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if orderResp.OrderID == "" {
		return "", fmt.Errorf("no order ID in response")
	}

	return orderResp.OrderID, nil
}
