package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BillingClient is the external subscription-status oracle. EntitlementExpiry
// returns the expiry of the premium entitlement, or nil when the subscriber has
// none. Any transport failure or non-2xx response is ErrOracleUnavailable.
type BillingClient interface {
	EntitlementExpiry(ctx context.Context, subscriberID string) (*time.Time, error)
}

// RevenueCatClient talks to a RevenueCat-style subscribers API.
type RevenueCatClient struct {
	BaseURL    string
	APIKey     string
	Product    string
	HTTPClient *http.Client
}

func NewRevenueCatClient(baseURL string, apiKey string, product string, timeout time.Duration) *RevenueCatClient {
	if baseURL == "" {
		baseURL = "https://api.revenuecat.com/v1"
	}
	if product == "" {
		product = "premium"
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RevenueCatClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Product:    product,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type subscriberResponse struct {
	Subscriber struct {
		Entitlements map[string]struct {
			ExpiresDate *time.Time `json:"expires_date"`
		} `json:"entitlements"`
	} `json:"subscriber"`
}

func (c *RevenueCatClient) EntitlementExpiry(ctx context.Context, subscriberID string) (*time.Time, error) {
	url := fmt.Sprintf("%s/subscribers/%s", c.BaseURL, subscriberID)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.APIKey)
	request.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrOracleUnavailable, response.StatusCode)
	}

	var body subscriberResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	entitlement, ok := body.Subscriber.Entitlements[c.Product]
	if !ok {
		return nil, nil
	}
	return entitlement.ExpiresDate, nil
}
