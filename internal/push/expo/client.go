// Package expo implements the push gateway against the Expo push API.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/push"
)

const (
	// ProviderName identifies this push provider.
	ProviderName = "expo"

	// DefaultBaseURL is the Expo push API base URL.
	DefaultBaseURL = "https://exp.host/--/api/v2"
)

// ClientConfig holds configuration for the Expo client.
type ClientConfig struct {
	// AccessToken is the Expo access token (optional for unsecured projects).
	AccessToken string

	// BaseURL is the API base URL (optional, defaults to the Expo API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Expo push API client.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *resilience.Client
	logger      zerolog.Logger
}

// NewClient creates a new Expo push client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	resilience.GlobalRegistry.Register(ProviderName, httpClient)

	return &Client{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// expoTicket is one entry of the Expo send response.
type expoTicket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type expoSendResponse struct {
	Data []expoTicket `json:"data"`
}

// SendBatch submits all messages in one call to the Expo push endpoint and
// returns one receipt per message, in order.
func (c *Client) SendBatch(ctx context.Context, messages []push.Message) ([]push.Receipt, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encoding push batch: %w", err)
	}

	url := c.baseURL + "/push/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		resilience.GlobalRegistry.RecordFailure(ProviderName, err)
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		resilience.GlobalRegistry.RecordFailure(ProviderName, err)
		return nil, err
	}
	resilience.GlobalRegistry.RecordSuccess(ProviderName)

	var sendResp expoSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	receipts := make([]push.Receipt, 0, len(sendResp.Data))
	for _, ticket := range sendResp.Data {
		status := push.DeliveryOK
		if ticket.Status != "ok" {
			status = push.DeliveryError
			c.logger.Warn().
				Str("status", ticket.Status).
				Str("message", ticket.Message).
				Msg("push ticket rejected")
		}
		receipts = append(receipts, push.Receipt{Status: status, Message: ticket.Message})
	}
	return receipts, nil
}

// Ensure interface conformance.
var _ push.Gateway = (*Client)(nil)
