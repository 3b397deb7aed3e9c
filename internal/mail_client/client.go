package mail_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client forwards password reset emails to the external mail relay.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// passwordResetRequest is the payload the relay expects. The relay
// authenticates callers through the token field.
type passwordResetRequest struct {
	Email string `json:"email"`
	Link  string `json:"link"`
	Token string `json:"token"`
}

// NewClient creates a new mail relay client
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// SendPasswordReset asks the relay to mail link to email.
func (c *Client) SendPasswordReset(ctx context.Context, email, link string) error {
	if c.baseURL == "" {
		return fmt.Errorf("mail relay is not configured")
	}

	jsonData, err := json.Marshal(passwordResetRequest{Email: email, Link: link, Token: c.apiKey})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"forward-email-password-reset", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Sending password reset email", zap.String("email", email), zap.String("relay", c.baseURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail relay returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
