// Package sms sends verification codes to merchant phones through an HTTP
// SMS gateway.
package sms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Sender delivers a verification code to a phone number.
type Sender interface {
	SendCode(phone, code string) error
}

// GatewayClient sends verification SMS via a JSON HTTP gateway.
type GatewayClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewGatewayClient returns a client that uses the given API key and optional base URL/sender.
func NewGatewayClient(apiKey, baseURL, sender string) *GatewayClient {
	if baseURL == "" {
		baseURL = "https://api.smsgateway.local/v1/messages"
	}
	return &GatewayClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendCode sends the verification code to the given phone number.
// phone should be digits only (e.g. country code + number). Does not log the code.
func (c *GatewayClient) SendCode(phone, code string) error {
	if c.APIKey == "" {
		return fmt.Errorf("sms: API key not configured")
	}
	body := map[string]interface{}{
		"to":      phone,
		"from":    c.Sender,
		"message": fmt.Sprintf("Votre code de vérification est: %s", code),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
