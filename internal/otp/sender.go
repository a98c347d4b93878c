package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSender posts the code to a provider's REST endpoint with a bearer
// token. Field names how the payload is keyed: "phone" for the SMS channel,
// "email" for the mail channel.
type HTTPSender struct {
	URL        string
	Token      string
	Field      string
	HTTPClient *http.Client
}

func NewSMSSender(url, token string) *HTTPSender {
	return &HTTPSender{URL: url, Token: token, Field: "phone", HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func NewEmailSender(url, token string) *HTTPSender {
	return &HTTPSender{URL: url, Token: token, Field: "email", HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSender) Send(ctx context.Context, identifier, code string) error {
	payload := map[string]string{
		s.Field: identifier,
		"code":  code,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("otp: marshal payload failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("otp: build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("otp: provider call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("otp: provider returned %s", resp.Status)
	}
	return nil
}
