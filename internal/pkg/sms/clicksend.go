package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

const clickSendDefaultURL = "https://rest.clicksend.com/v3/sms/send"

// ClickSendConfig holds ClickSend credentials.
type ClickSendConfig struct {
	Username string
	APIKey   string
	From     string
	// URL overrides the API endpoint.
	URL string
}

type clickSendMessage struct {
	Source string `json:"source"`
	Body   string `json:"body"`
	To     string `json:"to"`
	From   string `json:"from,omitempty"`
}

type clickSendPayload struct {
	Messages []clickSendMessage `json:"messages"`
}

// ClickSend sends through the ClickSend v3 REST API with basic auth.
type ClickSend struct {
	cfg    ClickSendConfig
	client *http.Client
}

// NewClickSend validates cfg and returns the driver.
func NewClickSend(cfg ClickSendConfig, client *http.Client) (*ClickSend, error) {
	if cfg.Username == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.URL == "" {
		cfg.URL = clickSendDefaultURL
	}
	return &ClickSend{cfg: cfg, client: client}, nil
}

func (c *ClickSend) Provider() string { return DriverClickSend }

func (c *ClickSend) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(clickSendPayload{Messages: []clickSendMessage{{
		Source: "api",
		Body:   msg.Body,
		To:     msg.To,
		From:   c.cfg.From,
	}}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	//nolint:errcheck // drain for connection reuse
	io.Copy(io.Discard, resp.Body)

	return checkStatus(DriverClickSend, resp)
}
