package sms

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const sevenDefaultURL = "https://gateway.seven.io/api/sms"

// SevenConfig holds seven.io credentials.
type SevenConfig struct {
	APIKey string
	From   string
	// URL overrides the API endpoint.
	URL string
}

// Seven sends through seven.io: form fields to, text and from with the
// X-Api-Key header.
type Seven struct {
	cfg    SevenConfig
	client *http.Client
}

// NewSeven validates cfg and returns the driver.
func NewSeven(cfg SevenConfig, client *http.Client) (*Seven, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.URL == "" {
		cfg.URL = sevenDefaultURL
	}
	return &Seven{cfg: cfg, client: client}, nil
}

func (s *Seven) Provider() string { return DriverSeven }

func (s *Seven) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("to", msg.To)
	form.Set("text", msg.Body)
	if s.cfg.From != "" {
		form.Set("from", s.cfg.From)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	//nolint:errcheck // drain for connection reuse
	io.Copy(io.Discard, resp.Body)

	return checkStatus(DriverSeven, resp)
}
