package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"school-secretary/internal/httpx"
	"school-secretary/internal/providers"
)

const contentTypeJSON = "application/json"

// Client sends plaintext email through the Resend REST API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpx.NewClient(timeout),
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send delivers msg with a single attempt.
func (c *Client) Send(ctx context.Context, msg providers.Message) error {
	if c.APIKey == "" {
		return errors.New("resend: missing api key")
	}

	b, err := json.Marshal(sendRequest{From: msg.From, To: []string{msg.To}, Subject: msg.Subject, Text: msg.Text})
	if err != nil {
		return err
	}

	_, _, err = httpx.Do(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/emails", bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", contentTypeJSON)
			r.Header.Set("Accept", contentTypeJSON)
			r.Header.Set("Authorization", "Bearer "+c.APIKey)
			return r, nil
		},
		httpx.SingleAttempt(),
	)
	if err != nil {
		var herr *httpx.HTTPError
		if errors.As(err, &herr) {
			return fmt.Errorf("email send failed (%d): %s", herr.StatusCode, httpx.Snippet(herr.Body, 900))
		}
		return fmt.Errorf("email send failed: %w", err)
	}
	return nil
}
