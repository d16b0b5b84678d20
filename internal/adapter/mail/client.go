package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.Mailer = (*Client)(nil)

// ClientConfig configures the transactional email API client.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

// Client sends mail through a transactional email HTTP API.
type Client struct {
	http *resty.Client
	cfg  ClientConfig
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type sendRequest struct {
	Sender      address      `json:"sender"`
	To          []address    `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
	Attachments []attachment `json:"attachment,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("api-key", cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, cfg: cfg}
}

// Send posts msg. Attachments are sent base64-encoded.
func (c *Client) Send(ctx context.Context, msg domain.Message) error {
	if len(msg.To) == 0 {
		return errors.New("message has no recipient")
	}

	body := sendRequest{
		Sender:      address{Email: c.cfg.From, Name: c.cfg.FromName},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	for _, to := range msg.To {
		body.To = append(body.To, address{Email: to})
	}
	for _, a := range msg.Attachments {
		body.Attachments = append(body.Attachments, attachment{
			Name:    a.Name,
			Content: base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post("/v3/smtp/email")
	if err != nil {
		return fmt.Errorf("calling mail api: %w", err)
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("mail api returned %d: %s", resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("mail api returned %d", resp.StatusCode())
	}
	return nil
}
