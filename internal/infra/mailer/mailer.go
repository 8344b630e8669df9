package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
	"github.com/yenvi12/aifshop-auth/internal/infra/logger"
)

const defaultTimeout = 10 * time.Second

// Client delivers transactional mail through an HTTP send API.
type Client struct {
	apiURL     string
	apiKey     string
	fromEmail  string
	fromName   string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient constructs a mail client from configuration.
func NewClient(cfg config.MailerSettings, log *zap.Logger) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("mailer: api url is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("mailer: from email is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// SendOTP delivers the registration verification code.
func (c *Client) SendOTP(ctx context.Context, email, firstName, code string) error {
	subject := "Your AIFShop verification code"
	text := fmt.Sprintf(
		"Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.\n\nIf you did not request this, ignore this message.\n",
		firstName, code,
	)
	return c.send(ctx, email, subject, text)
}

// SendWelcome delivers the post-verification welcome message.
func (c *Client) SendWelcome(ctx context.Context, email, firstName string) error {
	subject := "Welcome to AIFShop"
	text := fmt.Sprintf(
		"Hi %s,\n\nYour account is verified and ready to use. Happy shopping!\n",
		firstName,
	)
	return c.send(ctx, email, subject, text)
}

type sendRequest struct {
	From    address   `json:"from"`
	To      []address `json:"to"`
	Subject string    `json:"subject"`
	Text    string    `json:"text"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (c *Client) send(ctx context.Context, to, subject, text string) error {
	payload, err := json.Marshal(sendRequest{
		From:    address{Email: c.fromEmail, Name: c.fromName},
		To:      []address{{Email: to}},
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail API returned status %d: %s", resp.StatusCode, string(body))
	}

	c.log.Debug("mail dispatched",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", subject),
	)

	return nil
}

var _ port.MailSender = (*Client)(nil)
