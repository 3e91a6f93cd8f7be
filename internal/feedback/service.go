package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

const feedbackSubject = "MCQS Feedback"

var ErrNotConfigured = errors.New("feedback delivery is not configured")

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type ServiceConfig struct {
	// RelayURL, when set, receives the feedback as JSON. Otherwise the
	// message goes out over SMTP.
	RelayURL   string
	Recipient  string
	SMTP       SMTPConfig
	HTTPClient *http.Client
}

type Service struct {
	relayURL  string
	recipient string
	smtp      SMTPConfig
	client    *http.Client
}

func NewService(cfg ServiceConfig) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{
		relayURL:  strings.TrimSpace(cfg.RelayURL),
		recipient: strings.TrimSpace(cfg.Recipient),
		smtp:      cfg.SMTP,
		client:    client,
	}
}

// Submit delivers one piece of free-text feedback with the fixed
// subject and recipient. No retry; the caller surfaces success or
// failure as-is.
func (s *Service) Submit(ctx context.Context, body string) error {
	msg := strings.TrimSpace(body)
	if msg == "" {
		return fmt.Errorf("feedback body is required")
	}
	if s.recipient == "" {
		return ErrNotConfigured
	}

	if s.relayURL != "" {
		return s.submitRelay(ctx, msg)
	}
	return s.submitSMTP(msg)
}

type relayPayload struct {
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"html_body"`
	To       []string `json:"to"`
}

func (s *Service) submitRelay(ctx context.Context, msg string) error {
	body, err := json.Marshal(relayPayload{
		Subject:  feedbackSubject,
		HTMLBody: msg,
		To:       []string{s.recipient},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("feedback relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feedback relay status %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) submitSMTP(msg string) error {
	if strings.TrimSpace(s.smtp.Host) == "" || s.smtp.Port <= 0 || strings.TrimSpace(s.smtp.From) == "" {
		return ErrNotConfigured
	}
	addr := fmt.Sprintf("%s:%d", s.smtp.Host, s.smtp.Port)

	raw := "From: " + s.smtp.From + "\r\n" +
		"To: " + s.recipient + "\r\n" +
		"Subject: " + feedbackSubject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		msg + "\r\n"

	var auth smtp.Auth
	if s.smtp.User != "" {
		auth = smtp.PlainAuth("", s.smtp.User, s.smtp.Pass, s.smtp.Host)
	}

	if err := smtp.SendMail(addr, auth, s.smtp.From, []string{s.recipient}, []byte(raw)); err != nil {
		return fmt.Errorf("smtp send feedback: %w", err)
	}
	return nil
}
