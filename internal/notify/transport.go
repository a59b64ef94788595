// Package notify defines the outbound notification boundary. Every send is
// best-effort: implementations report success as a bool and never return an
// error to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// JobKind selects the delivery channel.
type JobKind string

const (
	JobEmail JobKind = "email"
	JobSms   JobKind = "sms"
)

// Job is an ephemeral notification request handed to the worker pool. It is
// never persisted.
type Job struct {
	Kind    JobKind
	Address string
	Subject string
	Body    string
}

// Transport delivers notifications to the outside world.
type Transport interface {
	SendEmail(ctx context.Context, address, subject, body string) bool
	SendSms(ctx context.Context, number, body string) bool
}

// LogTransport is the development fallback: it records every send to the
// logger instead of delivering it.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport builds the logging transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) SendEmail(_ context.Context, address, subject, body string) bool {
	t.logger.Info("email notification",
		zap.String("to", address),
		zap.String("subject", subject),
		zap.String("body", body))
	return true
}

func (t *LogTransport) SendSms(_ context.Context, number, body string) bool {
	t.logger.Info("sms notification",
		zap.String("to", number),
		zap.String("body", body))
	return true
}

// WebhookTransport posts each notification as JSON to a configured endpoint,
// e.g. a mail relay sidecar.
type WebhookTransport struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookTransport builds the webhook transport.
func NewWebhookTransport(url string, logger *zap.Logger) *WebhookTransport {
	return &WebhookTransport{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (t *WebhookTransport) SendEmail(ctx context.Context, address, subject, body string) bool {
	return t.post(ctx, Job{Kind: JobEmail, Address: address, Subject: subject, Body: body})
}

func (t *WebhookTransport) SendSms(ctx context.Context, number, body string) bool {
	return t.post(ctx, Job{Kind: JobSms, Address: number, Body: body})
}

func (t *WebhookTransport) post(ctx context.Context, job Job) bool {
	payload, err := json.Marshal(job)
	if err != nil {
		t.logger.Warn("encode notification", zap.Error(err))
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		t.logger.Warn("build notification request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("deliver notification", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.logger.Warn("notification endpoint rejected send", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}
