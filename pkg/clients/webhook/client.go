package webhook

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/lottrace/internal/config"
	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// Client delivers domain events to an external HTTP endpoint.
type Client interface {
	Notify(ctx context.Context, event models.Event) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	url        string
}

// NewClient builds a webhook client using the provided configuration values.
func NewClient(cfg config.WebhookConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	if cfg.Token != "" {
		restyClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Token))
	}

	return &APIClient{
		httpClient: restyClient,
		url:        strings.TrimSpace(cfg.URL),
	}
}

// deliveryError represents the error body a receiver may return.
type deliveryError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Notify POSTs the event as JSON. Any status >= 400 is an error.
func (c *APIClient) Notify(ctx context.Context, event models.Event) error {
	apiErr := new(deliveryError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", string(event.Type)).
		SetHeader("X-Event-ID", event.ID).
		SetBody(event).
		SetError(apiErr).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("deliver event %s: %w", event.ID, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error
		}
		return fmt.Errorf("webhook error: code=%d, message=%s", resp.StatusCode(), message)
	}

	return nil
}
