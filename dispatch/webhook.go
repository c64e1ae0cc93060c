package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/autom8ter/notify"
	"github.com/autom8ter/notify/errors"
)

// Webhook delivers notifications as json POSTs to the destination url. Any response
// below 400 counts as delivered; timeouts are whatever the injected client is
// configured with.
type Webhook struct {
	client *http.Client
	logger notify.Logger
}

// NewWebhook returns a webhook dispatcher. A nil client falls back to
// http.DefaultClient.
func NewWebhook(client *http.Client, logger notify.Logger) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{client: client, logger: logger}
}

func (w *Webhook) Dispatch(ctx context.Context, data notify.NotifData, destination string) error {
	bits, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(bits))
	if err != nil {
		return errors.Wrap(err, errors.Validation, "bad webhook destination: %s", destination)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn(ctx, "webhook dispatch failed", map[string]any{
			"destination": destination,
			"id":          data.Id,
			"error":       err.Error(),
		})
		return errors.Wrap(err, errors.Unavailable, "webhook dispatch failed: %s", destination)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		w.logger.Warn(ctx, "webhook rejected", map[string]any{
			"destination": destination,
			"id":          data.Id,
			"status":      resp.StatusCode,
		})
		return errors.New(errors.Internal, "webhook %s responded %d", destination, resp.StatusCode)
	}
	w.logger.Debug(ctx, "webhook delivered", map[string]any{
		"destination": destination,
		"id":          data.Id,
		"status":      resp.StatusCode,
	})
	return nil
}
