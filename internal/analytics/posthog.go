package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hookrelay/internal/constants"
	"hookrelay/pkg/errors"
)

// PostHogClient speaks the PostHog capture API. Identify and group updates
// ride the same endpoint as special event names.
type PostHogClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

type captureRequest struct {
	APIKey     string                 `json:"api_key"`
	Event      string                 `json:"event"`
	DistinctID string                 `json:"distinct_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

func NewPostHogClient(apiKey, host string, timeout time.Duration) *PostHogClient {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &PostHogClient{
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(host, "/"),
	}
}

func (c *PostHogClient) Identify(ctx context.Context, distinctID string, properties map[string]interface{}) error {
	return c.capture(ctx, captureRequest{
		Event:      "$identify",
		DistinctID: distinctID,
		Properties: map[string]interface{}{"$set": properties},
	})
}

func (c *PostHogClient) Capture(ctx context.Context, distinctID, event string, properties map[string]interface{}) error {
	return c.capture(ctx, captureRequest{
		Event:      event,
		DistinctID: distinctID,
		Properties: properties,
	})
}

func (c *PostHogClient) GroupIdentify(ctx context.Context, groupType, groupKey string, properties map[string]interface{}, distinctID string) error {
	if distinctID == "" {
		distinctID = constants.UnknownDistinctID
	}
	return c.capture(ctx, captureRequest{
		Event:      "$groupidentify",
		DistinctID: distinctID,
		Properties: map[string]interface{}{
			"$group_type": groupType,
			"$group_key":  groupKey,
			"$group_set":  properties,
		},
	})
}

func (c *PostHogClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *PostHogClient) capture(ctx context.Context, payload captureRequest) error {
	payload.APIKey = c.apiKey
	payload.Timestamp = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.ErrDelivery.WithCause(err).AsFatal()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/capture/", bytes.NewReader(body))
	if err != nil {
		return errors.ErrDelivery.WithCause(err).AsFatal()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.ErrDelivery.WithCause(err).AsRetryable()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	deliveryErr := errors.ErrDelivery.
		WithMessage(fmt.Sprintf("analytics sink returned status %d", resp.StatusCode)).
		WithDetail("status_code", resp.StatusCode).
		WithDetail("event", payload.Event)
	if len(respBody) > 0 {
		deliveryErr = deliveryErr.WithDetail("response", string(respBody))
	}

	// 4xx means the request itself is bad and retrying will not help.
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return deliveryErr.AsFatal()
	}
	return deliveryErr.AsRetryable()
}
