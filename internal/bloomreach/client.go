// Package bloomreach is the JSON HTTP client for the Bloomreach (Exponea)
// engagement API. HTTP-level failures (4xx/5xx) are data, reported through
// the Response envelope; only transport-layer failures populate TransportErr.
package bloomreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/common/metrics"
)

// maxLoggedBody bounds how much of a rejected reply lands in the logs.
const maxLoggedBody = 500

// Response is the normalized outcome of one outbound call.
type Response struct {
	StatusCode   int
	RawBody      []byte
	TransportErr error
}

// OK reports a completed call with a 2xx status.
func (r *Response) OK() bool {
	return r.TransportErr == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type Client struct {
	baseURL    string
	project    string
	credential string
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(baseURL, project, credential string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		project:    project,
		credential: credential,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

// SendEvent posts one event to the ingestion endpoint.
func (c *Client) SendEvent(ctx context.Context, ev Event) *Response {
	url := fmt.Sprintf("%s/track/v2/projects/%s/customers/events", c.baseURL, c.project)
	return c.post(ctx, EndpointEvents, url, ev)
}

// UpdateCustomer posts a profile update for the identified customer.
func (c *Client) UpdateCustomer(ctx context.Context, ids CustomerIDs, props map[string]interface{}) *Response {
	url := fmt.Sprintf("%s/track/v2/projects/%s/customers", c.baseURL, c.project)
	return c.post(ctx, EndpointCustomers, url, customerUpdate{
		CustomerIDs: ids,
		Properties:  props,
	})
}

// ReadConsent queries the valid consent attribute for one consent category.
func (c *Client) ReadConsent(ctx context.Context, email, consentKey string) *Response {
	url := fmt.Sprintf("%s/data/v2/projects/%s/customers/attributes", c.baseURL, c.project)
	return c.post(ctx, EndpointAttributes, url, attributesRequest{
		CustomerIDs: CustomerIDs{"email": email},
		Attributes: []attributeQuery{
			{Type: "consent", Category: consentKey, Mode: "valid"},
		},
	})
}

func (c *Client) post(ctx context.Context, endpoint, url string, body interface{}) *Response {
	start := time.Now()

	jsonData, err := json.Marshal(body)
	if err != nil {
		return &Response{TransportErr: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return &Response{TransportErr: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", AuthorizationHeader(c.credential))

	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		c.logger.Warn("Bloomreach call failed at transport layer", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
			"token":    logger.MaskSecret(c.credential),
		})
		return &Response{TransportErr: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return &Response{StatusCode: resp.StatusCode, TransportErr: fmt.Errorf("failed to read response body: %w", err)}
	}

	out := &Response{StatusCode: resp.StatusCode, RawBody: raw}

	if out.OK() {
		metrics.APIRequests.WithLabelValues(endpoint, "ok").Inc()
		c.logger.Debug("Bloomreach call completed", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
	} else {
		metrics.APIRequests.WithLabelValues(endpoint, "rejected").Inc()
		c.logger.Warn("Bloomreach rejected request", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		c.logger.Debug("Bloomreach rejection body", map[string]interface{}{
			"endpoint": endpoint,
			"body":     truncate(string(raw), maxLoggedBody),
		})
	}

	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
