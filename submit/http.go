package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/pithecene-io/burrow/iox"
	"github.com/pithecene-io/burrow/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// DefaultRetries is the default number of in-request retry attempts.
const DefaultRetries = 2

// DefaultRetryInterval is the first in-request backoff interval.
const DefaultRetryInterval = 500 * time.Millisecond

// uploadFileField is the multipart field carrying the report JSON.
const uploadFileField = "upload_file"

// HTTPConfig configures the HTTP submission client.
type HTTPConfig struct {
	// URL receives report submissions (required).
	URL string
	// AttachmentURL receives attachment uploads. Defaults to URL.
	AttachmentURL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 15s).
	Timeout time.Duration
	// Retries is the number of in-request retries on 5xx and transport
	// failures (default 2). Retries are paced by exponential backoff.
	Retries int
	// RetryInterval is the initial backoff interval (default 500ms).
	RetryInterval time.Duration
	// RateLimit caps report submissions per second. Zero disables the
	// limit. Submissions over the limit return StatusLimitReached.
	RateLimit float64
	// RateBurst is the limiter burst (default 1).
	RateBurst int
}

// DefaultHTTPConfig returns a config for url with default settings.
func DefaultHTTPConfig(url string) HTTPConfig {
	return HTTPConfig{
		URL:           url,
		Timeout:       DefaultTimeout,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
	}
}

// HTTPClient submits reports as JSON (or multipart when attachments
// travel along) and uploads attachments as raw bodies.
type HTTPClient struct {
	config  HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTP client from cfg.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("http submission client requires a URL")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("http submission client: invalid URL: %w", err)
	}
	if cfg.AttachmentURL == "" {
		cfg.AttachmentURL = cfg.URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	c := &HTTPClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return c, nil
}

// submitResponse is the success body returned by the endpoint.
type submitResponse struct {
	RXID string `json:"_rxid"`
}

// Send implements Client.
func (c *HTTPClient) Send(ctx context.Context, report *types.Report, attachments []types.Attachment) types.SubmissionResult {
	if c.limiter != nil && !c.limiter.Allow() {
		return types.Failed(types.StatusLimitReached, "client report limit reached")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return types.Failed(types.StatusUnsupported, fmt.Sprintf("marshal report: %v", err))
	}

	contentType := "application/json"
	body := payload
	if len(attachments) > 0 {
		body, contentType, err = multipartBody(payload, attachments)
		if err != nil {
			return types.Failed(types.StatusUnknown, err.Error())
		}
	}

	return c.post(ctx, c.config.URL, body, contentType)
}

// SendAttachment implements Client.
func (c *HTTPClient) SendAttachment(ctx context.Context, rxid string, attachment types.Attachment) types.SubmissionResult {
	data, ok := attachmentBytes(attachment)
	if !ok {
		return types.Failed(types.StatusReportSkipped, "attachment has no content")
	}

	target, err := url.Parse(c.config.AttachmentURL)
	if err != nil {
		return types.Failed(types.StatusUnsupported, err.Error())
	}
	q := target.Query()
	q.Set("object", rxid)
	q.Set("attachment_name", attachment.Name)
	target.RawQuery = q.Encode()

	return c.post(ctx, target.String(), data, "application/octet-stream")
}

// multipartBody packs the report and its attachments into one form.
// Attachments without content are left out.
func multipartBody(payload []byte, attachments []types.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(uploadFileField, uploadFileField+".json")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}

	for _, a := range attachments {
		data, ok := attachmentBytes(a)
		if !ok {
			continue
		}
		part, err := w.CreateFormFile("attachment_"+a.Name, a.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// post sends body with backoff-paced retries on retriable outcomes.
func (c *HTTPClient) post(ctx context.Context, target string, body []byte, contentType string) types.SubmissionResult {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval

	var result types.SubmissionResult
	// attempts = 1 initial + retries
	attempts := 1 + c.config.Retries

	for i := range attempts {
		if res, done := canceled(ctx); done {
			return res
		}

		if i > 0 {
			sleep := b.NextBackOff()
			if sleep == backoff.Stop {
				break
			}
			select {
			case <-ctx.Done():
				return types.Failed(types.StatusNetworkError, ctx.Err().Error())
			case <-time.After(sleep):
			}
		}

		var retry bool
		result, retry = c.doRequest(ctx, target, body, contentType)
		if !retry {
			return result
		}
	}
	return result
}

// doRequest performs a single HTTP POST and classifies the response.
// retry is true for 5xx responses and transport failures; 4xx
// responses are non-retriable within the request.
func (c *HTTPClient) doRequest(ctx context.Context, target string, body []byte, contentType string) (result types.SubmissionResult, retry bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return types.Failed(types.StatusUnknown, fmt.Sprintf("create request: %v", err)), false
	}

	req.Header.Set("Content-Type", contentType)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.Failed(types.StatusNetworkError, fmt.Sprintf("request failed: %v", err)), ctx.Err() == nil
	}
	defer iox.DiscardClose(resp.Body)

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed submitResponse
		// a body without an rxid is still an accepted submission
		_ = json.Unmarshal(respBody, &parsed)
		return types.Ok(parsed.RXID), false
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.Failed(types.StatusInvalidToken, fmt.Sprintf("unexpected status %d", resp.StatusCode)), false
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.Failed(types.StatusLimitReached, "server report limit reached"), false
	default:
		msg := fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, respBody)
		return types.Failed(types.StatusServerError, msg), resp.StatusCode >= 500
	}
}

// Close releases client resources.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
