// Package unbxd provides the transport client for the Unbxd indexing API.
//
// Each operation performs exactly one HTTP call and hands the raw response to
// the response interpreter. Network level failures are returned as
// *TransportError and never as an interpreted response. The client does not
// retry: uploads are not idempotent and retry policy belongs to the caller.
package unbxd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/unbxd/feedsync/internal/feed"
	"github.com/unbxd/feedsync/internal/otel"
	"github.com/unbxd/feedsync/internal/response"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// UserAgent is the user agent string sent with every request
	UserAgent = "feedsync/1.0"

	// DefaultTimeout is the per-call timeout when none is configured
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps the number of response bytes read
	MaxResponseSize = 10 * 1024 * 1024
)

// Operation names a transport call
type Operation string

const (
	// OperationUpload submits an add/update catalog payload
	OperationUpload Operation = "upload"
	// OperationDelete submits a delete catalog payload
	OperationDelete Operation = "delete"
	// OperationStatus queries the state of an asynchronous upload
	OperationStatus Operation = "status"
)

// Client issues calls to the indexing API
type Client interface {
	// Upload submits an add/update payload for a store
	Upload(ctx context.Context, storeID string, feedType feed.FeedType, payload *feed.Payload) (*response.APIResponse, error)
	// Delete removes entities from a store's index
	Delete(ctx context.Context, storeID string, entityIDs []string) (*response.APIResponse, error)
	// CheckStatus queries the state of an asynchronous upload
	CheckStatus(ctx context.Context, storeID, uploadID string) (*response.APIResponse, error)
}

// DefaultClient is the HTTP implementation of Client
type DefaultClient struct {
	host        string
	credentials CredentialResolver
	httpClient  *http.Client
	limiter     *rate.Limiter
	tracer      trace.Tracer
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *DefaultClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *DefaultClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit limits outgoing calls to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *DefaultClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTracer sets the tracer used for call spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *DefaultClient) {
		c.tracer = tracer
	}
}

// NewClient creates a client for the API at host
func NewClient(host string, credentials CredentialResolver, opts ...Option) *DefaultClient {
	c := &DefaultClient{
		host:        strings.TrimRight(host, "/"),
		credentials: credentials,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload implements Client
func (c *DefaultClient) Upload(
	ctx context.Context, storeID string, feedType feed.FeedType, payload *feed.Payload,
) (*response.APIResponse, error) {
	if !feedType.Valid() {
		return nil, fmt.Errorf("unsupported feed type %q", feedType)
	}
	return c.post(ctx, OperationUpload, storeID, "upload/"+string(feedType), payload)
}

// Delete implements Client. Deletes always go through the incremental endpoint.
func (c *DefaultClient) Delete(ctx context.Context, storeID string, entityIDs []string) (*response.APIResponse, error) {
	return c.post(ctx, OperationDelete, storeID, "upload/"+string(feed.FeedTypeIncremental),
		feed.BuildDeletePayload(entityIDs))
}

// CheckStatus implements Client
func (c *DefaultClient) CheckStatus(ctx context.Context, storeID, uploadID string) (*response.APIResponse, error) {
	if uploadID == "" {
		return nil, ErrMissingUploadID
	}
	return c.do(ctx, OperationStatus, storeID, http.MethodGet,
		"catalog/"+url.PathEscape(uploadID)+"/status", nil, otel.AttrUploadID.String(uploadID))
}

func (c *DefaultClient) post(
	ctx context.Context, op Operation, storeID, path string, payload *feed.Payload,
) (*response.APIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", op, err)
	}
	return c.do(ctx, op, storeID, http.MethodPost, path, body)
}

func (c *DefaultClient) do(
	ctx context.Context,
	op Operation,
	storeID, method, path string,
	body []byte,
	attrs ...attribute.KeyValue,
) (*response.APIResponse, error) {
	creds, err := c.credentials.Resolve(storeID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/%s/%s", c.host, url.PathEscape(creds.SiteKey), path)

	ctx, span := otel.StartSpan(ctx, c.tracer, "unbxd."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs,
			otel.AttrOperation.String(string(op)),
			otel.AttrStoreID.String(storeID),
		)...),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			terr := NewTransportError(op, storeID, endpoint, err)
			otel.RecordError(span, terr)
			return nil, terr
		}
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", creds.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := NewTransportError(op, storeID, endpoint, err)
		otel.RecordError(span, terr)
		slog.Warn("Unbxd request failed",
			"operation", op,
			"store_id", storeID,
			"error", err)
		return nil, terr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		terr := NewTransportError(op, storeID, endpoint, fmt.Errorf("failed to read response body: %w", err))
		otel.RecordError(span, terr)
		return nil, terr
	}
	if len(data) > MaxResponseSize {
		terr := NewTransportError(op, storeID, endpoint, ErrResponseTooLarge)
		otel.RecordError(span, terr)
		return nil, terr
	}

	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	apiResp := response.FromHTTP(resp.StatusCode, reason, data)

	span.SetAttributes(otel.AttrStatusCode.Int(resp.StatusCode))
	slog.Debug("Unbxd request completed",
		"operation", op,
		"store_id", storeID,
		"status_code", resp.StatusCode,
		"duration", time.Since(start))

	return apiResp, nil
}
