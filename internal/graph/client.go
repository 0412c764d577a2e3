// Package graph reads device-management collections from Microsoft Graph.
//
// Every operation issues exactly one GET against a fixed path with the caller's
// bearer token. Collection envelopes are unwrapped to their first page only;
// "@odata.nextLink" is not followed.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/intuneview/intuneview/internal/metrics"
)

const (
	DefaultBaseURL   = "https://graph.microsoft.com/v1.0"
	defaultUserAgent = "intuneview"
)

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	Logger     *slog.Logger
}

// Client is safe for concurrent use. It holds no token and caches nothing.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("graph base url must be absolute")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:      httpClient,
		baseURL:   base,
		userAgent: userAgent,
		logger:    logger,
	}, nil
}

func (c *Client) GetUserProfile(ctx context.Context, token string) (*Record, error) {
	body, err := c.get(ctx, token, ResourceUserProfile)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, &FetchError{Resource: ResourceUserProfile, Err: err}
	}
	return &rec, nil
}

func (c *Client) ListDeviceConfigurations(ctx context.Context, token string) ([]*Record, error) {
	return c.List(ctx, token, ResourceDeviceConfigurations)
}

func (c *Client) ListCompliancePolicies(ctx context.Context, token string) ([]*Record, error) {
	return c.List(ctx, token, ResourceCompliancePolicies)
}

func (c *Client) ListManagedDevices(ctx context.Context, token string) ([]*Record, error) {
	return c.List(ctx, token, ResourceManagedDevices)
}

func (c *Client) ListMobileApps(ctx context.Context, token string) ([]*Record, error) {
	return c.List(ctx, token, ResourceMobileApps)
}

func (c *Client) ListEnrollmentConfigurations(ctx context.Context, token string) ([]*Record, error) {
	return c.List(ctx, token, ResourceEnrollmentConfigurations)
}

func (c *Client) ListConditionalAccessPolicies(ctx context.Context, token string) ([]*Record, error) {
	return c.List(ctx, token, ResourceConditionalAccessPolicies)
}

// List fetches the first page of a collection resource. A missing or null
// "value" yields an empty, non-nil slice.
func (c *Client) List(ctx context.Context, token string, resource Resource) ([]*Record, error) {
	if !resource.IsCollection() {
		return nil, &FetchError{Resource: resource, Err: errors.New("not a collection resource")}
	}
	body, err := c.get(ctx, token, resource)
	if err != nil {
		return nil, err
	}

	var page struct {
		Value []*Record `json:"value"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &FetchError{Resource: resource, Err: err}
	}

	out := make([]*Record, 0, len(page.Value))
	for _, rec := range page.Value {
		if rec == nil {
			rec = &Record{}
		}
		out = append(out, rec)
	}
	metrics.GraphRecordsReturned.WithLabelValues(string(resource)).Observe(float64(len(out)))
	return out, nil
}

func (c *Client) resourceURL(resource Resource) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + resource.Path()
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, token string, resource Resource) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &FetchError{Resource: resource, Err: errors.New("bearer token is required")}
	}
	endpoint, err := c.resourceURL(resource)
	if err != nil {
		return nil, &FetchError{Resource: resource, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Resource: resource, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GraphRequestDuration.WithLabelValues(string(resource)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GraphRequestsTotal.WithLabelValues(string(resource), "transport_error").Inc()
		return nil, &FetchError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()
	metrics.GraphRequestsTotal.WithLabelValues(string(resource), strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil {
			return nil, &FetchError{Resource: resource, StatusCode: resp.StatusCode, Status: resp.Status, Err: readErr}
		}
		fetchErr := newStatusError(resource, endpoint, resp, body)
		c.logger.Debug("graph request failed",
			"resource", string(resource),
			"status", resp.StatusCode,
			"request_id", resp.Header.Get("request-id"),
		)
		return nil, fetchErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Resource: resource, StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	return body, nil
}
