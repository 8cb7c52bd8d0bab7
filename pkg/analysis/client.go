// Package analysis provides an HTTP client for the appeal analysis service,
// which cleans hotline workbooks, clusters them, and extracts per-cluster
// keywords through an LLM.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/civiclens/appeals-cli/internal/resilience"
)

// Default base URL for a locally running analysis service.
const defaultBaseURL = "http://localhost:8000"

// Client defines the analysis service operations.
type Client interface {
	Preprocess(ctx context.Context, req PreprocessRequest) (*PreprocessResponse, error)
	Cluster(ctx context.Context, req ClusterRequest) (*ClusterResponse, error)
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error)
	ExtractKeywords(ctx context.Context, req ExtractKeywordsRequest) (*ExtractKeywordsResponse, error)
	Download(ctx context.Context, filename string) ([]byte, error)
	LoadState(ctx context.Context) (*StateResponse, error)
}

// APIError is returned when the service responds with a non-2xx status.
// Detail carries the service's own failure description when the error body
// decodes as {"detail": "..."}.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis: HTTP %d: %s", e.StatusCode, e.Message())
}

// Message returns the service-reported detail verbatim, or "HTTP <status>"
// when the body carried none.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit sets a per-second rate limit for service calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the default retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a new analysis service client. The generous default
// timeout accommodates clustering runs over large workbooks.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		retry:   resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Preprocess(ctx context.Context, req PreprocessRequest) (*PreprocessResponse, error) {
	fields := map[string]string{
		"extractor_type": req.ExtractorType,
		"use_ner":        strconv.FormatBool(req.UseNER),
	}
	if req.ColumnName != "" {
		fields["column_name"] = req.ColumnName
	}

	var resp PreprocessResponse
	err := c.postForm(ctx, "/api/preprocess", "preprocess", formFile{"file", req.FileName, req.FileData}, fields, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: preprocess")
	}
	return &resp, nil
}

func (c *httpClient) Cluster(ctx context.Context, req ClusterRequest) (*ClusterResponse, error) {
	fields := map[string]string{
		"auto_save": "true",
	}
	if req.TextColumn != "" {
		fields["text_column"] = req.TextColumn
	}
	if req.OriginalColumn != "" {
		fields["original_column"] = req.OriginalColumn
	}
	if req.NNeighbors > 0 {
		fields["n_neighbors"] = strconv.Itoa(req.NNeighbors)
	}
	if req.NComponents > 0 {
		fields["n_components"] = strconv.Itoa(req.NComponents)
	}
	if req.MinClusterSize > 0 {
		fields["min_cluster_size"] = strconv.Itoa(req.MinClusterSize)
	}
	if req.KeywordTopN > 0 {
		fields["keyword_top_n"] = strconv.Itoa(req.KeywordTopN)
	}

	var resp ClusterResponse
	err := c.postForm(ctx, "/api/cluster", "cluster", formFile{"file", req.FileName, req.FileData}, fields, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: cluster")
	}
	return &resp, nil
}

func (c *httpClient) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	fields := map[string]string{}
	if req.TextColumn != "" {
		fields["text_column"] = req.TextColumn
	}
	if req.ClusterColumn != "" {
		fields["cluster_column"] = req.ClusterColumn
	}

	var resp EvaluateResponse
	err := c.postForm(ctx, "/api/evaluate", "evaluate", formFile{"file", req.FileName, req.FileData}, fields, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: evaluate")
	}
	return &resp, nil
}

func (c *httpClient) ExtractKeywords(ctx context.Context, req ExtractKeywordsRequest) (*ExtractKeywordsResponse, error) {
	fields := map[string]string{
		"api_key": req.APIKey,
	}
	if req.BaseURL != "" {
		fields["base_url"] = req.BaseURL
	}
	if req.TextColumn != "" {
		fields["text_col"] = req.TextColumn
	}

	var resp ExtractKeywordsResponse
	err := c.postForm(ctx, "/api/extract-keywords", "extract_keywords", formFile{"file", req.FileName, req.FileData}, fields, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: extract keywords")
	}
	return &resp, nil
}

func (c *httpClient) Download(ctx context.Context, filename string) ([]byte, error) {
	retryCfg := c.retryFor("download")

	data, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]byte, error) {
		if err := c.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/download/"+url.PathEscape(filename), nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response body")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, statusError(resp.StatusCode, body)
		}
		return body, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("analysis: download %s", filename))
	}
	return data, nil
}

func (c *httpClient) LoadState(ctx context.Context) (*StateResponse, error) {
	retryCfg := c.retryFor("load_state")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*StateResponse, error) {
		if err := c.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/load-state", nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}

		var out StateResponse
		if err := c.do(req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: load state")
	}
	return resp, nil
}

// formFile names the multipart file part of an upload request.
type formFile struct {
	field string
	name  string
	data  []byte
}

// postForm uploads a file plus form fields and decodes the JSON response.
// The encoded body is kept as bytes so each retry attempt sends a fresh copy.
func (c *httpClient) postForm(ctx context.Context, path, op string, file formFile, fields map[string]string, out any) error {
	body, contentType, err := encodeMultipart(file, fields)
	if err != nil {
		return eris.Wrap(err, "encode form")
	}

	retryCfg := c.retryFor(op)

	return resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", contentType)

		return c.do(req, out)
	})
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}

// statusError builds the APIError for a non-2xx response, wrapping it as
// transient when the status is worth retrying.
func statusError(statusCode int, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Body:       string(body),
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		apiErr.Detail = detail.Detail
	}

	if resilience.IsTransientHTTPStatus(statusCode) {
		return resilience.NewTransientError(apiErr, statusCode)
	}
	return apiErr
}

func (c *httpClient) retryFor(op string) resilience.RetryConfig {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("analysis", op)
	}
	return cfg
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func encodeMultipart(file formFile, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile(file.field, file.name)
	if err != nil {
		return nil, "", eris.Wrap(err, "create file part")
	}
	if _, err := fw.Write(file.data); err != nil {
		return nil, "", eris.Wrap(err, "write file part")
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", eris.Wrap(err, fmt.Sprintf("write field %s", k))
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", eris.Wrap(err, "finish form")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
