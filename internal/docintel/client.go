// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docintel converts documents with Azure Document Intelligence.
// The analysis is asynchronous: the document is submitted to the model's
// analyze endpoint and the returned operation is polled until it settles.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/internal/engine"
	"github.com/pdiddy/mdconvert/internal/httputil"
	"github.com/pdiddy/mdconvert/pkg/types"
)

const (
	DefaultAPIVersion   = "2024-11-30"
	DefaultModel        = "prebuilt-layout"
	DefaultPollInterval = time.Second
	DefaultTimeout      = 5 * time.Minute

	keyHeader = "Ocp-Apim-Subscription-Key"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Client is an engine.Engine backed by the Document Intelligence REST API.
// The service endpoint comes from the docintel_endpoint parameter of each
// conversion.
type Client struct {
	cfg  types.DocIntelConfig
	http *http.Client
	log  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// NewClient returns a client for cfg, filling unset fields with defaults.
func NewClient(cfg types.DocIntelConfig, opts ...Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{cfg: cfg, http: http.DefaultClient, log: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string {
	return "document-intelligence (" + c.cfg.Model + ")"
}

// Convert submits the document and waits for the Markdown result.
func (c *Client) Convert(ctx context.Context, in engine.Input, p engine.Params) (*engine.Result, error) {
	endpoint, ok := p.Get(engine.ParamDocIntelEndpoint)
	if !ok || strings.TrimSpace(endpoint) == "" {
		return nil, types.NewError(types.KindInput, "a Document Intelligence endpoint is required", nil)
	}

	data, err := in.ReadAll()
	if err != nil {
		return nil, types.NewError(types.KindInput, err.Error(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	analyzeURL, err := c.analyzeURL(endpoint)
	if err != nil {
		return nil, types.NewError(types.KindInput, fmt.Sprintf("invalid Document Intelligence endpoint %q", endpoint), err)
	}

	opURL, err := c.submit(ctx, analyzeURL, data)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("operation", opURL).Msg("analysis submitted")

	res, err := c.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}
	return &engine.Result{
		Markdown: res.Content,
		Title:    res.title(),
		Engine:   c.Name(),
	}, nil
}

func (c *Client) analyzeURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(endpoint), "/"))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("endpoint must be an http(s) URL")
	}
	u.Path += "/documentintelligence/documentModels/" + url.PathEscape(c.cfg.Model) + ":analyze"
	q := url.Values{}
	q.Set("api-version", c.cfg.APIVersion)
	q.Set("outputContentFormat", "markdown")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// submit posts the document and returns the operation URL to poll.
func (c *Client) submit(ctx context.Context, analyzeURL string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(data))
	if err != nil {
		return "", types.NewError(types.KindInput, "building analyze request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries, c.log)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", responseError(resp)
	}
	op := resp.Header.Get("Operation-Location")
	if op == "" {
		return "", types.NewError(types.KindNetwork, "Document Intelligence returned no operation location", nil)
	}
	return op, nil
}

// poll queries the operation until it succeeds, fails, or ctx ends.
func (c *Client) poll(ctx context.Context, opURL string) (*analyzeResult, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, transportError(ctx, ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, types.NewError(types.KindNetwork, "invalid operation location", err)
		}
		c.authorize(req)

		resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries, c.log)
		if err != nil {
			return nil, transportError(ctx, err)
		}
		if resp.StatusCode != http.StatusOK {
			err := responseError(resp)
			resp.Body.Close()
			return nil, err
		}

		var op operation
		err = json.NewDecoder(resp.Body).Decode(&op)
		resp.Body.Close()
		if err != nil {
			return nil, types.NewError(types.KindNetwork, "decoding analysis status", err)
		}

		c.log.Debug().Str("status", op.Status).Msg("analysis status")
		switch op.Status {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return &analyzeResult{}, nil
			}
			return op.AnalyzeResult, nil
		case "failed", "canceled":
			msg := "document analysis failed"
			if op.Error != nil {
				msg = op.Error.describe()
			}
			return nil, types.NewError(types.KindCorruptInput, msg, nil)
		}
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set(keyHeader, c.cfg.APIKey)
	}
}

// transportError classifies a failure that produced no HTTP response.
// Caller cancellation is passed through unclassified.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("document analysis interrupted: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewError(types.KindNetwork, "Document Intelligence did not finish in time", err)
	}
	return types.NewError(types.KindNetwork, "cannot reach Document Intelligence: "+err.Error(), err)
}

// responseError maps an unexpected HTTP status to an error kind.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env struct {
		Error *serviceError `json:"error"`
	}
	_ = json.Unmarshal(body, &env)

	msg := fmt.Sprintf("Document Intelligence returned %s", resp.Status)
	if env.Error != nil {
		msg += ": " + env.Error.describe()
	}

	code := ""
	if env.Error != nil {
		code = env.Error.code()
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return types.NewError(types.KindNetwork, "authentication failed: "+msg, nil)
	case resp.StatusCode == http.StatusUnsupportedMediaType, strings.Contains(code, "Unsupported"):
		return types.NewError(types.KindUnsupportedFormat, msg, nil)
	case strings.Contains(code, "InvalidContent"), strings.Contains(code, "Corrupt"):
		return types.NewError(types.KindCorruptInput, msg, nil)
	case resp.StatusCode >= 500, httputil.Retryable(resp.StatusCode), resp.StatusCode == http.StatusNotFound:
		return types.NewError(types.KindNetwork, msg, nil)
	default:
		return types.NewError(types.KindUnknown, msg, nil)
	}
}

type operation struct {
	Status        string         `json:"status"`
	Error         *serviceError  `json:"error,omitempty"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
}

type serviceError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	InnerError *serviceError `json:"innererror,omitempty"`
}

// code returns the most specific error code.
func (e *serviceError) code() string {
	if e.InnerError != nil && e.InnerError.Code != "" {
		return e.InnerError.code()
	}
	return e.Code
}

func (e *serviceError) describe() string {
	msg := e.Message
	if e.InnerError != nil && e.InnerError.Message != "" {
		msg = e.InnerError.Message
	}
	if msg == "" {
		return e.code()
	}
	return e.code() + ": " + msg
}

type analyzeResult struct {
	Content    string      `json:"content"`
	Paragraphs []paragraph `json:"paragraphs,omitempty"`
}

type paragraph struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

func (r *analyzeResult) title() string {
	for _, p := range r.Paragraphs {
		if p.Role == "title" {
			return strings.TrimSpace(p.Content)
		}
	}
	return ""
}
