package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"trade_console/internal/modules/config"
	"trade_console/pkg/logger"
	"trade_console/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// APIError: не-2xx ответ сервера. Detail берётся из {"detail": ...} FastAPI.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("botapi: http %d: %s", e.Status, e.Detail)
}

// Client: REST-клиент торгового сервера. От live-канала не зависит.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	tracer  opentracing.Tracer
}

func NewClient(cfg *config.Config, tracer opentracing.Tracer) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Server.HTTPURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "botapi: bad base url %q", cfg.Server.HTTPURL)
	}
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}

	limit := rate.Inf
	if cfg.Server.RateLimit > 0 {
		limit = rate.Limit(cfg.Server.RateLimit)
	}
	burst := cfg.Server.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:    base,
		http:    &http.Client{Timeout: cfg.Server.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		tracer:  tracer,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "botapi: rate limit")
	}

	var body io.Reader
	if in != nil {
		payload, err := sonic.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "botapi: marshal %s %s", method, path)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return errors.Wrapf(err, "botapi: new request %s %s", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	span := tracing.StartHTTPSpan(ctx, c.tracer, req, "botapi "+method+" "+path)
	status := 0
	defer func() { tracing.FinishHTTPSpan(span, status, err) }()

	logger.Debug("[API] %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("[API] %s %s: %v", method, path, err)
		return errors.Wrapf(err, "botapi: %s %s", method, path)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "botapi: read %s %s", method, path)
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: detail(resp.StatusCode, data)}
		logger.Warn("[API] %s %s: %v", method, path, apiErr)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "botapi: decode %s %s", method, path)
	}
	return nil
}

// detail достаёт текст ошибки: строка detail, любой другой detail как JSON, иначе тело.
func detail(status int, body []byte) string {
	var wrap struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &wrap); err == nil && len(wrap.Detail) > 0 {
		var s string
		if err := sonic.Unmarshal(wrap.Detail, &s); err != nil {
			return string(wrap.Detail)
		}
		if s != "" {
			return s
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}
	return text
}
