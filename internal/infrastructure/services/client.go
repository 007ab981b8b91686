package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

const _defaultCallTimeout = 2 * time.Second

// Client is the shared HTTP caller behind the three leaf-service clients.
// Every call carries its own deadline; exceeding it is reported as
// Unavailable, like any other transport failure.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	callTimeout time.Duration
}

func New(baseURL string, callTimeout time.Duration) *Client {
	if callTimeout <= 0 {
		callTimeout = _defaultCallTimeout
	}

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		callTimeout: callTimeout,
	}
}

// Структурированное тело ошибки нижестоящего сервиса.
type apiError struct {
	HTTPStatus int    `json:"httpStatus"`
	Message    string `json:"message"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("services Client - getJSON - http.NewRequestWithContext: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return errs.Wrap(err, errs.KindUnavailable, "leaf call cancelled")
		}

		return errs.Wrap(err, errs.KindUnavailable, "leaf service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(err, errs.KindUnavailable, "leaf service returned an undecodable body")
	}

	return nil
}

// 4xx - ошибка вызова (404 терминальный NotFound), 5xx - временная недоступность.
func classifyStatus(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.KindNotFound, msg)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return errs.New(errs.KindInvalidInput, msg)
	default:
		return errs.Newf(errs.KindUnavailable, "leaf service failed with status %d: %s", resp.StatusCode, msg)
	}
}
