package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Client calls the Bot API.
type Client struct {
	apiURL         string
	token          string
	httpClient     *http.Client
	logger         *slog.Logger
	limiter        *rate.Limiter // sendMessage only
	requestTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a Bot API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiURL: DefaultAPIURL,
		token:  token,
		// Per-request deadlines come from contexts; long polls outlive any
		// fixed client timeout.
		httpClient:     &http.Client{},
		logger:         slog.Default(),
		limiter:        rate.NewLimiter(rate.Limit(25), 1),
		requestTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithAPIURL overrides the Bot API base URL.
func WithAPIURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSendRate caps sendMessage calls per second. Non-positive disables the cap.
func WithSendRate(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRequestTimeout bounds non-polling calls.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// SendMessage sends Markdown text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req := sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	}
	return c.call(ctx, "sendMessage", req, nil)
}

// Send implements alert.Dispatcher.
func (c *Client) Send(ctx context.Context, recipient int64, text string) error {
	return c.SendMessage(ctx, recipient, text)
}

// GetUpdates long-polls for updates with ID >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+c.requestTimeout)
	defer cancel()

	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// call POSTs a JSON body to a Bot API method and decodes the result.
func (c *Client) call(ctx context.Context, method string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	endpoint := c.apiURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, redact(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var env response
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return apiErr
	}

	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}

	return nil
}

// redact strips the request URL (which embeds the token) from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
