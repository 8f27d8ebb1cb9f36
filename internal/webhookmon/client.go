package webhookmon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Info is the delivery endpoint's view of the current registration.
type Info struct {
	URL                string `json:"url"`
	PendingUpdateCount int    `json:"pending_update_count"`
}

// RegistrationClient manages the remote webhook registration.
type RegistrationClient interface {
	GetWebhookInfo(ctx context.Context) (Info, error)
	SetWebhook(ctx context.Context, publicURL string) error
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient builds a registration client for the given Bot API base URL and
// credential token.
func NewClient(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetWebhookInfo fetches the current registration and backlog depth.
func (c *Client) GetWebhookInfo(ctx context.Context) (Info, error) {
	var info Info
	raw, err := c.call(ctx, "getWebhookInfo", nil)
	if err != nil {
		return Info{}, err
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, fmt.Errorf("getWebhookInfo decode: %w", err)
	}
	return info, nil
}

// SetWebhook registers the given public URL for update delivery.
func (c *Client) SetWebhook(ctx context.Context, publicURL string) error {
	_, err := c.call(ctx, "setWebhook", url.Values{"url": {publicURL}})
	return err
}

// DeleteWebhook removes the current registration, optionally discarding the
// pending backlog.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	drop := "false"
	if dropPending {
		drop = "true"
	}
	_, err := c.call(ctx, "deleteWebhook", url.Values{"drop_pending_updates": {drop}})
	return err
}

func (c *Client) call(ctx context.Context, method string, form url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var body io.Reader
	httpMethod := http.MethodGet
	if form != nil {
		httpMethod = http.MethodPost
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%s decode (status %s): %w", method, resp.Status, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s: api error: %s", method, parsed.Description)
	}
	return parsed.Result, nil
}
