package telegram

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"golang.org/x/net/publicsuffix"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
)

// DefaultAPIBaseURL is the hosted Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

const (
	// pollTimeout is the long-poll window passed to getUpdates.
	pollTimeout = 25 * time.Second

	// pollRetryDelay spaces out retries after a failed poll.
	pollRetryDelay = 3 * time.Second
)

// Client talks to the Bot API on behalf of one bot.
type Client struct {
	baseURL string
	token   string
	client  *req.Client
}

// New creates a client for the given bot token. An empty baseURL
// selects the hosted Bot API; tests and self-hosted servers pass
// their own.
func New(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, errors.ErrMissingToken
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  createOptimizedClient(),
	}, nil
}

// createOptimizedClient creates an HTTP client with connection pooling
// tuned for steady polling.
func createOptimizedClient() *req.Client {
	client := req.C().
		SetUserAgent("opsrelay").
		SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetTimeout(30 * time.Second). // Must stay above the long-poll window
		EnableKeepAlives()

	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.SetCookieJar(jar)
	}

	transport := client.GetTransport()
	if transport != nil {
		transport.SetMaxIdleConns(10).
			SetIdleConnTimeout(90 * time.Second).
			SetMaxConnsPerHost(4)
	}

	return client
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// call posts one Bot API method. Only the method name is logged since
// the request URL embeds the bot token.
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("telegram client is not initialized")
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	log.DebugH3("Calling Bot API method %s", method)

	r := c.client.R().SetContext(ctx)
	if payload != nil {
		r.SetBodyJsonMarshal(payload)
	}
	resp, err := r.Post(url)
	if err != nil {
		// Transport errors echo the request URL, token included.
		return fmt.Errorf("telegram %s: %s", method, c.scrub(err.Error()))
	}

	var envelope apiResponse
	if err := json.Unmarshal(resp.Bytes(), &envelope); err != nil {
		return fmt.Errorf("telegram %s: decoding response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram %s: decoding result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) scrub(s string) string {
	return strings.ReplaceAll(s, c.token, "<token>")
}

// GetMe fetches the bot's own account. The username is needed to strip
// @mentions from group chat commands.
func (c *Client) GetMe() (*User, error) {
	var me User
	if err := c.call(context.Background(), "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// SendMessage delivers one text message to a chat. With markdown set
// the text is rendered as Markdown, used for code-block replies.
func (c *Client) SendMessage(chatID int64, text string, markdown bool) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markdown {
		payload["parse_mode"] = "Markdown"
	}
	return c.call(context.Background(), "sendMessage", payload, nil)
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(offset int64, timeout time.Duration) ([]Update, error) {
	return c.getUpdates(context.Background(), offset, timeout)
}

func (c *Client) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Poll long-polls for updates until ctx is cancelled and delivers them
// on the returned channel. Cancelling ctx aborts an in-flight long
// poll, so shutdown never waits out the poll window. Failed polls are
// logged and retried; the channel is closed once polling stops.
func (c *Client) Poll(ctx context.Context) <-chan Update {
	updates := make(chan Update)
	go func() {
		defer close(updates)
		var offset int64
		for {
			if ctx.Err() != nil {
				return
			}
			batch, err := c.getUpdates(ctx, offset, pollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("Polling for updates: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollRetryDelay):
				}
				continue
			}
			for _, u := range batch {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				select {
				case <-ctx.Done():
					return
				case updates <- u:
				}
			}
		}
	}()
	return updates
}
