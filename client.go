package avatarsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avatarlink/avatar-sdk-go/internal/idgen"

	"github.com/avatarlink/avatar-sdk-go/transport"
	"github.com/avatarlink/avatar-sdk-go/transport/livekitrtc"
)

const (
	defaultBaseURL         = "https://api.avatarlink.io"
	defaultRequestTimeout  = 30 * time.Second
	defaultCleanupInterval = 15 * time.Second
)

// Client is the top-level SDK facade: a thin REST client for avatars,
// sessions and affiliate products, plus the registry that owns live session
// managers.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
	dial       transport.Dialer

	registry *sessionRegistry
	janitor  *janitor
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the platform API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient supplies a custom HTTP client (timeouts, proxies, ...).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger supplies the logger used by the client and every session
// manager it creates. The default logger is disabled.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTransportDialer overrides how session managers dial their real-time
// room. The default dials LiveKit.
func WithTransportDialer(dial transport.Dialer) Option {
	return func(c *Client) { c.dial = dial }
}

// WithCleanupInterval overrides how often the session registry sweeps out
// dead and expired managers.
func WithCleanupInterval(interval time.Duration) Option {
	return func(c *Client) { c.janitor.interval = interval }
}

// New creates a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		log:        zerolog.Nop(),
	}
	c.registry = newSessionRegistry(c.log)
	c.janitor = newJanitor(c.registry, defaultCleanupInterval, c.log)
	for _, opt := range opts {
		opt(c)
	}
	// Re-scope components that depend on option-supplied values. The client
	// id disambiguates log lines when an application runs several clients.
	clientID, err := idgen.GenerateSecureID("cli", 12)
	if err != nil {
		clientID = "cli_unknown"
	}
	c.log = c.log.With().
		Str("component", "avatar-client").
		Str("client_id", clientID).
		Logger()
	c.registry.log = c.log
	c.janitor.log = c.log
	if c.dial == nil {
		c.dial = livekitrtc.Dialer(c.log)
	}
	c.janitor.Start(context.Background())
	return c
}

// Close stops the registry janitor and disconnects every session manager the
// client still holds. Handlers registered on those managers are cleared.
func (c *Client) Close() {
	c.janitor.Stop()
	c.registry.closeAll()
}

// SessionStatuses returns the connection status of every registered session
// manager, keyed by session id.
func (c *Client) SessionStatuses() map[string]string {
	return c.registry.statuses()
}

// do executes one API request and decodes a 2xx JSON response into out (when
// out is non-nil). Non-2xx responses are translated into *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.doRaw(ctx, method, path, reqBody, contentType, out)
}

// doRaw is the transport-level request helper shared by JSON and multipart
// calls.
func (c *Client) doRaw(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Msg("api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, respBody, requestID)
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("request_id", requestID).
			Str("error_type", string(apiErr.Type)).
			Msg("api request failed")
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
