package avatarsdk

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avatarlink/avatar-sdk-go/session"
)

// CreateSessionParams are the parameters for opening a session.
type CreateSessionParams struct {
	AvatarID string `json:"avatar_id"`
}

// ListSessionsResponse is the response for listing sessions.
type ListSessionsResponse struct {
	Object string          `json:"object"`
	Data   []*session.Info `json:"data"`
}

// EndSessionResponse is the response for ending a session.
type EndSessionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// CreateSession opens a new avatar session and returns the manager bound to
// it. The manager is registered with the client and swept out once it ends;
// call Connect on it to join the room.
func (c *Client) CreateSession(ctx context.Context, params CreateSessionParams) (*session.Manager, error) {
	var info session.Info
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", params, &info); err != nil {
		return nil, err
	}
	fillExpiry(&info)

	manager := session.NewManager(info, c.dial, c.log)
	c.registry.insert(manager)
	c.log.Info().
		Str("session_id", info.ID).
		Str("avatar_id", info.Avatar.ID).
		Msg("session created")
	return manager, nil
}

// GetSession returns the manager for an existing session. A manager already
// held by the client is returned as-is so callers share one per session;
// otherwise the session record is fetched and a fresh manager is registered.
func (c *Client) GetSession(ctx context.Context, id string) (*session.Manager, error) {
	if manager, ok := c.registry.get(id); ok {
		return manager, nil
	}

	var info session.Info
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &info); err != nil {
		return nil, err
	}
	fillExpiry(&info)

	manager := session.NewManager(info, c.dial, c.log)
	c.registry.insert(manager)
	return manager, nil
}

// ListSessions returns the session records known to the platform.
func (c *Client) ListSessions(ctx context.Context) ([]*session.Info, error) {
	var resp ListSessionsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// EndSession ends a session on the platform and tears down the local
// manager: disconnect, handler clear, registry removal.
func (c *Client) EndSession(ctx context.Context, id string) error {
	var resp EndSessionResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	c.registry.remove(id)
	c.log.Info().Str("session_id", id).Msg("session ended")
	return nil
}

// fillExpiry backfills Info.ExpiresAt from the room token's exp claim when
// the API response carries no explicit expiry. The token is parsed without
// verification: the client has no platform signing key and only needs the
// timestamp for cleanup.
func fillExpiry(info *session.Info) {
	if !info.ExpiresAt.IsZero() || info.Token == "" {
		return
	}
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(info.Token, &claims); err != nil {
		return
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
}

// expired reports whether a session record is past its expiry.
func expired(info session.Info, now time.Time) bool {
	return !info.ExpiresAt.IsZero() && now.After(info.ExpiresAt)
}
