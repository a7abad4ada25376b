package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-portal/internal/model"
)

// Claims is the subset of the backend's token claims the portal reads. The
// signature is never checked here; the backend does that on every request.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   string   `json:"token_type,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// DecodeClaims reads the claims of a JWT without verifying it. Opaque
// (non-JWT) tokens return an error.
func DecodeClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return claims, nil
}

// Context is the injectable session context every component reads identity
// through, instead of touching storage directly.
type Context struct {
	store Store
	now   func() time.Time
}

// NewContext wraps store.
func NewContext(store Store) *Context {
	return &Context{store: store, now: time.Now}
}

// Current assembles the cached identity. A missing user yields
// Identity{Present: false} and no error.
func (c *Context) Current(ctx context.Context) (model.Identity, error) {
	var id model.Identity
	var err error

	get := func(key string) string {
		if err != nil {
			return ""
		}
		v, _, gerr := c.store.Get(ctx, key)
		if gerr != nil {
			err = gerr
		}
		return v
	}

	id.User = get(KeyUser)
	id.UserID = get(KeyUserID)
	id.UserType = model.UserType(get(KeyUserType))
	id.Roles = parseRoles(get(KeyUserRoles))
	id.Token = get(KeyAuthToken)
	id.RememberEmail = get(KeyRememberEmail)
	if err != nil {
		return model.Identity{}, fmt.Errorf("read identity: %w", err)
	}

	id.Present = id.User != "" && id.UserID != ""

	if id.Token != "" {
		if claims, cerr := DecodeClaims(id.Token); cerr == nil {
			id.Permissions = claims.Permissions
			if claims.ExpiresAt != nil {
				exp := claims.ExpiresAt.Time
				id.ExpiresAt = &exp
			}
			if len(id.Roles) == 0 {
				id.Roles = claims.Roles
			}
		}
	}

	return id, nil
}

// Token returns the cached bearer credential, or "".
func (c *Context) Token(ctx context.Context) (string, error) {
	v, _, err := c.store.Get(ctx, KeyAuthToken)
	return v, err
}

// Establish writes the flags of a freshly signed-in user.
func (c *Context) Establish(ctx context.Context, id model.Identity) error {
	roles, err := json.Marshal(id.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	if id.Roles == nil {
		roles = []byte("[]")
	}

	values := []struct{ key, value string }{
		{KeyUser, id.User},
		{KeyUserID, id.UserID},
		{KeyUserType, string(id.UserType)},
		{KeyUserRoles, string(roles)},
		{KeyAuthToken, id.Token},
	}
	for _, kv := range values {
		if err := c.store.Set(ctx, kv.key, kv.value); err != nil {
			return fmt.Errorf("write %s: %w", kv.key, err)
		}
	}
	return nil
}

// Clear removes every identity flag but keeps the remembered email.
func (c *Context) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, identityKeys...); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// SetRememberEmail stores the login form's email; "" forgets it.
func (c *Context) SetRememberEmail(ctx context.Context, email string) error {
	if email == "" {
		return c.store.Delete(ctx, KeyRememberEmail)
	}
	return c.store.Set(ctx, KeyRememberEmail, email)
}

// Now returns the context's clock reading.
func (c *Context) Now() time.Time {
	return c.now()
}

// parseRoles accepts a JSON array or a comma-separated list.
func parseRoles(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var roles []string
		if err := json.Unmarshal([]byte(raw), &roles); err == nil {
			return roles
		}
	}
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
