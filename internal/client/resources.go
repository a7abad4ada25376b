package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/model"
)

// Resource names an admin-managed collection.
type Resource string

const (
	ResourceUsers     Resource = "users"
	ResourceExams     Resource = "exams"
	ResourceMaterials Resource = "materials"
	ResourceBadges    Resource = "badges"
)

// Resources lists every admin-managed collection.
var Resources = []Resource{ResourceUsers, ResourceExams, ResourceMaterials, ResourceBadges}

// ParseResource validates a resource name from a URL.
func ParseResource(s string) (Resource, bool) {
	for _, r := range Resources {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// ReadPermission is the permission needed to list or view r.
func (r Resource) ReadPermission() model.Permission {
	return model.Permission(string(r) + ":read")
}

// WritePermission is the permission needed to create, update or delete r.
func (r Resource) WritePermission() model.Permission {
	return model.Permission(string(r) + ":write")
}

func (r Resource) path() string {
	return "/admin/" + string(r)
}

// cachedList GETs path and decodes the data into out, serving repeats from
// the cache when one is configured. Cache failures fall through to the
// backend.
func (c *Client) cachedList(ctx context.Context, resource, path string, q url.Values, out interface{}) error {
	key := config.CacheKey.ResourceListKey(resource, path+"?"+q.Encode())

	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("List cache read failed")
		} else if ok {
			if err := json.Unmarshal(b, out); err == nil {
				return nil
			}
		}
	}

	data, err := c.raw(ctx, request{method: http.MethodGet, path: path, query: q})
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("[]")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s list: %w", resource, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("List cache write failed")
		}
	}
	return nil
}

// invalidate drops every cached list of resource.
func (c *Client) invalidate(ctx context.Context, resource string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.DeletePrefix(ctx, config.CacheKey.ResourcePrefix(resource)); err != nil {
		c.log.Warn().Err(err).Str("resource", resource).Msg("List cache invalidation failed")
	}
}

// ListResource fetches every record of r into out (a pointer to a slice).
func (c *Client) ListResource(ctx context.Context, r Resource, out interface{}) error {
	if err := c.cachedList(ctx, "admin_"+string(r), r.path(), nil, out); err != nil {
		return fmt.Errorf("list %s: %w", r, err)
	}
	return nil
}

// GetResource fetches one record of r.
func (c *Client) GetResource(ctx context.Context, r Resource, id string, out interface{}) error {
	if err := c.do(ctx, request{method: http.MethodGet, path: r.path() + "/" + url.PathEscape(id)}, out); err != nil {
		return fmt.Errorf("get %s %s: %w", r, id, err)
	}
	return nil
}

// CreateResource posts a new record of r and drops r's cached lists.
func (c *Client) CreateResource(ctx context.Context, r Resource, body, out interface{}) error {
	if err := c.do(ctx, request{method: http.MethodPost, path: r.path(), body: body}, out); err != nil {
		return fmt.Errorf("create %s: %w", r, err)
	}
	c.invalidateResource(ctx, r)
	return nil
}

// UpdateResource replaces one record of r and drops r's cached lists.
func (c *Client) UpdateResource(ctx context.Context, r Resource, id string, body, out interface{}) error {
	if err := c.do(ctx, request{method: http.MethodPut, path: r.path() + "/" + url.PathEscape(id), body: body}, out); err != nil {
		return fmt.Errorf("update %s %s: %w", r, id, err)
	}
	c.invalidateResource(ctx, r)
	return nil
}

// DeleteResource removes one record of r and drops r's cached lists.
func (c *Client) DeleteResource(ctx context.Context, r Resource, id string) error {
	if err := c.do(ctx, request{method: http.MethodDelete, path: r.path() + "/" + url.PathEscape(id)}, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", r, id, err)
	}
	c.invalidateResource(ctx, r)
	return nil
}

func (c *Client) invalidateResource(ctx context.Context, r Resource) {
	c.invalidate(ctx, "admin_"+string(r))
	if r == ResourceExams {
		c.invalidate(ctx, "exams")
	}
}
