package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/cache"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/listing"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stretchr/testify/require"
)

// restBackend serves the admin and auth routes from memory and counts hits.
type restBackend struct {
	mu        sync.Mutex
	badges    []model.Badge
	listCalls int
	created   []map[string]interface{}
}

func (b *restBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/admin/badges":
		b.listCalls++
		reply(w, http.StatusOK, map[string]interface{}{"data": b.badges, "metadata": map[string]string{}})
	case r.Method == http.MethodPost && r.URL.Path == "/admin/badges":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.created = append(b.created, body)
		badge := model.Badge{ID: "b-new", Name: body["name"].(string)}
		b.badges = append(b.badges, badge)
		reply(w, http.StatusCreated, map[string]interface{}{"data": badge, "metadata": map[string]string{}})
	case r.Method == http.MethodGet && r.URL.Path == "/exams":
		code := r.URL.Query().Get("code")
		var out []model.ExamSummary
		for _, e := range []model.ExamSummary{
			{Code: "PHY1", Name: "Physics Mock", DurationMinutes: 60},
			{Code: "PHY10", Name: "Physics Final", DurationMinutes: 90},
		} {
			if strings.HasPrefix(strings.ToLower(e.Code), strings.ToLower(code)) {
				out = append(out, e)
			}
		}
		reply(w, http.StatusOK, out)
	case r.Method == http.MethodGet && r.URL.Path == "/admin/badges/missing":
		reply(w, http.StatusNotFound, map[string]string{"message": "badge not found"})
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "ghost@example.com" {
			reply(w, http.StatusNotFound, map[string]string{"message": "no such user"})
			return
		}
		if body["password"] != "correct horse" {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "wrong password"})
			return
		}
		reply(w, http.StatusOK, map[string]interface{}{
			"token": "opaque",
			"user":  map[string]interface{}{"id": "a-1", "email": body["email"], "userType": "admin", "roles": []string{"editor"}},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/auth/logout":
		w.WriteHeader(http.StatusUnauthorized)
	default:
		reply(w, http.StatusNotFound, map[string]string{"message": "no route"})
	}
}

func (b *restBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newRESTClient(t *testing.T, backend *restBackend) (*client.Client, *identity.Context) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	idc := identity.NewContext(identity.NewMemoryStore())
	c := client.New(client.Config{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Cache:      cache.NewMemory(),
		CacheTTL:   time.Minute,
	}, idc, zerolog.Nop())
	return c, idc
}

func TestCatalogListPagesLocallyAndCaches(t *testing.T) {
	backend := &restBackend{badges: []model.Badge{
		{ID: "1", Name: "Early Bird", Points: 10},
		{ID: "2", Name: "Night Owl", Points: 30},
		{ID: "3", Name: "Streak", Points: 20},
	}}
	c, _ := newRESTClient(t, backend)
	svc := NewCatalogService(c)
	ctx := context.Background()

	q := listing.Query{Page: 1, PerPage: 2, SortBy: "points", Desc: true}
	items, p, err := svc.List(ctx, client.ResourceBadges, q)
	require.NoError(t, err)
	page := items.([]model.Badge)
	require.Len(t, page, 2)
	require.Equal(t, "Night Owl", page[0].Name)
	require.Equal(t, "Streak", page[1].Name)
	require.Equal(t, 3, p.TotalItems)
	require.Equal(t, 2, p.TotalPages)

	q.Search = "owl"
	items, p, err = svc.List(ctx, client.ResourceBadges, q)
	require.NoError(t, err)
	require.Len(t, items.([]model.Badge), 1)
	require.Equal(t, 1, p.TotalItems)
	require.Equal(t, 1, backend.calls(), "second list is served from the cache")
}

func TestCatalogCreateValidatesAndRefetches(t *testing.T) {
	backend := &restBackend{}
	c, _ := newRESTClient(t, backend)
	svc := NewCatalogService(c)
	ctx := context.Background()

	_, _, err := svc.List(ctx, client.ResourceBadges, listing.Query{Page: 1, PerPage: 10})
	require.NoError(t, err)

	_, err = svc.Create(ctx, client.ResourceBadges, []byte(`{"name":"x","points":-1}`))
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Contains(t, valErr.Fields, "name")
	require.Contains(t, valErr.Fields, "points")

	_, err = svc.Create(ctx, client.ResourceBadges, []byte(`{not json`))
	require.ErrorAs(t, err, &valErr)

	created, err := svc.Create(ctx, client.ResourceBadges, []byte(`{"name":"Perfect Score","points":50}`))
	require.NoError(t, err)
	require.Equal(t, "b-new", created.(*model.Badge).ID)
	require.Len(t, backend.created, 1)

	items, _, err := svc.List(ctx, client.ResourceBadges, listing.Query{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, items.([]model.Badge), 1)
	require.Equal(t, 2, backend.calls(), "mutation drops the cached list")
}

func TestCatalogErrors(t *testing.T) {
	c, _ := newRESTClient(t, &restBackend{})
	svc := NewCatalogService(c)

	_, err := svc.Get(context.Background(), client.ResourceBadges, "missing")
	status, code, msg := Describe(err)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", string(code))
	require.Equal(t, "badge not found", msg)

	_, err = svc.Get(context.Background(), client.Resource("payments"), "1")
	require.Error(t, err)
}

func TestAuthLoginCachesIdentity(t *testing.T) {
	c, idc := newRESTClient(t, &restBackend{})
	svc := NewAuthService(c, idc, zerolog.Nop())
	ctx := context.Background()

	id, err := svc.Login(ctx, model.LoginRequest{Email: "ops@example.com", Password: "correct horse", Remember: true})
	require.NoError(t, err)
	require.True(t, id.Present)
	require.Equal(t, "ops@example.com", id.User, "email stands in for a missing name")
	require.Equal(t, "a-1", id.UserID)
	require.Equal(t, model.UserTypeAdmin, id.UserType)
	require.Equal(t, []string{"editor"}, id.Roles)
	require.Equal(t, "ops@example.com", id.RememberEmail)

	require.NoError(t, svc.Logout(ctx), "an expired backend session does not block logout")
	id, err = svc.Me(ctx)
	require.NoError(t, err)
	require.False(t, id.Present)
	require.Equal(t, "ops@example.com", id.RememberEmail)
}

func TestAuthLoginFailures(t *testing.T) {
	c, idc := newRESTClient(t, &restBackend{})
	svc := NewAuthService(c, idc, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Login(ctx, model.LoginRequest{Email: "not-an-email", Password: "pw"})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Contains(t, valErr.Fields, "email")

	_, err = svc.Login(ctx, model.LoginRequest{Email: "ghost@example.com", Password: "correct horse"})
	require.ErrorIs(t, err, client.ErrUserNotFound)

	_, err = svc.Login(ctx, model.LoginRequest{Email: "ops@example.com", Password: "wrong pass"})
	status, code, _ := Describe(err)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_CREDENTIALS", string(code))

	id, err := svc.Me(ctx)
	require.NoError(t, err)
	require.False(t, id.Present)
}

func TestLookupExamMatchesCodeExactly(t *testing.T) {
	c, _ := newRESTClient(t, &restBackend{})
	svc := NewCatalogService(c)
	ctx := context.Background()

	exam, err := svc.LookupExam(ctx, " phy1 ")
	require.NoError(t, err)
	require.Equal(t, "PHY1", exam.Code)
	require.Equal(t, 60, exam.DurationMinutes)

	exam, err = svc.LookupExam(ctx, "PHY10")
	require.NoError(t, err)
	require.Equal(t, "Physics Final", exam.Name)

	_, err = svc.LookupExam(ctx, "CHE1")
	require.ErrorIs(t, err, ErrExamNotListed)
	status, code, _ := Describe(err)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", string(code))
}
