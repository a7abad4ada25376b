// Package gate decides whether a page may render for the cached identity.
// It is a UX convenience: the backend enforces access on every request.
package gate

import (
	"strings"
	"time"

	"github.com/stemsi/exstem-portal/internal/model"
)

// Outcome is the gate's verdict.
type Outcome int

const (
	Render Outcome = iota
	RedirectLogin
	RedirectRoleHome
	RedirectUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectRoleHome:
		return "redirect_role_home"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Well-known locations.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// RoleHomes maps a user type to its landing page.
var RoleHomes = map[model.UserType]string{
	model.UserTypeStudent: "/student/dashboard",
	model.UserTypeAdmin:   "/admin/dashboard",
}

// Requirement describes what a page needs. Empty fields are not checked.
type Requirement struct {
	UserType   model.UserType
	Role       string
	Permission string
}

// Decision is an Outcome plus where to go when it is a redirect.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Gate evaluates requirements against an identity.
type Gate struct {
	checker *Checker
	now     func() time.Time
}

// New creates a Gate. A nil checker uses the default role table.
func New(checker *Checker) *Gate {
	if checker == nil {
		checker = NewChecker(nil)
	}
	return &Gate{checker: checker, now: time.Now}
}

// Evaluate applies the checks in fixed order: authentication, user type,
// role, permission.
func (g *Gate) Evaluate(id model.Identity, req Requirement) Decision {
	if !id.Present || id.Expired(g.now()) {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}

	if req.UserType != "" && id.UserType != req.UserType {
		return Decision{Outcome: RedirectRoleHome, Location: RoleHome(id.UserType)}
	}

	if req.Role != "" && !id.HasRole(req.Role) {
		return Decision{Outcome: RedirectUnauthorized, Location: UnauthorizedPath}
	}

	if req.Permission != "" && !g.allowed(id, req.Permission) {
		return Decision{Outcome: RedirectUnauthorized, Location: UnauthorizedPath}
	}

	return Decision{Outcome: Render}
}

// allowed checks token-embedded permissions first, then the role table.
func (g *Gate) allowed(id model.Identity, perm string) bool {
	for _, p := range id.Permissions {
		if matchPerm(p, perm) {
			return true
		}
	}
	return g.checker.Any(id.Roles, perm)
}

// RoleHome returns the landing page for a user type.
func RoleHome(t model.UserType) string {
	if home, ok := RoleHomes[t]; ok {
		return home
	}
	return "/"
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
