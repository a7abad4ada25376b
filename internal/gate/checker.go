package gate

import "github.com/stemsi/exstem-portal/internal/model"

// Checker resolves role -> permission grants.
type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = model.RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	perms, ok := c.RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

// Any reports whether any of roles grants perm.
func (c *Checker) Any(roles []string, perm string) bool {
	for _, r := range roles {
		if c.Has(r, perm) {
			return true
		}
	}
	return false
}
