package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/gate"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
)

const (
	// ContextKeyIdentity is the Gin context key for the cached identity.
	ContextKeyIdentity = "identity"
)

// Gatekeeper runs the page gate in front of route groups.
type Gatekeeper struct {
	gate     *gate.Gate
	identity *identity.Context
	log      zerolog.Logger
}

// NewGatekeeper creates a new Gatekeeper.
func NewGatekeeper(g *gate.Gate, idc *identity.Context, log zerolog.Logger) *Gatekeeper {
	return &Gatekeeper{
		gate:     g,
		identity: idc,
		log:      log.With().Str("component", "gate").Logger(),
	}
}

// Require lets the request through only when the gate renders for the
// cached identity. Redirect outcomes carry the target location.
func (k *Gatekeeper) Require(req gate.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		k.enforce(c, req)
	}
}

// RequireStudent gates student pages.
func (k *Gatekeeper) RequireStudent() gin.HandlerFunc {
	return k.Require(gate.Requirement{UserType: model.UserTypeStudent})
}

// RequireAdmin gates admin pages.
func (k *Gatekeeper) RequireAdmin() gin.HandlerFunc {
	return k.Require(gate.Requirement{UserType: model.UserTypeAdmin})
}

// RequireResourcePermission checks the :resource path param against the
// identity's permissions. Reads need the read grant, everything else the
// write grant.
func (k *Gatekeeper) RequireResourcePermission() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := client.ParseResource(c.Param("resource"))
		if !ok {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}

		perm := r.WritePermission()
		if c.Request.Method == http.MethodGet {
			perm = r.ReadPermission()
		}
		k.enforce(c, gate.Requirement{UserType: model.UserTypeAdmin, Permission: string(perm)})
	}
}

// GetIdentity extracts the identity stored by the gate middleware.
func GetIdentity(c *gin.Context) model.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return model.Identity{}
	}
	id, _ := val.(model.Identity)
	return id
}

func (k *Gatekeeper) enforce(c *gin.Context, req gate.Requirement) {
	id, err := k.identity.Current(c.Request.Context())
	if err != nil {
		k.log.Error().Err(err).Msg("Failed to read cached identity")
		response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	d := k.gate.Evaluate(id, req)
	switch d.Outcome {
	case gate.Render:
		c.Set(ContextKeyIdentity, id)
		c.Next()
	case gate.RedirectLogin:
		code := response.ErrTokenRequired
		if id.Present {
			code = response.ErrSessionExpired
		}
		response.AbortRedirect(c, http.StatusUnauthorized, code, d.Location)
	case gate.RedirectRoleHome:
		code := response.ErrForbidden
		switch req.UserType {
		case model.UserTypeStudent:
			code = response.ErrStudentAccessOnly
		case model.UserTypeAdmin:
			code = response.ErrAdminAccessOnly
		}
		response.AbortRedirect(c, http.StatusForbidden, code, d.Location)
	default:
		code := response.ErrForbidden
		if req.Permission != "" {
			code = response.ErrPermissionDenied
		}
		response.AbortRedirect(c, http.StatusForbidden, code, d.Location)
	}
}
