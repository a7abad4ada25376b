package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/validator"
)

// AuthService runs the login, logout and registration flows. It is the only
// writer of the cached identity besides the client's 401 handling.
type AuthService struct {
	client   *client.Client
	identity *identity.Context
	log      zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(c *client.Client, idc *identity.Context, log zerolog.Logger) *AuthService {
	return &AuthService{
		client:   c,
		identity: idc,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// Login authenticates and caches the resulting identity.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.Identity, error) {
	if fields := validator.Struct(&req); fields != nil {
		return model.Identity{}, &ValidationError{Fields: fields}
	}

	res, err := s.client.Login(ctx, req)
	if err != nil {
		return model.Identity{}, err
	}

	id := model.Identity{
		User:     res.User.Name,
		UserID:   res.User.ID,
		UserType: res.User.UserType,
		Roles:    res.User.Roles,
		Token:    res.Token,
	}
	if id.User == "" {
		id.User = res.User.Email
	}
	if claims, err := identity.DecodeClaims(res.Token); err == nil {
		if id.UserID == "" {
			id.UserID = claims.Subject
		}
		if id.UserType == "" {
			id.UserType = model.UserType(claims.TokenType)
		}
	}

	if err := s.identity.Establish(ctx, id); err != nil {
		return model.Identity{}, fmt.Errorf("cache identity: %w", err)
	}

	remember := ""
	if req.Remember {
		remember = req.Email
	}
	if err := s.identity.SetRememberEmail(ctx, remember); err != nil {
		s.log.Warn().Err(err).Msg("Could not store remembered email")
	}

	s.log.Info().Str("user_id", id.UserID).Str("user_type", string(id.UserType)).Msg("Signed in")
	return s.identity.Current(ctx)
}

// Logout revokes the token on the backend when possible and always clears
// the cached identity.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Backend logout failed, clearing local identity anyway")
	}
	if err := s.identity.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Register validates the form and creates the account.
func (s *AuthService) Register(ctx context.Context, form model.RegistrationForm) (*model.User, error) {
	if fields := validator.Struct(&form); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	return s.client.Register(ctx, form)
}

// Me returns the cached identity.
func (s *AuthService) Me(ctx context.Context) (model.Identity, error) {
	return s.identity.Current(ctx)
}
