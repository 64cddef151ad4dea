package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/middleware"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/service"
)

// AuthHandler serves login, token refresh/revocation and the profile of
// the authenticated contact.
type AuthHandler struct {
	Verifier *service.CredentialVerifier
	Tokens   *service.TokenStore
	Partners *service.PartnerService
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewAuthHandler(v *service.CredentialVerifier, t *service.TokenStore, p *service.PartnerService, timeout time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Verifier: v, Tokens: t, Partners: p, Timeout: timeout, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Username    string `json:"username" form:"username"`
	Password    string `json:"password" form:"password"`
	InviteToken string `json:"invite_token" form:"invite_token"`
}

type refreshReq struct {
	RefreshToken   string `json:"refresh_token" form:"refresh_token"`
	AccessLifetime any    `json:"access_lifetime"`
}

type tokenResp struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

type loginResp struct {
	UID        uint64      `json:"uid"`
	UserInfo   contactView `json:"user_info"`
	IsVerified bool        `json:"is_verified"`
	tokenResp
}

func newTokenResp(p service.Pair) tokenResp {
	return tokenResp{
		AccessToken:      p.AccessToken,
		ExpiresIn:        p.ExpiresIn,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresIn: p.RefreshExpiresIn,
	}
}

// Login verifies username (email or phone) and password and issues a new
// token pair. Credentials may come in the body or the query string.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	username := orQuery(c, req.Username, "username")
	password := req.Password
	if password == "" {
		password = orQuery(c, "", "password")
	}
	if username == "" || password == "" {
		return apperr.Validation("missing_credentials", "username and password are required")
	}

	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Verifier.Verify(ctx, username, password, orQuery(c, req.InviteToken, "invite_token"))
	if err != nil {
		return err
	}
	pair, err := h.Tokens.Issue(ctx, contact.ID)
	if err != nil {
		return err
	}
	h.Log.Info("login", zap.Uint64("contact_id", contact.ID))
	return c.JSON(http.StatusOK, loginResp{
		UID:        contact.ID,
		UserInfo:   h.userInfo(c, contact),
		IsVerified: contact.IsVerified,
		tokenResp:  newTokenResp(pair),
	})
}

// RefreshToken rotates a refresh token. access_lifetime (seconds)
// overrides the access token lifetime for this pair.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	raw := orQuery(c, req.RefreshToken, "refresh_token")
	if raw == "" {
		return service.ErrNoRefreshToken
	}
	lifetime := seconds(req.AccessLifetime)
	if lifetime == 0 {
		lifetime = seconds(orQuery(c, "", "access_lifetime"))
	}

	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	pair, err := h.Tokens.Refresh(ctx, raw, lifetime)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTokenResp(pair))
}

// DeleteTokens revokes the refresh token's family and its access tokens.
func (h *AuthHandler) DeleteTokens(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	raw := orQuery(c, req.RefreshToken, "refresh_token")
	if raw == "" {
		return service.ErrNoRefreshToken
	}

	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if err := h.Tokens.Revoke(ctx, raw); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// Me returns the profile of the bearer of the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	contact, err := h.Partners.Get(ctx, middleware.ContactID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.userInfo(c, contact))
}

func (h *AuthHandler) userInfo(c echo.Context, contact model.Contact) contactView {
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()
	return profileView(ctx, h.Partners, h.Log, contact)
}

// seconds reads a lifetime given as a JSON number or a numeric string.
func seconds(v any) time.Duration {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case string:
		n, _ = strconv.ParseFloat(t, 64)
	}
	if n <= 0 {
		return 0
	}
	return time.Duration(n * float64(time.Second))
}
