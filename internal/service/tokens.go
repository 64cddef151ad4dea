package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

// Fallback lifetimes when neither the environment nor the
// rest_api.*_token_expires_in parameters set one.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken   = apperr.Unauthorized("invalid_token", "invalid token")
	ErrNoRefreshToken = apperr.Validation("no_refresh_token", "no refresh token was provided in request")
)

// Pair is a freshly issued access/refresh token pair. Raw values are only
// ever seen here; the store keeps hashes.
type Pair struct {
	ContactID        uint64
	AccessToken      string
	ExpiresIn        int // seconds
	RefreshToken     string
	RefreshExpiresIn int // seconds
}

// TokenStore issues and validates opaque bearer tokens. Refresh tokens are
// single use: each refresh rotates the refresh token within its family,
// and presenting a rotated token again revokes the whole family.
type TokenStore struct {
	repo       TokenRepository
	settings   SettingsStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewTokenStore(repo TokenRepository, settings SettingsStore, cfg config.Config, log *zap.Logger) *TokenStore {
	return &TokenStore{
		repo:       repo,
		settings:   settings,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// lifetime resolves one token type's lifetime: environment, then the
// rest_api.<kind>_token_expires_in parameter (seconds), then def.
func (s *TokenStore) lifetime(ctx context.Context, env time.Duration, kind string, def time.Duration) time.Duration {
	if env > 0 {
		return env
	}
	if s.settings != nil {
		raw, err := s.settings.Param(ctx, "rest_api."+kind+"_token_expires_in")
		if err == nil {
			if secs, perr := strconv.ParseFloat(raw, 64); perr == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	return def
}

// Issue starts a new token family for contactID.
func (s *TokenStore) Issue(ctx context.Context, contactID uint64) (Pair, error) {
	refresh, access, pair, err := s.newPair(ctx, contactID, uuid.NewString(), 0)
	if err != nil {
		return Pair{}, err
	}
	if err := s.repo.CreatePair(ctx, &refresh, &access); err != nil {
		return Pair{}, apperr.Internal(err)
	}
	return pair, nil
}

// Fetch returns the contact an unexpired access token belongs to.
func (s *TokenStore) Fetch(ctx context.Context, accessToken string) (uint64, error) {
	if accessToken == "" {
		return 0, ErrInvalidToken
	}
	t, err := s.repo.FindAccess(ctx, utils.HashToken(accessToken))
	if errors.Is(err, repository.ErrTokenNotFound) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if t.Expired(s.now()) {
		return 0, ErrInvalidToken
	}
	return t.ContactID, nil
}

// Refresh exchanges an active refresh token for a new pair. accessLifetime
// overrides the configured access lifetime when positive.
func (s *TokenStore) Refresh(ctx context.Context, refreshToken string, accessLifetime time.Duration) (Pair, error) {
	if refreshToken == "" {
		return Pair{}, ErrNoRefreshToken
	}
	old, err := s.repo.FindRefresh(ctx, utils.HashToken(refreshToken))
	if errors.Is(err, repository.ErrTokenNotFound) {
		return Pair{}, ErrInvalidToken
	}
	if err != nil {
		return Pair{}, apperr.Internal(err)
	}

	switch {
	case old.State == model.RefreshRotated:
		s.log.Warn("refresh token reuse; revoking family",
			zap.Uint64("contact_id", old.ContactID), zap.String("family_id", old.FamilyID))
		if err := s.repo.RevokeFamily(ctx, old.FamilyID); err != nil {
			return Pair{}, apperr.Internal(err)
		}
		return Pair{}, ErrInvalidToken
	case old.State != model.RefreshActive, old.Expired(s.now()):
		return Pair{}, ErrInvalidToken
	}

	refresh, access, pair, err := s.newPair(ctx, old.ContactID, old.FamilyID, accessLifetime)
	if err != nil {
		return Pair{}, err
	}
	if err := s.repo.Rotate(ctx, old.ID, &refresh, &access); err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) {
			// lost a race with a concurrent refresh of the same token
			return Pair{}, ErrInvalidToken
		}
		return Pair{}, apperr.Internal(err)
	}
	return pair, nil
}

// Revoke tears down the family of refreshToken. Unknown tokens are ignored.
func (s *TokenStore) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrNoRefreshToken
	}
	t, err := s.repo.FindRefresh(ctx, utils.HashToken(refreshToken))
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.repo.RevokeFamily(ctx, t.FamilyID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *TokenStore) newPair(ctx context.Context, contactID uint64, family string, accessOverride time.Duration) (model.RefreshToken, model.AccessToken, Pair, error) {
	accessTTL := accessOverride
	if accessTTL <= 0 {
		accessTTL = s.lifetime(ctx, s.accessTTL, "access", DefaultAccessTTL)
	}
	refreshTTL := s.lifetime(ctx, s.refreshTTL, "refresh", DefaultRefreshTTL)
	if refreshTTL < accessTTL {
		refreshTTL = accessTTL
	}

	rawAccess, err := utils.NewOpaqueToken()
	if err != nil {
		return model.RefreshToken{}, model.AccessToken{}, Pair{}, apperr.Internal(err)
	}
	rawRefresh, err := utils.NewOpaqueToken()
	if err != nil {
		return model.RefreshToken{}, model.AccessToken{}, Pair{}, apperr.Internal(err)
	}
	now := s.now()
	refresh := model.RefreshToken{
		ContactID: contactID,
		TokenHash: utils.HashToken(rawRefresh),
		FamilyID:  family,
		State:     model.RefreshActive,
		ExpiresAt: now.Add(refreshTTL),
	}
	access := model.AccessToken{
		ContactID: contactID,
		TokenHash: utils.HashToken(rawAccess),
		ExpiresAt: now.Add(accessTTL),
	}
	pair := Pair{
		ContactID:        contactID,
		AccessToken:      rawAccess,
		ExpiresIn:        int(accessTTL / time.Second),
		RefreshToken:     rawRefresh,
		RefreshExpiresIn: int(refreshTTL / time.Second),
	}
	return refresh, access, pair, nil
}
