package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

// Login failures. The same value is returned for an unknown identifier and
// a wrong password.
var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid_credentials", "incorrect email or password")
	ErrUnverified         = apperr.Validation("email_not_verified", "email not verified")
	ErrInvitationRequired = apperr.Unauthorized("invitation_required", "invitation required")
)

// CredentialVerifier checks a username/password pair against contacts.
type CredentialVerifier struct {
	contacts ContactStore
	phone    utils.PhoneRules
	secret   string
	mode     string
	cost     int
	log      *zap.Logger
}

func NewCredentialVerifier(contacts ContactStore, cfg config.Config, log *zap.Logger) *CredentialVerifier {
	return &CredentialVerifier{
		contacts: contacts,
		phone:    utils.PhoneRules{CountryCode: cfg.Phone.CountryCode, LocalLength: cfg.Phone.LocalLength},
		secret:   cfg.ServiceJWTSecret,
		mode:     cfg.FirstLoginMode,
		cost:     cfg.BcryptCost,
		log:      log,
	}
}

// Lookup resolves an email or phone identifier to exactly one contact.
// Several matches count as none.
func (v *CredentialVerifier) Lookup(ctx context.Context, identifier string) (model.Contact, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		found []model.Contact
		err   error
	)
	switch {
	case identifier == "":
		return model.Contact{}, ErrInvalidCredentials
	case strings.Contains(identifier, "@"):
		found, err = v.contacts.FindByEmail(ctx, identifier)
	default:
		cands := v.phone.Candidates(identifier)
		if len(cands) == 0 {
			return model.Contact{}, ErrInvalidCredentials
		}
		found, err = v.contacts.FindByPhones(ctx, cands)
	}
	if err != nil {
		return model.Contact{}, apperr.Internal(err)
	}
	if len(found) != 1 {
		return model.Contact{}, ErrInvalidCredentials
	}
	return found[0], nil
}

// Verify authenticates identifier/password. A contact without a stored
// credential sets one here: in invite mode only with a valid invitation
// token for that contact, in trust mode with any non-empty password.
// Legacy pbkdf2 and plaintext credentials are rehashed to bcrypt on a
// successful match.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, password, inviteToken string) (model.Contact, error) {
	if password == "" {
		return model.Contact{}, ErrInvalidCredentials
	}
	c, err := v.Lookup(ctx, identifier)
	if err != nil {
		return model.Contact{}, err
	}

	if !c.HasCredential() {
		if v.mode != config.FirstLoginTrust {
			if inviteToken == "" {
				return model.Contact{}, ErrInvitationRequired
			}
			id, err := utils.ParseInviteToken(v.secret, inviteToken)
			if err != nil || id != c.ID {
				return model.Contact{}, ErrInvitationRequired
			}
		}
		if err := v.store(ctx, &c, password); err != nil {
			return model.Contact{}, err
		}
		v.log.Info("first login credential set", zap.Uint64("contact_id", c.ID), zap.String("mode", v.mode))
		return c, nil
	}

	if !c.IsVerified {
		return model.Contact{}, ErrUnverified
	}
	ok, rehash := utils.CheckStored(c.Password, password)
	if !ok {
		return model.Contact{}, ErrInvalidCredentials
	}
	if rehash {
		scheme := utils.IdentifyScheme(c.Password)
		if err := v.store(ctx, &c, password); err != nil {
			// the login itself succeeded; the next one retries the upgrade
			v.log.Warn("credential rehash failed", zap.Uint64("contact_id", c.ID), zap.Error(err))
		} else {
			v.log.Info("legacy credential rehashed", zap.Uint64("contact_id", c.ID), zap.String("from", scheme))
		}
	}
	return c, nil
}

func (v *CredentialVerifier) store(ctx context.Context, c *model.Contact, password string) error {
	hash, err := utils.HashPassword(password, v.cost)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := v.contacts.SetPassword(ctx, c.ID, hash, true); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return ErrInvalidCredentials
		}
		return apperr.Internal(err)
	}
	c.Password = hash
	c.IsVerified = true
	return nil
}
