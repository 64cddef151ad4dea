package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/testutil"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

func newVerifier(t *testing.T, cfg config.Config, contacts ...model.Contact) (*CredentialVerifier, *testutil.Contacts) {
	t.Helper()
	store := testutil.NewContacts(contacts...)
	return NewCredentialVerifier(store, cfg, zap.NewNop()), store
}

func TestVerifyBcryptByEmailAndPhone(t *testing.T) {
	hash, err := utils.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	v, _ := newVerifier(t, testConfig(), model.Contact{
		ID: 7, Email: "awa@example.sn", Phone: "77 123 45 67", Password: hash, IsVerified: true,
	})
	ctx := context.Background()

	c, err := v.Verify(ctx, " Awa@example.sn ", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.ID)

	c, err = v.Verify(ctx, "+221 77 123 45 67", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.ID)

	_, err = v.Verify(ctx, "awa@example.sn", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyUnknownAndAmbiguousIdentifiers(t *testing.T) {
	v, _ := newVerifier(t, testConfig(),
		model.Contact{ID: 1, Email: "dup@example.sn", Password: "x", IsVerified: true},
		model.Contact{ID: 2, Email: "dup@example.sn", Password: "x", IsVerified: true},
	)
	ctx := context.Background()

	for _, id := range []string{"", "nobody@example.sn", "dup@example.sn", "abc"} {
		_, err := v.Verify(ctx, id, "x", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials, id)
	}
	_, err := v.Verify(ctx, "dup@example.sn", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyUnverifiedContact(t *testing.T) {
	hash, err := utils.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	v, _ := newVerifier(t, testConfig(), model.Contact{ID: 3, Email: "u@example.sn", Password: hash})

	_, err = v.Verify(context.Background(), "u@example.sn", "s3cret", "")
	assert.ErrorIs(t, err, ErrUnverified)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestVerifyRehashesPlaintext(t *testing.T) {
	v, store := newVerifier(t, testConfig(), model.Contact{ID: 4, Email: "p@example.sn", Password: "legacy", IsVerified: true})

	_, err := v.Verify(context.Background(), "p@example.sn", "legacy", "")
	require.NoError(t, err)

	stored := store.Peek(4).Password
	assert.Equal(t, utils.SchemeBcrypt, utils.IdentifyScheme(stored))
	assert.True(t, utils.VerifyPassword(stored, "legacy"))
}

func TestFirstLoginInviteMode(t *testing.T) {
	v, store := newVerifier(t, testConfig(),
		model.Contact{ID: 5, Email: "new@example.sn"},
		model.Contact{ID: 6, Email: "other@example.sn"},
	)
	ctx := context.Background()

	_, err := v.Verify(ctx, "new@example.sn", "chosen", "")
	assert.ErrorIs(t, err, ErrInvitationRequired)

	otherInvite, _, err := utils.NewInviteToken(testSecret, 6, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, "new@example.sn", "chosen", otherInvite)
	assert.ErrorIs(t, err, ErrInvitationRequired)
	assert.False(t, store.Peek(5).HasCredential())

	invite, _, err := utils.NewInviteToken(testSecret, 5, time.Hour)
	require.NoError(t, err)
	c, err := v.Verify(ctx, "new@example.sn", "chosen", invite)
	require.NoError(t, err)
	assert.True(t, c.IsVerified)

	saved := store.Peek(5)
	assert.True(t, saved.IsVerified)
	assert.True(t, utils.VerifyPassword(saved.Password, "chosen"))

	_, err = v.Verify(ctx, "new@example.sn", "different", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFirstLoginTrustMode(t *testing.T) {
	cfg := testConfig()
	cfg.FirstLoginMode = config.FirstLoginTrust
	v, store := newVerifier(t, cfg, model.Contact{ID: 8, Email: "t@example.sn"})

	_, err := v.Verify(context.Background(), "t@example.sn", "anything", "")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(store.Peek(8).Password, "anything"))
}
