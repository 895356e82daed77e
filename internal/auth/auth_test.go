package auth_test

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/model"
)

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	subject, orgID := uuid.New(), uuid.New()
	token, expiresAt, err := mgr.IssueToken(subject, orgID, model.RoleAnalyst)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject.String(), claims.Subject)
	assert.Equal(t, orgID, claims.OrgID)
	assert.Equal(t, model.RoleAnalyst, claims.Role)
}

// newTestJWTManagerWithKey writes a real key pair to a temp dir and returns
// a manager over it plus the raw private key for forging tokens.
func newTestJWTManagerWithKey(t *testing.T) (*auth.JWTManager, ed25519.PrivateKey, string) {
	t.Helper()
	dir := t.TempDir()
	privPath, pubPath, err := auth.WriteKeyPair(dir)
	require.NoError(t, err)

	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)

	priv := readPrivateKey(t, privPath)
	return mgr, priv, dir
}

func readPrivateKey(t *testing.T, path string) ed25519.PrivateKey {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	key, err := jwt.ParseEdPrivateKeyFromPEM(data)
	require.NoError(t, err)
	return key.(ed25519.PrivateKey)
}

// forgeToken signs a JWT with the given private key and claims.
func forgeToken(t *testing.T, privKey ed25519.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(privKey)
	require.NoError(t, err)
	return signed
}

func validClaims() *auth.Claims {
	now := time.Now().UTC()
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    "quire",
			Audience:  jwt.ClaimStrings{"quire"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        uuid.New().String(),
		},
		OrgID: uuid.New(),
		Role:  model.RoleReader,
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	mgr, privKey, _ := newTestJWTManagerWithKey(t)

	tests := []struct {
		name    string
		mutate  func(*auth.Claims)
		wantErr string
	}{
		{"wrong issuer", func(c *auth.Claims) { c.Issuer = "not-quire" }, "invalid issuer"},
		{"empty issuer", func(c *auth.Claims) { c.Issuer = "" }, "invalid issuer"},
		{"wrong audience", func(c *auth.Claims) { c.Audience = jwt.ClaimStrings{"some-other-service"} }, "validate token"},
		{"expired", func(c *auth.Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }, "validate token"},
		{"no expiry", func(c *auth.Claims) { c.ExpiresAt = nil }, "validate token"},
		{"malformed subject", func(c *auth.Claims) { c.Subject = "not-a-uuid" }, "invalid subject"},
		{"missing org", func(c *auth.Claims) { c.OrgID = uuid.Nil }, "org_id"},
		{"unknown role", func(c *auth.Claims) { c.Role = "superuser" }, "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := mgr.ValidateToken(forgeToken(t, privKey, claims))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("untouched claims pass", func(t *testing.T) {
		_, err := mgr.ValidateToken(forgeToken(t, privKey, validClaims()))
		assert.NoError(t, err)
	})
}

func TestValidateToken_ForeignKeyRejected(t *testing.T) {
	mgr, _, _ := newTestJWTManagerWithKey(t)
	_, otherKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = mgr.ValidateToken(forgeToken(t, otherKey, validClaims()))
	assert.Error(t, err)
}

func TestNewJWTManager_VerifyOnly(t *testing.T) {
	issuer, privKey, dir := newTestJWTManagerWithKey(t)
	verifier, err := auth.NewJWTManager("", filepath.Join(dir, auth.PublicKeyFile), time.Hour)
	require.NoError(t, err)
	assert.True(t, issuer.CanIssue())
	assert.False(t, verifier.CanIssue())

	_, _, err = verifier.IssueToken(uuid.New(), uuid.New(), model.RoleReader)
	assert.ErrorIs(t, err, auth.ErrCannotIssue)

	claims, err := verifier.ValidateToken(forgeToken(t, privKey, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, model.RoleReader, claims.Role)
}

func TestNewJWTManager_PrivateKeyWithoutPublic(t *testing.T) {
	_, _, dir := newTestJWTManagerWithKey(t)
	_, err := auth.NewJWTManager(filepath.Join(dir, auth.PrivateKeyFile), "", time.Hour)
	assert.Error(t, err)
}

func TestNewJWTManager_MismatchedKeys(t *testing.T) {
	_, _, dirA := newTestJWTManagerWithKey(t)
	_, _, dirB := newTestJWTManagerWithKey(t)

	_, err := auth.NewJWTManager(filepath.Join(dirA, auth.PrivateKeyFile), filepath.Join(dirB, auth.PublicKeyFile), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestWriteKeyPair_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, _, err := auth.WriteKeyPair(dir)
	require.NoError(t, err)

	_, _, err = auth.WriteKeyPair(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	info, err := os.Stat(filepath.Join(dir, auth.PrivateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestClaimsCanAccessOrg(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	reader := &auth.Claims{OrgID: own, Role: model.RoleReader}
	assert.True(t, reader.CanAccessOrg(own))
	assert.False(t, reader.CanAccessOrg(other))

	admin := &auth.Claims{OrgID: own, Role: model.RoleAdmin}
	assert.True(t, admin.CanAccessOrg(other))

	var none *auth.Claims
	assert.False(t, none.CanAccessOrg(own))
}
