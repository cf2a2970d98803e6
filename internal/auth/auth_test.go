package auth

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personalSign(t *testing.T, message string) (common.Address, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey), hexutil.Encode(sig)
}

func TestVerifyLogin(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := crypto.Sign(accounts.TextHash([]byte(LoginMessage(addr, "n-1"))), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	require.NoError(t, VerifyLogin(addr, "n-1", hexutil.Encode(sig)))

	// wrong nonce
	assert.Error(t, VerifyLogin(addr, "n-2", hexutil.Encode(sig)))

	// someone else's address
	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	assert.Error(t, VerifyLogin(other, "n-1", hexutil.Encode(sig)))
}

func TestRecoverPersonalSign(t *testing.T) {
	addr, sig := personalSign(t, "hello")

	got, err := RecoverPersonalSign("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	tests := []struct {
		name string
		sig  string
	}{
		{"not hex", "zz"},
		{"short", "0x1234"},
		{"bad v", sig[:len(sig)-2] + "05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverPersonalSign("hello", tt.sig)
			assert.Error(t, err)
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	id := uuid.New()

	token, err := GenerateJWT("secret", id, addr, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, addr, claims.Wallet())

	_, err = ParseJWT("other-secret", token)
	assert.Error(t, err)

	expired, err := GenerateJWT("secret", id, addr, -time.Hour)
	require.NoError(t, err)
	// non-positive expiration falls back to 24h
	_, err = ParseJWT("secret", expired)
	assert.NoError(t, err)
}
