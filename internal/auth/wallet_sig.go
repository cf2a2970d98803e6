package auth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoginMessage is the text a wallet signs with personal_sign to log in.
func LoginMessage(address common.Address, nonce string) string {
	return fmt.Sprintf("Sign in to Ad Campaign Marketplace\n\nAddress: %s\nNonce: %s", address.Hex(), nonce)
}

// RecoverPersonalSign returns the signer of an EIP-191 personal_sign signature.
// Wallets emit v as 27/28; 0/1 is accepted too.
func RecoverPersonalSign(message, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signatureHex))
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyLogin checks that signatureHex over the login message for nonce was
// produced by address.
func VerifyLogin(address common.Address, nonce, signatureHex string) error {
	signer, err := RecoverPersonalSign(LoginMessage(address, nonce), signatureHex)
	if err != nil {
		return err
	}
	if signer != address {
		return fmt.Errorf("signature belongs to %s, not %s", signer.Hex(), address.Hex())
	}
	return nil
}
