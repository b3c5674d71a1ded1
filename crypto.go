package pinjaman

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrMalformedAddress   = errors.New("malformed address")
)

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
}

func PrivKeyToAddr(privateKeyHex string) (common.Address, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// SignMessage produces an EIP-191 personal_sign signature, 0x-prefixed, V in {27,28}.
func SignMessage(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func RecoverAddress(message, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrMalformedSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, ErrMalformedSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrMalformedSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyMessage reports whether signatureHex over message recovers to address.
// Addresses compare case-insensitively; the message must match exactly.
func VerifyMessage(address, message, signatureHex string) (bool, error) {
	if !IsAddress(address) {
		return false, ErrMalformedAddress
	}
	signer, err := RecoverAddress(message, signatureHex)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(signer.Hex(), address), nil
}

// KeySigner signs attestations and transactions with a local private key.
type KeySigner struct {
	key *ecdsa.PrivateKey
}

func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &KeySigner{key: key}, nil
}

func (s *KeySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *KeySigner) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

func (s *KeySigner) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return SignMessage(message, s.key)
}
