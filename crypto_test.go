package pinjaman

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	f := sampleFields()
	f.Address = addr
	msg, _ := BuildMessage(f)

	sig, err := SignMessage(msg, key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	ok, err := VerifyMessage(addr, msg, sig)
	if err != nil || !ok {
		t.Fatalf("expected signature to verify, ok=%v err=%v", ok, err)
	}

	ok, err = VerifyMessage(strings.ToLower(addr), msg, sig)
	if err != nil || !ok {
		t.Fatalf("expected lower-case address to verify, ok=%v err=%v", ok, err)
	}

	other, _ := crypto.GenerateKey()
	ok, err = VerifyMessage(crypto.PubkeyToAddress(other.PublicKey).Hex(), msg, sig)
	if err != nil || ok {
		t.Fatalf("expected other address to fail, ok=%v err=%v", ok, err)
	}

	ok, _ = VerifyMessage(addr, msg+" ", sig)
	if ok {
		t.Fatalf("expected altered message to fail")
	}
}

func TestRecoverAddressAcceptsRawRecoveryID(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sig, _ := SignMessage("hello", key)

	raw, _ := hexutil.Decode(sig)
	raw[64] -= 27

	got, err := RecoverAddress("hello", hexutil.Encode(raw))
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if got != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected signer %s", got.Hex())
	}
}

func TestVerifyMessageMalformed(t *testing.T) {
	if _, err := VerifyMessage("0x1234", "hello", "0x00"); err != ErrMalformedAddress {
		t.Fatalf("expected malformed address, got %v", err)
	}
	addr := "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
	if _, err := VerifyMessage(addr, "hello", "0xdeadbeef"); err != ErrMalformedSignature {
		t.Fatalf("expected malformed signature, got %v", err)
	}
}

func TestKeySigner(t *testing.T) {
	// well-known development key
	signer, err := NewKeySigner("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("signer failed: %v", err)
	}
	if signer.Address().Hex() != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Fatalf("unexpected address %s", signer.Address().Hex())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := signer.SignMessage(ctx, "hello"); err == nil {
		t.Fatalf("expected cancelled context to abort signing")
	}
}
