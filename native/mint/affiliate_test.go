package mint

import (
	"errors"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestVerifyAffiliateSignature(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
	affiliate := testAddr(0x42)

	sig, err := SignAffiliateApproval(affiliate, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifyAffiliateSignature(affiliate, sig, signer); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// The raw 0/1 recovery id form must verify as well.
	raw := make([]byte, len(sig))
	copy(raw, sig)
	raw[64] -= 27
	if err := VerifyAffiliateSignature(affiliate, raw, signer); err != nil {
		t.Fatalf("raw recovery id rejected: %v", err)
	}
}

func TestVerifyAffiliateSignatureWrongSigner(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	affiliate := testAddr(0x42)
	sig, err := SignAffiliateApproval(affiliate, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifyAffiliateSignature(affiliate, sig, testAddr(0x99)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyAffiliateSignatureBindsAffiliate(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
	sig, err := SignAffiliateApproval(testAddr(0x42), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// A signature for one affiliate must not authorize another.
	if err := VerifyAffiliateSignature(testAddr(0x43), sig, signer); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyAffiliateSignatureMalformed(t *testing.T) {
	if err := VerifyAffiliateSignature(testAddr(0x42), nil, testAddr(0x01)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for nil, got %v", err)
	}
	if err := VerifyAffiliateSignature(testAddr(0x42), make([]byte, 64), testAddr(0x01)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for short sig, got %v", err)
	}
	bad := make([]byte, 65)
	bad[64] = 5
	if err := VerifyAffiliateSignature(testAddr(0x42), bad, testAddr(0x01)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for bad recovery id, got %v", err)
	}
}
