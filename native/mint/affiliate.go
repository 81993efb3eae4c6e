package mint

import (
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// affiliateDigest binds an affiliate address into the standard signed-message
// scheme: keccak(prefix || keccak(affiliate)).
func affiliateDigest(affiliate [20]byte) [32]byte {
	inner := keccakHash(affiliate[:])
	return keccakHash([]byte(signedMessagePrefix), inner[:])
}

// VerifyAffiliateSignature checks that signature binds the affiliate address
// to the trusted signer. Signatures are 65 bytes with the recovery id in the
// final byte, accepted in both the 0/1 and legacy 27/28 encodings.
func VerifyAffiliateSignature(affiliate [20]byte, signature []byte, signer [20]byte) error {
	if len(signature) != 65 {
		return ErrInvalidSignature
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return ErrInvalidSignature
	}
	digest := affiliateDigest(affiliate)
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return ErrInvalidSignature
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	if [20]byte(recovered) != signer {
		return ErrInvalidSignature
	}
	return nil
}

// SignAffiliateApproval produces the signature VerifyAffiliateSignature
// expects, with the legacy 27/28 recovery id used by wallet tooling. Exposed
// for the signer service and tests.
func SignAffiliateApproval(affiliate [20]byte, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := affiliateDigest(affiliate)
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
