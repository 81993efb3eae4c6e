package mint

import (
	"bytes"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// VerifyMembership reports whether account is covered by the proof for a
// round denominated in paymentAsset. Two reserved key forms mark a round open
// to everyone: any key value in [0, 255] and the keccak hash of the payment
// asset address. Every other key is treated as a merkle root and the proof is
// checked as a sorted-pair keccak inclusion path from keccak(account).
func VerifyMembership(proof *MembershipProof, paymentAsset [20]byte, account [20]byte) bool {
	if proof == nil {
		return false
	}
	if isOpenKey(proof.Key, paymentAsset) {
		return true
	}
	node := keccakHash(account[:])
	for _, sibling := range proof.Nodes {
		if bytes.Compare(node[:], sibling[:]) <= 0 {
			node = keccakHash(node[:], sibling[:])
		} else {
			node = keccakHash(sibling[:], node[:])
		}
	}
	return node == proof.Key
}

func isOpenKey(key [32]byte, paymentAsset [20]byte) bool {
	reserved := true
	for _, b := range key[:31] {
		if b != 0 {
			reserved = false
			break
		}
	}
	if reserved {
		return true
	}
	return key == keccakHash(paymentAsset[:])
}

func keccakHash(data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(data...))
	return out
}
