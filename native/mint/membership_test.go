package mint

import (
	"bytes"
	"testing"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func sortedPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return keccakHash(a[:], b[:])
	}
	return keccakHash(b[:], a[:])
}

func TestVerifyMembershipReservedKeys(t *testing.T) {
	asset := testAddr(0xaa)
	account := testAddr(0x01)
	for _, value := range []byte{0, 1, 42, 255} {
		var key [32]byte
		key[31] = value
		proof := &MembershipProof{Key: key}
		if !VerifyMembership(proof, asset, account) {
			t.Fatalf("reserved key %d must always pass", value)
		}
	}
}

func TestVerifyMembershipPaymentAssetKey(t *testing.T) {
	asset := testAddr(0xaa)
	proof := &MembershipProof{Key: keccakHash(asset[:])}
	if !VerifyMembership(proof, asset, testAddr(0x02)) {
		t.Fatal("payment asset key must open the round")
	}
	other := testAddr(0xbb)
	if VerifyMembership(proof, other, testAddr(0x02)) {
		t.Fatal("asset key must not match a different asset")
	}
}

func TestVerifyMembershipInclusionProof(t *testing.T) {
	asset := testAddr(0xaa)
	member := testAddr(0x11)
	sibling := testAddr(0x22)

	memberLeaf := keccakHash(member[:])
	siblingLeaf := keccakHash(sibling[:])
	root := sortedPair(memberLeaf, siblingLeaf)

	proof := &MembershipProof{Key: root, Nodes: [][32]byte{siblingLeaf}}
	if !VerifyMembership(proof, asset, member) {
		t.Fatal("valid proof must verify")
	}
	if VerifyMembership(proof, asset, testAddr(0x33)) {
		t.Fatal("proof must not verify for a non-member")
	}

	tampered := &MembershipProof{Key: root, Nodes: [][32]byte{keccakHash([]byte("bogus"))}}
	if VerifyMembership(tampered, asset, member) {
		t.Fatal("tampered proof node must fail")
	}
}

func TestVerifyMembershipDeeperTree(t *testing.T) {
	asset := testAddr(0xaa)
	accounts := [][20]byte{testAddr(1), testAddr(2), testAddr(3), testAddr(4)}
	leaves := make([][32]byte, len(accounts))
	for i, acct := range accounts {
		leaves[i] = keccakHash(acct[:])
	}
	left := sortedPair(leaves[0], leaves[1])
	right := sortedPair(leaves[2], leaves[3])
	root := sortedPair(left, right)

	proof := &MembershipProof{Key: root, Nodes: [][32]byte{leaves[1], right}}
	if !VerifyMembership(proof, asset, accounts[0]) {
		t.Fatal("two-level proof must verify")
	}
	// Swapping the path order must break verification.
	wrongOrder := &MembershipProof{Key: root, Nodes: [][32]byte{right, leaves[1]}}
	if VerifyMembership(wrongOrder, asset, accounts[0]) {
		t.Fatal("out-of-order proof must fail")
	}
}

func TestVerifyMembershipNilProof(t *testing.T) {
	if VerifyMembership(nil, testAddr(0xaa), testAddr(0x01)) {
		t.Fatal("nil proof must fail")
	}
}
