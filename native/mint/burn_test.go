package mint

import (
	"errors"
	"math/big"
	"testing"
)

type mockTokens struct {
	owners    map[string][20]byte
	approvals map[string]bool
}

func newMockTokens() *mockTokens {
	return &mockTokens{
		owners:    make(map[string][20]byte),
		approvals: make(map[string]bool),
	}
}

func (m *mockTokens) setOwner(collection [20]byte, id int64, owner [20]byte) {
	m.owners[tokenStateKey(collection, big.NewInt(id))] = owner
}

func (m *mockTokens) approve(collection [20]byte, owner [20]byte, operator [20]byte) {
	m.approvals[balanceStateKey(owner, operator)+tokenStateKey(collection, nil)] = true
}

func tokenStateKey(collection [20]byte, id *big.Int) string {
	if id == nil {
		return string(collection[:])
	}
	return string(collection[:]) + "/" + id.String()
}

func (m *mockTokens) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	owner, ok := m.owners[tokenStateKey(collection, tokenID)]
	if !ok {
		return [20]byte{}, errors.New("unknown token")
	}
	return owner, nil
}

func (m *mockTokens) IsApprovedForAll(collection [20]byte, owner [20]byte, operator [20]byte) (bool, error) {
	return m.approvals[balanceStateKey(owner, operator)+tokenStateKey(collection, nil)], nil
}

var sourceCollection = testAddr(0xd1)

func burnEngine(t *testing.T, burn *BurnConfig) (*Engine, *mockTokens, [20]byte) {
	t.Helper()
	engine, _, _ := testEngine(t)
	tokens := newMockTokens()
	engine.SetTokenOwnership(tokens)
	collection := seedRound(t, engine, baseConfig(), baseInvite())
	if burn != nil {
		if err := engine.SetBurnConfig(ownerAddr, collection, burn); err != nil {
			t.Fatalf("set burn config: %v", err)
		}
	}
	return engine, tokens, collection
}

func ownedTokens(tokens *mockTokens, owner [20]byte, count int) []*big.Int {
	ids := make([]*big.Int, count)
	for i := range ids {
		tokens.setOwner(sourceCollection, int64(i+1), owner)
		ids[i] = big.NewInt(int64(i + 1))
	}
	return ids
}

func baseBurn() *BurnConfig {
	return &BurnConfig{
		Source:  sourceCollection,
		Enabled: true,
		Ratio:   2,
		Start:   1_000,
	}
}

func TestBurnForwardRatio(t *testing.T) {
	engine, tokens, collection := burnEngine(t, baseBurn())
	tokens.approve(sourceCollection, minterAddr, vaultAddr)
	ids := ownedTokens(tokens, minterAddr, 6)

	quantity, err := engine.ValidateBurnToMint(BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids})
	if err != nil {
		t.Fatalf("validate burn: %v", err)
	}
	if quantity != 3 {
		t.Fatalf("quantity %d, want 3", quantity)
	}

	// A count that does not divide by the ratio is rejected.
	if _, err := engine.ValidateBurnToMint(BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids[:5]}); !errors.Is(err, ErrInvalidBurnRatio) {
		t.Fatalf("expected ErrInvalidBurnRatio, got %v", err)
	}
}

func TestBurnReversedRatio(t *testing.T) {
	burn := baseBurn()
	burn.Reversed = true
	burn.Ratio = 5
	engine, tokens, collection := burnEngine(t, burn)
	tokens.approve(sourceCollection, minterAddr, vaultAddr)
	ids := ownedTokens(tokens, minterAddr, 3)

	quantity, err := engine.ValidateBurnToMint(BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids})
	if err != nil {
		t.Fatalf("validate burn: %v", err)
	}
	if quantity != 15 {
		t.Fatalf("quantity %d, want 15", quantity)
	}
}

func TestBurnCustodyChecks(t *testing.T) {
	engine, tokens, collection := burnEngine(t, baseBurn())
	ids := ownedTokens(tokens, minterAddr, 2)

	// Blanket approval toward the vault is missing.
	if _, err := engine.ValidateBurnToMint(BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids}); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	tokens.approve(sourceCollection, minterAddr, vaultAddr)
	tokens.setOwner(sourceCollection, 2, testAddr(0x99))
	if _, err := engine.ValidateBurnToMint(BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids}); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("expected ErrNotTokenOwner, got %v", err)
	}
}

func TestBurnGatesAndLimits(t *testing.T) {
	engine, tokens, collection := burnEngine(t, nil)
	tokens.approve(sourceCollection, minterAddr, vaultAddr)
	ids := ownedTokens(tokens, minterAddr, 2)
	args := BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids}

	if _, err := engine.ValidateBurnToMint(args); !errors.Is(err, ErrBurnDisabled) {
		t.Fatalf("expected ErrBurnDisabled, got %v", err)
	}

	burn := baseBurn()
	burn.Start = 9_000 // after the fixed test clock
	if err := engine.SetBurnConfig(ownerAddr, collection, burn); err != nil {
		t.Fatalf("set burn config: %v", err)
	}
	if _, err := engine.ValidateBurnToMint(args); !errors.Is(err, ErrBurnNotStarted) {
		t.Fatalf("expected ErrBurnNotStarted, got %v", err)
	}

	burn = baseBurn()
	burn.WalletLimit = 3
	if err := engine.SetBurnConfig(ownerAddr, collection, burn); err != nil {
		t.Fatalf("set burn config: %v", err)
	}
	if err := engine.CommitBurn(collection, minterAddr, [20]byte{}, 3); err != nil {
		t.Fatalf("commit burn: %v", err)
	}
	if _, err := engine.ValidateBurnToMint(args); !errors.Is(err, ErrWalletLimit) {
		t.Fatalf("expected ErrWalletLimit, got %v", err)
	}

	burn.WalletLimit = 0
	if err := engine.SetBurnConfig(ownerAddr, collection, burn); err != nil {
		t.Fatalf("set burn config: %v", err)
	}
	args.TotalSupply = 10_000
	if _, err := engine.ValidateBurnToMint(args); !errors.Is(err, ErrMaxSupply) {
		t.Fatalf("expected ErrMaxSupply, got %v", err)
	}
}

func TestBurnBatchLimit(t *testing.T) {
	burn := baseBurn()
	burn.Reversed = true
	burn.Ratio = 60
	engine, tokens, collection := burnEngine(t, burn)
	tokens.approve(sourceCollection, minterAddr, vaultAddr)
	ids := ownedTokens(tokens, minterAddr, 1)

	// One token converts to 60 mints, past the batch cap of 50.
	if _, err := engine.ValidateBurnToMint(BurnArgs{Collection: collection, Caller: minterAddr, TokenIDs: ids}); !errors.Is(err, ErrMaxBatch) {
		t.Fatalf("expected ErrMaxBatch, got %v", err)
	}
}

func TestCommitBurnAccumulates(t *testing.T) {
	engine, _, collection := burnEngine(t, baseBurn())
	if err := engine.CommitBurn(collection, minterAddr, [20]byte{}, 4); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := engine.CommitBurn(collection, minterAddr, [20]byte{}, 3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	converted, err := engine.MintedOf(collection, minterAddr, BurnCounterKey)
	if err != nil {
		t.Fatalf("minted: %v", err)
	}
	if converted != 7 {
		t.Fatalf("burn counter %d, want 7", converted)
	}
}

func TestBurnCounterKeyReserved(t *testing.T) {
	engine, _, collection := burnEngine(t, nil)
	if err := engine.SetInvite(ownerAddr, collection, BurnCounterKey, baseInvite()); !errors.Is(err, ErrReservedInviteKey) {
		t.Fatalf("expected ErrReservedInviteKey, got %v", err)
	}
}
