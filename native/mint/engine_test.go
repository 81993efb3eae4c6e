package mint

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type mockState struct {
	invites           map[string]*Invite
	collections       map[[20]byte]*CollectionConfig
	burns             map[[20]byte]*BurnConfig
	minted            map[string]uint64
	ownerBalances     map[string]*OwnerBalance
	affiliateBalances map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		invites:           make(map[string]*Invite),
		collections:       make(map[[20]byte]*CollectionConfig),
		burns:             make(map[[20]byte]*BurnConfig),
		minted:            make(map[string]uint64),
		ownerBalances:     make(map[string]*OwnerBalance),
		affiliateBalances: make(map[string]*big.Int),
	}
}

func inviteStateKey(collection [20]byte, key [32]byte) string {
	return hex.EncodeToString(collection[:]) + "/" + hex.EncodeToString(key[:])
}

func counterStateKey(collection [20]byte, wallet [20]byte, key [32]byte) string {
	return hex.EncodeToString(collection[:]) + "/" + hex.EncodeToString(wallet[:]) + "/" + hex.EncodeToString(key[:])
}

func balanceStateKey(a [20]byte, b [20]byte) string {
	return hex.EncodeToString(a[:]) + "/" + hex.EncodeToString(b[:])
}

func (m *mockState) InviteGet(collection [20]byte, key [32]byte) (*Invite, bool, error) {
	invite, ok := m.invites[inviteStateKey(collection, key)]
	if !ok {
		return nil, false, nil
	}
	return invite.Clone(), true, nil
}

func (m *mockState) InvitePut(collection [20]byte, key [32]byte, invite *Invite) error {
	m.invites[inviteStateKey(collection, key)] = invite.Clone()
	return nil
}

func (m *mockState) CollectionGet(collection [20]byte) (*CollectionConfig, bool, error) {
	cfg, ok := m.collections[collection]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) CollectionPut(collection [20]byte, cfg *CollectionConfig) error {
	m.collections[collection] = cfg.Clone()
	return nil
}

func (m *mockState) BurnConfigGet(collection [20]byte) (*BurnConfig, bool, error) {
	cfg, ok := m.burns[collection]
	if !ok {
		return nil, false, nil
	}
	clone := *cfg
	return &clone, true, nil
}

func (m *mockState) BurnConfigPut(collection [20]byte, cfg *BurnConfig) error {
	clone := *cfg
	m.burns[collection] = &clone
	return nil
}

func (m *mockState) MintedGet(collection [20]byte, wallet [20]byte, key [32]byte) (uint64, error) {
	return m.minted[counterStateKey(collection, wallet, key)], nil
}

func (m *mockState) MintedPut(collection [20]byte, wallet [20]byte, key [32]byte, total uint64) error {
	m.minted[counterStateKey(collection, wallet, key)] = total
	return nil
}

func (m *mockState) OwnerBalanceGet(collection [20]byte, asset [20]byte) (*OwnerBalance, bool, error) {
	balance, ok := m.ownerBalances[balanceStateKey(collection, asset)]
	if !ok {
		return nil, false, nil
	}
	return balance.Clone(), true, nil
}

func (m *mockState) OwnerBalancePut(collection [20]byte, asset [20]byte, balance *OwnerBalance) error {
	m.ownerBalances[balanceStateKey(collection, asset)] = balance.Clone()
	return nil
}

func (m *mockState) AffiliateBalanceGet(affiliate [20]byte, asset [20]byte) (*big.Int, bool, error) {
	balance, ok := m.affiliateBalances[balanceStateKey(affiliate, asset)]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(balance), true, nil
}

func (m *mockState) AffiliateBalancePut(affiliate [20]byte, asset [20]byte, amount *big.Int) error {
	m.affiliateBalances[balanceStateKey(affiliate, asset)] = new(big.Int).Set(amount)
	return nil
}

type mockAssets struct {
	allowances map[string]*big.Int
	balances   map[string]*big.Int
	transfers  []string
	failPull   bool
	failPush   bool
}

func newMockAssets() *mockAssets {
	return &mockAssets{
		allowances: make(map[string]*big.Int),
		balances:   make(map[string]*big.Int),
	}
}

func (m *mockAssets) Allowance(asset [20]byte, owner [20]byte, _ [20]byte) (*big.Int, error) {
	if v, ok := m.allowances[balanceStateKey(asset, owner)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockAssets) BalanceOf(asset [20]byte, owner [20]byte) (*big.Int, error) {
	if v, ok := m.balances[balanceStateKey(asset, owner)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockAssets) TransferFrom(asset [20]byte, from [20]byte, to [20]byte, amount *big.Int) error {
	if m.failPull {
		return errors.New("pull refused")
	}
	m.transfers = append(m.transfers, "pull:"+amount.String())
	return nil
}

func (m *mockAssets) Transfer(asset [20]byte, to [20]byte, amount *big.Int) error {
	if m.failPush {
		return errors.New("push refused")
	}
	m.transfers = append(m.transfers, "push:"+hex.EncodeToString(to[:])+":"+amount.String())
	return nil
}

var (
	platformAddr = testAddr(0xf0)
	ownerAddr    = testAddr(0x0a)
	vaultAddr    = testAddr(0xcc)
	minterAddr   = testAddr(0x01)
	inviteKey1   = [32]byte{0xde, 0xad}
)

func openProof() *MembershipProof {
	// Reserved zero key marks the round open to everyone.
	return &MembershipProof{}
}

func testEngine(t *testing.T) (*Engine, *mockState, *mockAssets) {
	t.Helper()
	st := newMockState()
	assets := newMockAssets()
	engine := NewEngine()
	engine.SetState(st)
	engine.SetPlatformAddress(platformAddr)
	engine.SetVault(vaultAddr)
	engine.SetAssetTransfer(assets)
	engine.SetNowFunc(func() int64 { return 5_000 })
	return engine, st, assets
}

func baseConfig() *CollectionConfig {
	return &CollectionConfig{
		Owner:           ownerAddr,
		MaxSupply:       10_000,
		MaxBatchSize:    50,
		AffiliateFeeBps: 1500,
		PlatformFeeBps:  500,
	}
}

func baseInvite() *Invite {
	return &Invite{
		Price:        big.NewInt(100),
		ReservePrice: big.NewInt(0),
		Delta:        big.NewInt(0),
		Start:        1_000,
		WalletLimit:  10,
		ListLimit:    100,
		UnitSize:     1,
	}
}

func seedRound(t *testing.T, engine *Engine, cfg *CollectionConfig, invite *Invite) [20]byte {
	t.Helper()
	collection := testAddr(0xc0)
	if err := engine.RegisterCollection(ownerAddr, collection, cfg); err != nil {
		t.Fatalf("register collection: %v", err)
	}
	if err := engine.SetInvite(ownerAddr, collection, inviteKey1, invite); err != nil {
		t.Fatalf("set invite: %v", err)
	}
	return collection
}

func nativeArgs(collection [20]byte, quantity uint64, sent int64) MintArgs {
	return MintArgs{
		Collection:  collection,
		Key:         inviteKey1,
		Caller:      minterAddr,
		Proof:       openProof(),
		Quantity:    quantity,
		PaymentSent: big.NewInt(sent),
	}
}

func TestValidateMintHappyPath(t *testing.T) {
	engine, _, _ := testEngine(t)
	collection := seedRound(t, engine, baseConfig(), baseInvite())
	cost, err := engine.ValidateMint(nativeArgs(collection, 3, 300))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected cost 300, got %s", cost)
	}
}

func TestValidateMintPaymentBoundaries(t *testing.T) {
	engine, _, _ := testEngine(t)
	collection := seedRound(t, engine, baseConfig(), baseInvite())
	if _, err := engine.ValidateMint(nativeArgs(collection, 3, 299)); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if _, err := engine.ValidateMint(nativeArgs(collection, 3, 301)); !errors.Is(err, ErrExcessPayment) {
		t.Fatalf("expected ErrExcessPayment, got %v", err)
	}
}

func TestValidateMintTiming(t *testing.T) {
	engine, _, _ := testEngine(t)
	invite := baseInvite()
	invite.Start = 6_000
	collection := seedRound(t, engine, baseConfig(), invite)
	if _, err := engine.ValidateMint(nativeArgs(collection, 1, 100)); !errors.Is(err, ErrMintNotStarted) {
		t.Fatalf("expected ErrMintNotStarted, got %v", err)
	}

	engine.SetNowFunc(func() int64 { return 9_000 })
	invite = baseInvite()
	invite.Start = 1_000
	invite.End = 8_000
	if err := engine.SetInvite(ownerAddr, collection, inviteKey1, invite); err != nil {
		t.Fatalf("set invite: %v", err)
	}
	if _, err := engine.ValidateMint(nativeArgs(collection, 1, 100)); !errors.Is(err, ErrMintEnded) {
		t.Fatalf("expected ErrMintEnded, got %v", err)
	}
}

func TestValidateMintPausedRound(t *testing.T) {
	engine, _, _ := testEngine(t)
	invite := baseInvite()
	invite.WalletLimit = 0
	collection := seedRound(t, engine, baseConfig(), invite)
	if _, err := engine.ValidateMint(nativeArgs(collection, 1, 100)); !errors.Is(err, ErrMintingPaused) {
		t.Fatalf("expected ErrMintingPaused, got %v", err)
	}
}

func TestValidateMintWalletLimit(t *testing.T) {
	engine, st, _ := testEngine(t)
	collection := seedRound(t, engine, baseConfig(), baseInvite())
	if err := st.MintedPut(collection, minterAddr, inviteKey1, 8); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	// Exactly up to the limit of 10 succeeds.
	if _, err := engine.ValidateMint(nativeArgs(collection, 2, 200)); err != nil {
		t.Fatalf("mint to limit must pass: %v", err)
	}
	// One past the limit rejects.
	if _, err := engine.ValidateMint(nativeArgs(collection, 3, 300)); !errors.Is(err, ErrWalletLimit) {
		t.Fatalf("expected ErrWalletLimit, got %v", err)
	}
}

func TestValidateMintSupplyCaps(t *testing.T) {
	engine, _, _ := testEngine(t)
	invite := baseInvite()
	invite.WalletLimit = 10_000 // not stricter than the collection cap
	invite.ListLimit = 5
	collection := seedRound(t, engine, baseConfig(), invite)

	args := nativeArgs(collection, 3, 300)
	args.RoundSupply = 3
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrListSupply) {
		t.Fatalf("expected ErrListSupply, got %v", err)
	}

	invite.ListLimit = 10_000
	if err := engine.SetInvite(ownerAddr, collection, inviteKey1, invite); err != nil {
		t.Fatalf("set invite: %v", err)
	}
	args = nativeArgs(collection, 51, 5100)
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrMaxBatch) {
		t.Fatalf("expected ErrMaxBatch, got %v", err)
	}

	args = nativeArgs(collection, 10, 1000)
	args.TotalSupply = 9_995
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrMaxSupply) {
		t.Fatalf("expected ErrMaxSupply, got %v", err)
	}
}

func TestValidateMintMembershipModes(t *testing.T) {
	engine, _, _ := testEngine(t)
	invite := baseInvite()
	member := minterAddr
	sibling := testAddr(0x77)
	memberLeaf := keccakHash(member[:])
	siblingLeaf := keccakHash(sibling[:])
	root := sortedPair(memberLeaf, siblingLeaf)

	collection := seedRound(t, engine, baseConfig(), invite)

	args := nativeArgs(collection, 1, 100)
	args.Proof = &MembershipProof{Key: root, Nodes: [][32]byte{siblingLeaf}}
	if _, err := engine.ValidateMint(args); err != nil {
		t.Fatalf("allowlisted member rejected: %v", err)
	}

	args.Caller = testAddr(0x99)
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrWalletUnauthorized) {
		t.Fatalf("expected ErrWalletUnauthorized, got %v", err)
	}

	invite.DenyList = true
	if err := engine.SetInvite(ownerAddr, collection, inviteKey1, invite); err != nil {
		t.Fatalf("set invite: %v", err)
	}
	args.Caller = member
	args.Proof = &MembershipProof{Key: root, Nodes: [][32]byte{siblingLeaf}}
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrWalletBlacklisted) {
		t.Fatalf("expected ErrWalletBlacklisted, got %v", err)
	}
}

func TestValidateMintAffiliateChecks(t *testing.T) {
	engine, _, _ := testEngine(t)
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
	engine.SetAffiliateSigner(signer)
	collection := seedRound(t, engine, baseConfig(), baseInvite())

	affiliate := testAddr(0x55)
	sig, err := SignAffiliateApproval(affiliate, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	args := nativeArgs(collection, 1, 100)
	args.Affiliate = affiliate
	args.Signature = sig
	if _, err := engine.ValidateMint(args); err != nil {
		t.Fatalf("legitimate affiliate rejected: %v", err)
	}

	for _, self := range [][20]byte{platformAddr, ownerAddr, minterAddr} {
		args.Affiliate = self
		if _, err := engine.ValidateMint(args); !errors.Is(err, ErrSelfReferral) {
			t.Fatalf("expected ErrSelfReferral for %x, got %v", self[:2], err)
		}
	}

	args.Affiliate = testAddr(0x56) // signature was issued for 0x55
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidateMintAssetRound(t *testing.T) {
	engine, _, assets := testEngine(t)
	invite := baseInvite()
	asset := testAddr(0xee)
	invite.PaymentAsset = asset
	collection := seedRound(t, engine, baseConfig(), invite)

	args := nativeArgs(collection, 2, 0)
	args.PaymentSent = nil
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	assets.allowances[balanceStateKey(asset, minterAddr)] = big.NewInt(200)
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	assets.balances[balanceStateKey(asset, minterAddr)] = big.NewInt(200)
	if _, err := engine.ValidateMint(args); err != nil {
		t.Fatalf("funded asset mint rejected: %v", err)
	}

	args.PaymentSent = big.NewInt(1)
	if _, err := engine.ValidateMint(args); !errors.Is(err, ErrNativeNotAccepted) {
		t.Fatalf("expected ErrNativeNotAccepted, got %v", err)
	}
}

func TestEffectiveCallerRelay(t *testing.T) {
	engine, _, _ := testEngine(t)
	relay := testAddr(0xbb)
	origin := testAddr(0x12)
	engine.SetRelayAddress(relay)

	if got := engine.EffectiveCaller(relay, origin); got != origin {
		t.Fatalf("relay call must resolve to origin")
	}
	if got := engine.EffectiveCaller(minterAddr, origin); got != minterAddr {
		t.Fatalf("non-relay caller must act as itself")
	}
	if got := engine.EffectiveCaller(relay, [20]byte{}); got != relay {
		t.Fatalf("relay without origin must act as itself")
	}
}

func TestValidateMintUnitSize(t *testing.T) {
	engine, _, _ := testEngine(t)
	invite := baseInvite()
	invite.UnitSize = 5
	invite.WalletLimit = 20
	collection := seedRound(t, engine, baseConfig(), invite)

	// 2 units become 10 tokens priced at 100 each.
	cost, err := engine.ValidateMint(nativeArgs(collection, 2, 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000, got %s", cost)
	}
	// 5 units would be 25 tokens, past the wallet limit of 20.
	if _, err := engine.ValidateMint(nativeArgs(collection, 5, 2500)); !errors.Is(err, ErrWalletLimit) {
		t.Fatalf("expected ErrWalletLimit, got %v", err)
	}
}

func TestSetInviteValidation(t *testing.T) {
	engine, _, _ := testEngine(t)
	collection := testAddr(0xc0)
	if err := engine.RegisterCollection(ownerAddr, collection, baseConfig()); err != nil {
		t.Fatalf("register: %v", err)
	}

	invite := baseInvite()
	if err := engine.SetInvite(testAddr(0x66), collection, inviteKey1, invite); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	invite.End = 500 // before Start == 1000
	if err := engine.SetInvite(ownerAddr, collection, inviteKey1, invite); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}

	if err := engine.SetInvite(ownerAddr, collection, BurnCounterKey, baseInvite()); !errors.Is(err, ErrReservedInviteKey) {
		t.Fatalf("expected ErrReservedInviteKey, got %v", err)
	}
}

func TestSetInviteLockedAfterSettle(t *testing.T) {
	engine, _, _ := testEngine(t)
	collection := seedRound(t, engine, baseConfig(), baseInvite())

	if _, err := engine.Settle(SettleArgs{
		Collection:  collection,
		Key:         inviteKey1,
		Caller:      minterAddr,
		Quantity:    1,
		PaymentSent: big.NewInt(100),
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// The schedule is immutable once the round has settled supply.
	repriced := baseInvite()
	repriced.Price = big.NewInt(1)
	if err := engine.SetInvite(ownerAddr, collection, inviteKey1, repriced); !errors.Is(err, ErrInviteLocked) {
		t.Fatalf("expected ErrInviteLocked, got %v", err)
	}

	// A different key in the same collection stays writable.
	if err := engine.SetInvite(ownerAddr, collection, [32]byte{0x02}, baseInvite()); err != nil {
		t.Fatalf("fresh key must accept a schedule: %v", err)
	}
}

func TestRegisterCollectionValidation(t *testing.T) {
	engine, _, _ := testEngine(t)
	collection := testAddr(0xc0)

	cfg := baseConfig()
	cfg.PlatformFeeBps = MaxBps + 1
	if err := engine.RegisterCollection(ownerAddr, collection, cfg); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh, got %v", err)
	}

	cfg = baseConfig()
	cfg.Discounts.Tiers = []DiscountTier{{Threshold: 1, Bps: MaxBps + 1}}
	if err := engine.RegisterCollection(ownerAddr, collection, cfg); !errors.Is(err, ErrDiscountTooHigh) {
		t.Fatalf("expected ErrDiscountTooHigh, got %v", err)
	}

	if err := engine.RegisterCollection(ownerAddr, collection, baseConfig()); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Only the recorded owner may re-register.
	if err := engine.RegisterCollection(testAddr(0x66), collection, baseConfig()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
