package mint

import (
	"encoding/hex"
	"math"
	"math/big"
	"time"

	"mintgate/core/events"
	"mintgate/core/types"
	"mintgate/crypto"
)

// EngineState is the keyed-store surface the engine mutates. Implementations
// must apply every mutation within one engine call atomically with respect to
// other calls; the engine itself performs no locking.
type EngineState interface {
	InviteGet(collection [20]byte, key [32]byte) (*Invite, bool, error)
	InvitePut(collection [20]byte, key [32]byte, invite *Invite) error
	CollectionGet(collection [20]byte) (*CollectionConfig, bool, error)
	CollectionPut(collection [20]byte, cfg *CollectionConfig) error
	BurnConfigGet(collection [20]byte) (*BurnConfig, bool, error)
	BurnConfigPut(collection [20]byte, cfg *BurnConfig) error
	MintedGet(collection [20]byte, wallet [20]byte, key [32]byte) (uint64, error)
	MintedPut(collection [20]byte, wallet [20]byte, key [32]byte, total uint64) error
	OwnerBalanceGet(collection [20]byte, asset [20]byte) (*OwnerBalance, bool, error)
	OwnerBalancePut(collection [20]byte, asset [20]byte, balance *OwnerBalance) error
	AffiliateBalanceGet(affiliate [20]byte, asset [20]byte) (*big.Int, bool, error)
	AffiliateBalancePut(affiliate [20]byte, asset [20]byte, amount *big.Int) error
}

// TokenOwnership is the external token registry consulted for burn-to-mint.
type TokenOwnership interface {
	OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error)
	IsApprovedForAll(collection [20]byte, owner [20]byte, operator [20]byte) (bool, error)
}

// AssetTransfer is the external asset ledger used for ERC-20 style rounds and
// for paying out withdrawals. The zero asset address denotes the native
// currency; Allowance, BalanceOf and TransferFrom are never called for it.
type AssetTransfer interface {
	Allowance(asset [20]byte, owner [20]byte, spender [20]byte) (*big.Int, error)
	BalanceOf(asset [20]byte, owner [20]byte) (*big.Int, error)
	TransferFrom(asset [20]byte, from [20]byte, to [20]byte, amount *big.Int) error
	Transfer(asset [20]byte, to [20]byte, amount *big.Int) error
}

// Engine wires mint admission, pricing and settlement with persistence and
// event emission.
type Engine struct {
	state   EngineState
	emitter events.Emitter
	nowFn   func() int64

	platform [20]byte
	relay    [20]byte
	signer   [20]byte
	vault    [20]byte

	tokens TokenOwnership
	assets AssetTransfer
}

// NewEngine constructs a mint engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPlatformAddress configures the platform fee account.
func (e *Engine) SetPlatformAddress(addr [20]byte) { e.platform = addr }

// SetRelayAddress configures the trusted batch relay whose calls carry the
// original transaction sender as the effective caller.
func (e *Engine) SetRelayAddress(addr [20]byte) { e.relay = addr }

// SetAffiliateSigner configures the key that must countersign affiliates.
func (e *Engine) SetAffiliateSigner(addr [20]byte) { e.signer = addr }

// SetVault configures the custody account asset payments are pulled into.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetTokenOwnership configures the external token registry.
func (e *Engine) SetTokenOwnership(tokens TokenOwnership) { e.tokens = tokens }

// SetAssetTransfer configures the external asset ledger.
func (e *Engine) SetAssetTransfer(assets AssetTransfer) { e.assets = assets }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// EffectiveCaller resolves the account a request acts for. Calls from the
// trusted relay are attributed to the original transaction sender; everything
// else acts as itself.
func (e *Engine) EffectiveCaller(raw [20]byte, origin [20]byte) [20]byte {
	if !isZeroAddress(e.relay) && raw == e.relay && !isZeroAddress(origin) {
		return origin
	}
	return raw
}

// RegisterCollection stores the settlement configuration for a collection.
// Re-registration is restricted to the current owner.
func (e *Engine) RegisterCollection(caller [20]byte, collection [20]byte, cfg *CollectionConfig) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if cfg == nil || isZeroAddress(cfg.Owner) || cfg.MaxSupply == 0 {
		return ErrInvalidCollection
	}
	if cfg.AffiliateFeeBps > MaxBps || cfg.PlatformFeeBps > MaxBps {
		return ErrFeeTooHigh
	}
	if cfg.Discounts.AffiliateBps > MaxBps {
		return ErrDiscountTooHigh
	}
	for _, tier := range cfg.Discounts.Tiers {
		if tier.Bps > MaxBps {
			return ErrDiscountTooHigh
		}
	}
	existing, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return err
	}
	if ok && existing != nil && existing.Owner != caller {
		return ErrUnauthorized
	}
	return e.state.CollectionPut(collection, cfg.Clone())
}

// SetInvite stores the pricing schedule for one minting round and announces
// it. Only the collection owner may call; a round that already minted supply
// is immutable.
func (e *Engine) SetInvite(caller [20]byte, collection [20]byte, key [32]byte, invite *Invite) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if invite == nil {
		return ErrInvalidSchedule
	}
	if key == BurnCounterKey {
		return ErrReservedInviteKey
	}
	cfg, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return err
	}
	if !ok || cfg == nil {
		return ErrUnknownCollection
	}
	if cfg.Owner != caller {
		return ErrUnauthorized
	}
	settled, err := e.state.MintedGet(collection, roundCounterWallet, key)
	if err != nil {
		return err
	}
	if settled > 0 {
		return ErrInviteLocked
	}
	if invite.End != 0 && invite.End <= invite.Start {
		return ErrInvalidSchedule
	}
	if isNegative(invite.Price) || isNegative(invite.Delta) || isNegative(invite.ReservePrice) {
		return ErrInvalidSchedule
	}
	stored := invite.Clone()
	stored.Normalize()
	if err := e.state.InvitePut(collection, key, stored); err != nil {
		return err
	}
	e.emit(InvitedEvent(key, collection))
	return nil
}

// SetBurnConfig stores the burn-to-mint conversion path for a collection.
// Only the collection owner may call.
func (e *Engine) SetBurnConfig(caller [20]byte, collection [20]byte, burn *BurnConfig) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if burn == nil || burn.Ratio == 0 {
		return ErrInvalidCollection
	}
	cfg, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return err
	}
	if !ok || cfg == nil {
		return ErrUnknownCollection
	}
	if cfg.Owner != caller {
		return ErrUnauthorized
	}
	clone := *burn
	return e.state.BurnConfigPut(collection, &clone)
}

// Quote prices a prospective mint without any admission checks.
func (e *Engine) Quote(collection [20]byte, key [32]byte, quantity uint64, roundSupply uint64, affiliateUsed bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	invite, cfg, err := e.loadRound(collection, key)
	if err != nil {
		return nil, err
	}
	tokens, err := tokensOf(quantity, invite.UnitSize)
	if err != nil {
		return nil, err
	}
	return ComputePrice(invite, cfg.Discounts, tokens, roundSupply, affiliateUsed, e.now())
}

// ValidateMint runs the full admission pipeline for a mint request and
// returns the exact cost the caller must settle. Checks run in a fixed order
// and the first failure wins; nothing is mutated on any path.
func (e *Engine) ValidateMint(args MintArgs) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if args.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	invite, cfg, err := e.loadRound(args.Collection, args.Key)
	if err != nil {
		return nil, err
	}
	caller := e.EffectiveCaller(args.Caller, args.Origin)
	now := e.now()

	if !isZeroAddress(args.Affiliate) {
		if args.Affiliate == e.platform || args.Affiliate == cfg.Owner || args.Affiliate == caller {
			return nil, ErrSelfReferral
		}
		if err := VerifyAffiliateSignature(args.Affiliate, args.Signature, e.signer); err != nil {
			return nil, err
		}
	}
	if invite.WalletLimit == 0 {
		return nil, ErrMintingPaused
	}
	member := VerifyMembership(args.Proof, invite.PaymentAsset, caller)
	if invite.DenyList {
		if member {
			return nil, ErrWalletBlacklisted
		}
	} else if !member {
		return nil, ErrWalletUnauthorized
	}
	if now < invite.Start {
		return nil, ErrMintNotStarted
	}
	if invite.End > invite.Start && now > invite.End {
		return nil, ErrMintEnded
	}
	tokens, err := tokensOf(args.Quantity, invite.UnitSize)
	if err != nil {
		return nil, err
	}
	if invite.WalletLimit < cfg.MaxSupply {
		minted, err := e.state.MintedGet(args.Collection, caller, args.Key)
		if err != nil {
			return nil, err
		}
		if minted+tokens > invite.WalletLimit || minted+tokens < minted {
			return nil, ErrWalletLimit
		}
	}
	if invite.ListLimit < cfg.MaxSupply {
		if args.RoundSupply+tokens > invite.ListLimit || args.RoundSupply+tokens < args.RoundSupply {
			return nil, ErrListSupply
		}
	}
	if tokens > cfg.MaxBatchSize {
		return nil, ErrMaxBatch
	}
	if args.TotalSupply+tokens > cfg.MaxSupply || args.TotalSupply+tokens < args.TotalSupply {
		return nil, ErrMaxSupply
	}

	cost, err := ComputePrice(invite, cfg.Discounts, tokens, args.RoundSupply, !isZeroAddress(args.Affiliate), now)
	if err != nil {
		return nil, err
	}
	if err := e.checkPayment(invite.PaymentAsset, caller, cost, args.PaymentSent); err != nil {
		return nil, err
	}
	return cost, nil
}

func (e *Engine) checkPayment(asset [20]byte, payer [20]byte, cost *big.Int, sent *big.Int) error {
	if !isZeroAddress(asset) {
		if e.assets == nil {
			return ErrNilAssetBackend
		}
		allowance, err := e.assets.Allowance(asset, payer, e.vault)
		if err != nil {
			return err
		}
		if allowance == nil || allowance.Cmp(cost) < 0 {
			return ErrInsufficientAllowance
		}
		balance, err := e.assets.BalanceOf(asset, payer)
		if err != nil {
			return err
		}
		if balance == nil || balance.Cmp(cost) < 0 {
			return ErrInsufficientBalance
		}
		if sent != nil && sent.Sign() > 0 {
			return ErrNativeNotAccepted
		}
		return nil
	}
	attached := big.NewInt(0)
	if sent != nil {
		attached = sent
	}
	switch attached.Cmp(cost) {
	case -1:
		return ErrInsufficientPayment
	case 1:
		return ErrExcessPayment
	}
	return nil
}

// MintedOf returns the cumulative tokens minted by wallet under the invite
// key. The burn counter is exposed through the reserved BurnCounterKey.
func (e *Engine) MintedOf(collection [20]byte, wallet [20]byte, key [32]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.MintedGet(collection, wallet, key)
}

func (e *Engine) loadRound(collection [20]byte, key [32]byte) (*Invite, *CollectionConfig, error) {
	cfg, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return nil, nil, err
	}
	if !ok || cfg == nil {
		return nil, nil, ErrUnknownCollection
	}
	invite, ok, err := e.state.InviteGet(collection, key)
	if err != nil {
		return nil, nil, err
	}
	if !ok || invite == nil {
		return nil, nil, ErrUnknownInvite
	}
	invite.Normalize()
	return invite, cfg, nil
}

// tokensOf converts purchased units into minted tokens, guarding the
// multiplication against wrap.
func tokensOf(quantity uint64, unitSize uint64) (uint64, error) {
	if unitSize <= 1 {
		return quantity, nil
	}
	if quantity > math.MaxUint64/unitSize {
		return 0, ErrQuantityOverflow
	}
	return quantity * unitSize, nil
}

func addrString(addr [20]byte) string {
	a, err := crypto.NewAddress(crypto.MintPrefix, addr[:])
	if err != nil {
		return "0x" + hex.EncodeToString(addr[:])
	}
	return a.String()
}

func keyString(key [32]byte) string {
	return "0x" + hex.EncodeToString(key[:])
}
