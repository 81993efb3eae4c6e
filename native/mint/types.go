package mint

import "math/big"

// Basis point bounds shared by every fee and discount field.
const (
	// MaxBps caps all configurable fees and discounts at 50%.
	MaxBps = 5000
	// BpsDenominator converts basis points into a fraction.
	BpsDenominator = 10000
)

// BurnCounterKey is the reserved per-wallet counter key tracking burn-to-mint
// conversions. It never collides with invite keys because invites are stored
// under caller-chosen 32-byte identifiers and this value is reserved at
// registration time.
var BurnCounterKey = [32]byte{'b', 'u', 'r', 'n'}

// roundCounterWallet is the reserved wallet slot recording a round's settled
// supply. A non-zero count locks the invite's schedule against replacement.
var roundCounterWallet = [20]byte{'r', 'o', 'u', 'n', 'd'}

// Invite is the pricing schedule for a single minting round. It is immutable
// while the round has supply minted and may be replaced by the collection
// owner between rounds.
type Invite struct {
	// Price is the base price per token in the smallest denomination of the
	// payment asset.
	Price *big.Int `json:"price"`
	// ReservePrice bounds a dutch auction; only meaningful when Delta > 0.
	ReservePrice *big.Int `json:"reservePrice"`
	// Delta is the per-interval price change (dutch) or per-token price slope
	// (linear curve). Zero selects flat pricing.
	Delta *big.Int `json:"delta"`
	// Interval is the dutch auction step length in seconds. Zero with a
	// non-zero Delta selects the linear bonding curve.
	Interval int64 `json:"interval"`
	// Start is the unix time the round opens.
	Start int64 `json:"start"`
	// End is the unix time the round closes. Zero or any value not greater
	// than Start means the round never ends.
	End int64 `json:"end"`
	// WalletLimit caps cumulative mints per wallet for this round. Zero
	// pauses the round entirely.
	WalletLimit uint64 `json:"walletLimit"`
	// ListLimit caps total supply minted under this round.
	ListLimit uint64 `json:"listLimit"`
	// UnitSize is the number of tokens minted per purchased unit. Zero is
	// treated as one.
	UnitSize uint64 `json:"unitSize"`
	// PaymentAsset denominates the round. The zero address selects the
	// native currency.
	PaymentAsset [20]byte `json:"paymentAsset"`
	// DenyList flips the membership semantics: proven members are rejected
	// instead of required.
	DenyList bool `json:"denyList"`
}

// Clone returns a deep copy of the invite.
func (i *Invite) Clone() *Invite {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Price = copyBig(i.Price)
	clone.ReservePrice = copyBig(i.ReservePrice)
	clone.Delta = copyBig(i.Delta)
	return &clone
}

// Normalize replaces nil big.Int fields with zero so downstream arithmetic
// never dereferences nil.
func (i *Invite) Normalize() {
	if i == nil {
		return
	}
	if i.Price == nil {
		i.Price = big.NewInt(0)
	}
	if i.ReservePrice == nil {
		i.ReservePrice = big.NewInt(0)
	}
	if i.Delta == nil {
		i.Delta = big.NewInt(0)
	}
	if i.UnitSize == 0 {
		i.UnitSize = 1
	}
}

// DiscountTier grants a basis-point discount once a mint reaches the
// quantity threshold.
type DiscountTier struct {
	Threshold uint64 `json:"threshold"`
	Bps       uint32 `json:"bps"`
}

// DiscountSchedule bundles the affiliate discount with the volume tiers.
// Tiers are scanned in stored order and the first tier whose threshold is met
// wins; the list is not required to be sorted.
type DiscountSchedule struct {
	AffiliateBps uint32         `json:"affiliateBps"`
	Tiers        []DiscountTier `json:"tiers"`
}

// Clone returns a deep copy of the discount schedule.
func (d DiscountSchedule) Clone() DiscountSchedule {
	clone := DiscountSchedule{AffiliateBps: d.AffiliateBps}
	if len(d.Tiers) > 0 {
		clone.Tiers = append([]DiscountTier(nil), d.Tiers...)
	}
	return clone
}

// CollectionConfig captures the per-collection settlement parameters.
type CollectionConfig struct {
	Owner                [20]byte         `json:"owner"`
	MaxSupply            uint64           `json:"maxSupply"`
	MaxBatchSize         uint64           `json:"maxBatchSize"`
	AffiliateFeeBps      uint32           `json:"affiliateFeeBps"`
	PlatformFeeBps       uint32           `json:"platformFeeBps"`
	OwnerAltPayout       [20]byte         `json:"ownerAltPayout"`
	SuperAffiliatePayout [20]byte         `json:"superAffiliatePayout"`
	Discounts            DiscountSchedule `json:"discounts"`
}

// Clone returns a deep copy of the collection config.
func (c *CollectionConfig) Clone() *CollectionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Discounts = c.Discounts.Clone()
	return &clone
}

// MembershipProof carries an inclusion proof for the round's allow or deny
// list. Key doubles as the merkle root; reserved key values below 256 and the
// hash of the payment asset mark a round open to everyone.
type MembershipProof struct {
	Key   [32]byte   `json:"key"`
	Nodes [][32]byte `json:"nodes"`
}

// BurnConfig describes the burn-to-mint conversion path for a collection.
type BurnConfig struct {
	// Source is the collection whose tokens are consumed.
	Source [20]byte `json:"source"`
	// BurnAddress receives the consumed tokens.
	BurnAddress [20]byte `json:"burnAddress"`
	Enabled     bool     `json:"enabled"`
	// Ratio is the conversion rate. With Reversed unset the caller burns
	// Ratio tokens per mint; with Reversed set each burned token yields
	// Ratio mints.
	Ratio    uint64 `json:"ratio"`
	Reversed bool   `json:"reversed"`
	Start    int64  `json:"start"`
	// WalletLimit caps lifetime conversions per wallet.
	WalletLimit uint64 `json:"walletLimit"`
}

// OwnerBalance tracks accrued owner and platform shares for one collection
// and payment asset.
type OwnerBalance struct {
	Owner    *big.Int `json:"owner"`
	Platform *big.Int `json:"platform"`
}

// Clone returns a deep copy of the balance pair.
func (b *OwnerBalance) Clone() *OwnerBalance {
	if b == nil {
		return nil
	}
	return &OwnerBalance{Owner: copyBig(b.Owner), Platform: copyBig(b.Platform)}
}

func newOwnerBalance() *OwnerBalance {
	return &OwnerBalance{Owner: big.NewInt(0), Platform: big.NewInt(0)}
}

// MintArgs carries one mint request through validation.
type MintArgs struct {
	Collection [20]byte
	Key        [32]byte
	// Caller is the raw transaction sender. Origin is the original
	// transaction initiator, honoured only when Caller is the trusted relay.
	Caller    [20]byte
	Origin    [20]byte
	Affiliate [20]byte
	Signature []byte
	Proof     *MembershipProof
	// Quantity is the number of units requested; tokens minted is
	// Quantity multiplied by the invite's UnitSize.
	Quantity uint64
	// RoundSupply is the supply already minted under this invite key.
	RoundSupply uint64
	// TotalSupply is the collection-wide minted supply.
	TotalSupply uint64
	// PaymentSent is the native value attached to the request.
	PaymentSent *big.Int
}

// SettleArgs carries a post-mint settlement request.
type SettleArgs struct {
	Collection  [20]byte
	Key         [32]byte
	Caller      [20]byte
	Origin      [20]byte
	Affiliate   [20]byte
	Quantity    uint64
	RoundSupply uint64
	PaymentSent *big.Int
}

// BurnArgs carries a burn-to-mint conversion request through validation.
type BurnArgs struct {
	Collection  [20]byte
	Caller      [20]byte
	Origin      [20]byte
	TokenIDs    []*big.Int
	TotalSupply uint64
}

// Settlement reports how one settled value was apportioned.
type Settlement struct {
	Asset             [20]byte `json:"asset"`
	Value             *big.Int `json:"value"`
	OwnerCut          *big.Int `json:"ownerCut"`
	PlatformCut       *big.Int `json:"platformCut"`
	AffiliateCut      *big.Int `json:"affiliateCut"`
	SuperAffiliateCut *big.Int `json:"superAffiliateCut"`
}

// Withdrawal reports one paid-out balance bucket.
type Withdrawal struct {
	Asset     [20]byte `json:"asset"`
	Amount    *big.Int `json:"amount"`
	Recipient [20]byte `json:"recipient"`
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
