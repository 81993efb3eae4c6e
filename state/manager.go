package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"mintgate/native/mint"
	"mintgate/storage"
)

// Manager maps the engine's keyed stores onto a flat key-value database.
// Records are stored as JSON with big integers rendered as decimal strings
// and addresses as hex, so snapshots stay portable across backends.
type Manager struct {
	db storage.Database
}

// NewManager constructs a manager bound to the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var _ mint.EngineState = (*Manager)(nil)

type storedInvite struct {
	Price        string `json:"price"`
	ReservePrice string `json:"reservePrice"`
	Delta        string `json:"delta"`
	Interval     int64  `json:"interval"`
	Start        int64  `json:"start"`
	End          int64  `json:"end"`
	WalletLimit  uint64 `json:"walletLimit"`
	ListLimit    uint64 `json:"listLimit"`
	UnitSize     uint64 `json:"unitSize"`
	PaymentAsset string `json:"paymentAsset"`
	DenyList     bool   `json:"denyList"`
}

type storedTier struct {
	Threshold uint64 `json:"threshold"`
	Bps       uint32 `json:"bps"`
}

type storedCollection struct {
	Owner                string       `json:"owner"`
	MaxSupply            uint64       `json:"maxSupply"`
	MaxBatchSize         uint64       `json:"maxBatchSize"`
	AffiliateFeeBps      uint32       `json:"affiliateFeeBps"`
	PlatformFeeBps       uint32       `json:"platformFeeBps"`
	OwnerAltPayout       string       `json:"ownerAltPayout"`
	SuperAffiliatePayout string       `json:"superAffiliatePayout"`
	AffiliateDiscountBps uint32       `json:"affiliateDiscountBps"`
	Tiers                []storedTier `json:"tiers"`
}

type storedBurnConfig struct {
	Source      string `json:"source"`
	BurnAddress string `json:"burnAddress"`
	Enabled     bool   `json:"enabled"`
	Ratio       uint64 `json:"ratio"`
	Reversed    bool   `json:"reversed"`
	Start       int64  `json:"start"`
	WalletLimit uint64 `json:"walletLimit"`
}

type storedOwnerBalance struct {
	Owner    string `json:"owner"`
	Platform string `json:"platform"`
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", string(key), err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", string(key), err)
	}
	return m.db.Put(key, raw)
}

// InviteGet loads the pricing schedule stored under (collection, key).
func (m *Manager) InviteGet(collection [20]byte, key [32]byte) (*mint.Invite, bool, error) {
	var stored storedInvite
	ok, err := m.get(inviteKey(collection, key), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	price, err := parseAmount(stored.Price)
	if err != nil {
		return nil, false, err
	}
	reserve, err := parseAmount(stored.ReservePrice)
	if err != nil {
		return nil, false, err
	}
	delta, err := parseAmount(stored.Delta)
	if err != nil {
		return nil, false, err
	}
	asset, err := parseAddress(stored.PaymentAsset)
	if err != nil {
		return nil, false, err
	}
	return &mint.Invite{
		Price:        price,
		ReservePrice: reserve,
		Delta:        delta,
		Interval:     stored.Interval,
		Start:        stored.Start,
		End:          stored.End,
		WalletLimit:  stored.WalletLimit,
		ListLimit:    stored.ListLimit,
		UnitSize:     stored.UnitSize,
		PaymentAsset: asset,
		DenyList:     stored.DenyList,
	}, true, nil
}

// InvitePut persists the pricing schedule under (collection, key).
func (m *Manager) InvitePut(collection [20]byte, key [32]byte, invite *mint.Invite) error {
	if invite == nil {
		return fmt.Errorf("state: nil invite")
	}
	stored := storedInvite{
		Price:        formatAmount(invite.Price),
		ReservePrice: formatAmount(invite.ReservePrice),
		Delta:        formatAmount(invite.Delta),
		Interval:     invite.Interval,
		Start:        invite.Start,
		End:          invite.End,
		WalletLimit:  invite.WalletLimit,
		ListLimit:    invite.ListLimit,
		UnitSize:     invite.UnitSize,
		PaymentAsset: formatAddress(invite.PaymentAsset),
		DenyList:     invite.DenyList,
	}
	return m.put(inviteKey(collection, key), stored)
}

// CollectionGet loads the settlement configuration for a collection.
func (m *Manager) CollectionGet(collection [20]byte) (*mint.CollectionConfig, bool, error) {
	var stored storedCollection
	ok, err := m.get(collectionKey(collection), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	owner, err := parseAddress(stored.Owner)
	if err != nil {
		return nil, false, err
	}
	altPayout, err := parseAddress(stored.OwnerAltPayout)
	if err != nil {
		return nil, false, err
	}
	superAffiliate, err := parseAddress(stored.SuperAffiliatePayout)
	if err != nil {
		return nil, false, err
	}
	cfg := &mint.CollectionConfig{
		Owner:                owner,
		MaxSupply:            stored.MaxSupply,
		MaxBatchSize:         stored.MaxBatchSize,
		AffiliateFeeBps:      stored.AffiliateFeeBps,
		PlatformFeeBps:       stored.PlatformFeeBps,
		OwnerAltPayout:       altPayout,
		SuperAffiliatePayout: superAffiliate,
		Discounts: mint.DiscountSchedule{
			AffiliateBps: stored.AffiliateDiscountBps,
		},
	}
	for _, tier := range stored.Tiers {
		cfg.Discounts.Tiers = append(cfg.Discounts.Tiers, mint.DiscountTier{Threshold: tier.Threshold, Bps: tier.Bps})
	}
	return cfg, true, nil
}

// CollectionPut persists the settlement configuration for a collection.
func (m *Manager) CollectionPut(collection [20]byte, cfg *mint.CollectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil collection config")
	}
	stored := storedCollection{
		Owner:                formatAddress(cfg.Owner),
		MaxSupply:            cfg.MaxSupply,
		MaxBatchSize:         cfg.MaxBatchSize,
		AffiliateFeeBps:      cfg.AffiliateFeeBps,
		PlatformFeeBps:       cfg.PlatformFeeBps,
		OwnerAltPayout:       formatAddress(cfg.OwnerAltPayout),
		SuperAffiliatePayout: formatAddress(cfg.SuperAffiliatePayout),
		AffiliateDiscountBps: cfg.Discounts.AffiliateBps,
	}
	for _, tier := range cfg.Discounts.Tiers {
		stored.Tiers = append(stored.Tiers, storedTier{Threshold: tier.Threshold, Bps: tier.Bps})
	}
	return m.put(collectionKey(collection), stored)
}

// BurnConfigGet loads the burn-to-mint path for a collection.
func (m *Manager) BurnConfigGet(collection [20]byte) (*mint.BurnConfig, bool, error) {
	var stored storedBurnConfig
	ok, err := m.get(burnConfigKey(collection), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	source, err := parseAddress(stored.Source)
	if err != nil {
		return nil, false, err
	}
	burnAddr, err := parseAddress(stored.BurnAddress)
	if err != nil {
		return nil, false, err
	}
	return &mint.BurnConfig{
		Source:      source,
		BurnAddress: burnAddr,
		Enabled:     stored.Enabled,
		Ratio:       stored.Ratio,
		Reversed:    stored.Reversed,
		Start:       stored.Start,
		WalletLimit: stored.WalletLimit,
	}, true, nil
}

// BurnConfigPut persists the burn-to-mint path for a collection.
func (m *Manager) BurnConfigPut(collection [20]byte, cfg *mint.BurnConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil burn config")
	}
	stored := storedBurnConfig{
		Source:      formatAddress(cfg.Source),
		BurnAddress: formatAddress(cfg.BurnAddress),
		Enabled:     cfg.Enabled,
		Ratio:       cfg.Ratio,
		Reversed:    cfg.Reversed,
		Start:       cfg.Start,
		WalletLimit: cfg.WalletLimit,
	}
	return m.put(burnConfigKey(collection), stored)
}

// MintedGet returns the cumulative counter for (collection, wallet, key).
// Missing counters read as zero.
func (m *Manager) MintedGet(collection [20]byte, wallet [20]byte, key [32]byte) (uint64, error) {
	raw, err := m.db.Get(mintedKey(collection, wallet, key))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("state: decode minted counter: %w", err)
	}
	return value, nil
}

// MintedPut stores the cumulative counter for (collection, wallet, key).
func (m *Manager) MintedPut(collection [20]byte, wallet [20]byte, key [32]byte, total uint64) error {
	return m.db.Put(mintedKey(collection, wallet, key), []byte(strconv.FormatUint(total, 10)))
}

// OwnerBalanceGet loads the owner/platform buckets for (collection, asset).
func (m *Manager) OwnerBalanceGet(collection [20]byte, asset [20]byte) (*mint.OwnerBalance, bool, error) {
	var stored storedOwnerBalance
	ok, err := m.get(ownerBalanceKey(collection, asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	owner, err := parseAmount(stored.Owner)
	if err != nil {
		return nil, false, err
	}
	platform, err := parseAmount(stored.Platform)
	if err != nil {
		return nil, false, err
	}
	return &mint.OwnerBalance{Owner: owner, Platform: platform}, true, nil
}

// OwnerBalancePut persists the owner/platform buckets for (collection, asset).
func (m *Manager) OwnerBalancePut(collection [20]byte, asset [20]byte, balance *mint.OwnerBalance) error {
	if balance == nil {
		return fmt.Errorf("state: nil owner balance")
	}
	stored := storedOwnerBalance{
		Owner:    formatAmount(balance.Owner),
		Platform: formatAmount(balance.Platform),
	}
	return m.put(ownerBalanceKey(collection, asset), stored)
}

// AffiliateBalanceGet loads the accrued amount for (affiliate, asset).
func (m *Manager) AffiliateBalanceGet(affiliate [20]byte, asset [20]byte) (*big.Int, bool, error) {
	raw, err := m.db.Get(affiliateBalanceKey(affiliate, asset))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	amount, err := parseAmount(string(raw))
	if err != nil {
		return nil, false, err
	}
	return amount, true, nil
}

// AffiliateBalancePut persists the accrued amount for (affiliate, asset).
func (m *Manager) AffiliateBalancePut(affiliate [20]byte, asset [20]byte, amount *big.Int) error {
	return m.db.Put(affiliateBalanceKey(affiliate, asset), []byte(formatAmount(amount)))
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid amount %q", s)
	}
	return value, nil
}

func formatAddress(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func parseAddress(s string) ([20]byte, error) {
	var out [20]byte
	if s == "" {
		return out, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("state: invalid address %q", s)
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("state: invalid address length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
