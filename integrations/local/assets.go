// Package local provides in-process implementations of the external asset
// ledger and token registry collaborators. They back development deployments
// and tests; production deployments substitute adapters for the real chain.
package local

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the balance.
	ErrInsufficientFunds = errors.New("local assets: insufficient funds")
	// ErrInsufficientAllowance is returned when a pull exceeds the approval.
	ErrInsufficientAllowance = errors.New("local assets: insufficient allowance")
)

type assetKey struct {
	asset [20]byte
	owner [20]byte
}

type allowanceKey struct {
	asset   [20]byte
	owner   [20]byte
	spender [20]byte
}

// AssetLedger is an in-memory balance and allowance book satisfying the
// engine's AssetTransfer interface. The zero asset address models the native
// currency; allowances on it are never consulted by the engine.
type AssetLedger struct {
	mu         sync.Mutex
	balances   map[assetKey]*big.Int
	allowances map[allowanceKey]*big.Int
}

// NewAssetLedger constructs an empty ledger.
func NewAssetLedger() *AssetLedger {
	return &AssetLedger{
		balances:   make(map[assetKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// Credit mints funds into an account. Test and development helper.
func (l *AssetLedger) Credit(asset [20]byte, owner [20]byte, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := assetKey{asset: asset, owner: owner}
	current := l.balances[key]
	if current == nil {
		current = big.NewInt(0)
	}
	l.balances[key] = new(big.Int).Add(current, amount)
}

// Approve grants spender a pull allowance over owner's funds.
func (l *AssetLedger) Approve(asset [20]byte, owner [20]byte, spender [20]byte, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{asset: asset, owner: owner, spender: spender}] = new(big.Int).Set(amount)
}

// Allowance reports the remaining pull approval.
func (l *AssetLedger) Allowance(asset [20]byte, owner [20]byte, spender [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.allowances[allowanceKey{asset: asset, owner: owner, spender: spender}]
	if current == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// BalanceOf reports the owner's balance for the asset.
func (l *AssetLedger) BalanceOf(asset [20]byte, owner [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.balances[assetKey{asset: asset, owner: owner}]
	if current == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// TransferFrom pulls funds from owner to recipient, consuming allowance.
func (l *AssetLedger) TransferFrom(asset [20]byte, from [20]byte, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	akey := allowanceKey{asset: asset, owner: from, spender: to}
	allowance := l.allowances[akey]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(asset, from, to, amount); err != nil {
		return err
	}
	l.allowances[akey] = new(big.Int).Sub(allowance, amount)
	return nil
}

// Transfer pushes funds from the ledger's pooled custody to the recipient.
// Withdrawal payouts arrive here after settlement pulled funds in.
func (l *AssetLedger) Transfer(asset [20]byte, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := assetKey{asset: asset, owner: to}
	current := l.balances[key]
	if current == nil {
		current = big.NewInt(0)
	}
	l.balances[key] = new(big.Int).Add(current, amount)
	return nil
}

func (l *AssetLedger) move(asset [20]byte, from [20]byte, to [20]byte, amount *big.Int) error {
	fromKey := assetKey{asset: asset, owner: from}
	balance := l.balances[fromKey]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	l.balances[fromKey] = new(big.Int).Sub(balance, amount)
	toKey := assetKey{asset: asset, owner: to}
	current := l.balances[toKey]
	if current == nil {
		current = big.NewInt(0)
	}
	l.balances[toKey] = new(big.Int).Add(current, amount)
	return nil
}
