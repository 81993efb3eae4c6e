package local

import (
	"errors"
	"math/big"
	"sync"
)

// ErrUnknownToken is returned when a token id has no recorded owner.
var ErrUnknownToken = errors.New("local tokens: unknown token")

type tokenKey struct {
	collection [20]byte
	id         string
}

type operatorKey struct {
	collection [20]byte
	owner      [20]byte
	operator   [20]byte
}

// TokenRegistry is an in-memory token ownership book satisfying the engine's
// TokenOwnership interface.
type TokenRegistry struct {
	mu        sync.Mutex
	owners    map[tokenKey][20]byte
	operators map[operatorKey]bool
}

// NewTokenRegistry constructs an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		owners:    make(map[tokenKey][20]byte),
		operators: make(map[operatorKey]bool),
	}
}

// SetOwner records token ownership. Test and development helper.
func (r *TokenRegistry) SetOwner(collection [20]byte, id *big.Int, owner [20]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[tokenKey{collection: collection, id: id.String()}] = owner
}

// SetApprovalForAll records a blanket operator approval.
func (r *TokenRegistry) SetApprovalForAll(collection [20]byte, owner [20]byte, operator [20]byte, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[operatorKey{collection: collection, owner: owner, operator: operator}] = approved
}

// OwnerOf returns the recorded owner of a token.
func (r *TokenRegistry) OwnerOf(collection [20]byte, id *big.Int) ([20]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[tokenKey{collection: collection, id: id.String()}]
	if !ok {
		return [20]byte{}, ErrUnknownToken
	}
	return owner, nil
}

// IsApprovedForAll reports whether operator holds a blanket approval.
func (r *TokenRegistry) IsApprovedForAll(collection [20]byte, owner [20]byte, operator [20]byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operators[operatorKey{collection: collection, owner: owner, operator: operator}], nil
}
