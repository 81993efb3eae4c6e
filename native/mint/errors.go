package mint

import "errors"

// Configuration and wiring errors.
var (
	ErrNilState          = errors.New("mint: state not configured")
	ErrNilAssetBackend   = errors.New("mint: asset backend not configured")
	ErrNilTokenBackend   = errors.New("mint: token registry not configured")
	ErrUnknownCollection = errors.New("mint: collection not registered")
	ErrUnknownInvite     = errors.New("mint: invite not found")
	ErrUnauthorized      = errors.New("mint: caller is not the collection owner")
	ErrFeeTooHigh        = errors.New("mint: fee bps exceeds maximum")
	ErrDiscountTooHigh   = errors.New("mint: discount bps exceeds maximum")
	ErrInvalidSchedule   = errors.New("mint: invite end precedes start")
	ErrInviteLocked      = errors.New("mint: invite has minted supply")
	ErrInvalidCollection = errors.New("mint: invalid collection config")
	ErrReservedInviteKey = errors.New("mint: invite key is reserved")
)

// Authorization errors.
var (
	ErrSelfReferral       = errors.New("mint: affiliate self-referral")
	ErrInvalidSignature   = errors.New("mint: invalid affiliate signature")
	ErrWalletUnauthorized = errors.New("mint: wallet not on allowlist")
	ErrWalletBlacklisted  = errors.New("mint: wallet is blacklisted")
)

// Timing errors.
var (
	ErrMintNotStarted = errors.New("mint: round not started")
	ErrMintEnded      = errors.New("mint: round ended")
	ErrMintingPaused  = errors.New("mint: round paused")
	ErrBurnDisabled   = errors.New("mint: burn conversion disabled")
	ErrBurnNotStarted = errors.New("mint: burn conversion not started")
)

// Capacity errors.
var (
	ErrInvalidQuantity  = errors.New("mint: quantity must be positive")
	ErrQuantityOverflow = errors.New("mint: quantity overflow")
	ErrWalletLimit      = errors.New("mint: wallet limit exceeded")
	ErrListSupply       = errors.New("mint: round supply cap exceeded")
	ErrMaxBatch         = errors.New("mint: batch size cap exceeded")
	ErrMaxSupply        = errors.New("mint: collection supply cap exceeded")
)

// Payment errors.
var (
	ErrPriceOverflow         = errors.New("mint: price arithmetic overflow")
	ErrInsufficientPayment   = errors.New("mint: insufficient payment")
	ErrExcessPayment         = errors.New("mint: excess payment")
	ErrInsufficientAllowance = errors.New("mint: insufficient allowance")
	ErrInsufficientBalance   = errors.New("mint: insufficient balance")
	ErrNativeNotAccepted     = errors.New("mint: native value sent on asset round")
)

// Burn conversion errors.
var (
	ErrNotTokenOwner    = errors.New("mint: caller does not own token")
	ErrNotApproved      = errors.New("mint: transfer approval missing")
	ErrInvalidBurnRatio = errors.New("mint: token count not divisible by ratio")
)

// Operational errors.
var (
	ErrBalanceEmpty   = errors.New("mint: no balance to withdraw")
	ErrTransferFailed = errors.New("mint: fund transfer failed")
)
