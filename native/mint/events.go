package mint

import (
	"math/big"

	"mintgate/core/events"
	"mintgate/core/types"
)

const (
	// EventTypeInvited is emitted when a minting round is published.
	EventTypeInvited = "mint.invited"
	// EventTypeReferral is emitted when an affiliate share accrues.
	EventTypeReferral = "mint.referral"
	// EventTypeWithdrawal is emitted when a balance bucket is paid out.
	EventTypeWithdrawal = "mint.withdrawal"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// InvitedEvent announces a freshly published minting round.
func InvitedEvent(key [32]byte, collection [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeInvited,
		Attributes: map[string]string{
			"key":        keyString(key),
			"collection": addrString(collection),
		},
	}
}

// ReferralEvent records an affiliate share accrual.
func ReferralEvent(affiliate [20]byte, asset [20]byte, amount *big.Int, quantity uint64) *types.Event {
	return &types.Event{
		Type: EventTypeReferral,
		Attributes: map[string]string{
			"affiliate": addrString(affiliate),
			"asset":     addrString(asset),
			"amount":    copyBig(amount).String(),
			"quantity":  new(big.Int).SetUint64(quantity).String(),
		},
	}
}

// WithdrawalEvent records a balance bucket payout.
func WithdrawalEvent(claimant [20]byte, asset [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawal,
		Attributes: map[string]string{
			"claimant": addrString(claimant),
			"asset":    addrString(asset),
			"amount":   copyBig(amount).String(),
		},
	}
}
