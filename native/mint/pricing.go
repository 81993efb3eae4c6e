package mint

import (
	"math/big"

	"github.com/holiman/uint256"
)

// ComputePrice returns the total cost of minting numTokens under the invite,
// evaluated at the supplied unix time. Pricing mode is selected by the
// (Interval, Delta) pair: a positive interval with a positive delta is a dutch
// auction stepping toward the reserve price, a zero interval with a positive
// delta is a linear bonding curve over the round supply, and a zero delta is
// flat pricing. The affiliate discount applies first, then the first volume
// tier (in stored list order) whose threshold is met. All arithmetic is
// overflow-checked; any overflow rejects the mint rather than wrapping.
func ComputePrice(inv *Invite, discounts DiscountSchedule, numTokens uint64, roundSupply uint64, affiliateUsed bool, now int64) (*big.Int, error) {
	if inv == nil {
		return nil, ErrUnknownInvite
	}
	if isNegative(inv.Price) || isNegative(inv.Delta) || isNegative(inv.ReservePrice) {
		return nil, ErrPriceOverflow
	}
	price, overflow := uint256.FromBig(bigOrZero(inv.Price))
	if overflow {
		return nil, ErrPriceOverflow
	}
	delta, overflow := uint256.FromBig(bigOrZero(inv.Delta))
	if overflow {
		return nil, ErrPriceOverflow
	}
	quantity := uint256.NewInt(numTokens)

	var cost *uint256.Int
	switch {
	case delta.IsZero():
		unit, ovf := new(uint256.Int).MulOverflow(price, quantity)
		if ovf {
			return nil, ErrPriceOverflow
		}
		cost = unit
	case inv.Interval > 0:
		unit, err := dutchUnitPrice(inv, price, delta, now)
		if err != nil {
			return nil, err
		}
		total, ovf := new(uint256.Int).MulOverflow(unit, quantity)
		if ovf {
			return nil, ErrPriceOverflow
		}
		cost = total
	default:
		total, err := curveCost(price, delta, quantity, uint256.NewInt(roundSupply))
		if err != nil {
			return nil, err
		}
		cost = total
	}

	if affiliateUsed && discounts.AffiliateBps > 0 {
		cost = applyDiscount(cost, uint64(discounts.AffiliateBps))
	}
	for _, tier := range discounts.Tiers {
		if numTokens >= tier.Threshold {
			cost = applyDiscount(cost, uint64(tier.Bps))
			break
		}
	}
	return cost.ToBig(), nil
}

// dutchUnitPrice walks the auction price toward the reserve, clamping so the
// price never crosses the reserve boundary in either direction.
func dutchUnitPrice(inv *Invite, price, delta *uint256.Int, now int64) (*uint256.Int, error) {
	reserve, overflow := uint256.FromBig(bigOrZero(inv.ReservePrice))
	if overflow {
		return nil, ErrPriceOverflow
	}
	var elapsed uint64
	if now > inv.Start {
		elapsed = uint64(now-inv.Start) / uint64(inv.Interval)
	}
	shift, ovf := new(uint256.Int).MulOverflow(delta, uint256.NewInt(elapsed))
	if ovf {
		return nil, ErrPriceOverflow
	}
	switch price.Cmp(reserve) {
	case 1:
		headroom := new(uint256.Int).Sub(price, reserve)
		if shift.Cmp(headroom) >= 0 {
			return reserve.Clone(), nil
		}
		return new(uint256.Int).Sub(price, shift), nil
	case -1:
		headroom := new(uint256.Int).Sub(reserve, price)
		if shift.Cmp(headroom) >= 0 {
			return reserve.Clone(), nil
		}
		return new(uint256.Int).Add(price, shift), nil
	default:
		return reserve.Clone(), nil
	}
}

// curveCost prices units roundSupply+1 .. roundSupply+n of a linear bonding
// curve in closed form: n*lastPrice + delta*n*(n-1)/2.
func curveCost(price, delta, quantity, roundSupply *uint256.Int) (*uint256.Int, error) {
	slope, ovf := new(uint256.Int).MulOverflow(delta, roundSupply)
	if ovf {
		return nil, ErrPriceOverflow
	}
	last, ovf := new(uint256.Int).AddOverflow(price, slope)
	if ovf {
		return nil, ErrPriceOverflow
	}
	base, ovf := new(uint256.Int).MulOverflow(last, quantity)
	if ovf {
		return nil, ErrPriceOverflow
	}
	if quantity.IsZero() {
		return base, nil
	}
	steps := new(uint256.Int).Sub(quantity, uint256.NewInt(1))
	tri, ovf := new(uint256.Int).MulOverflow(quantity, steps)
	if ovf {
		return nil, ErrPriceOverflow
	}
	tri, ovf = tri.MulOverflow(tri, delta)
	if ovf {
		return nil, ErrPriceOverflow
	}
	tri = tri.Div(tri, uint256.NewInt(2))
	total, ovf := new(uint256.Int).AddOverflow(base, tri)
	if ovf {
		return nil, ErrPriceOverflow
	}
	return total, nil
}

// applyDiscount subtracts bps basis points from cost, truncating toward zero.
// The 512-bit intermediate in MulDivOverflow keeps the product exact even for
// costs close to the 256-bit ceiling; the quotient never exceeds cost because
// bps is below the denominator.
func applyDiscount(cost *uint256.Int, bps uint64) *uint256.Int {
	if bps == 0 || cost.IsZero() {
		return cost
	}
	off, _ := new(uint256.Int).MulDivOverflow(cost, uint256.NewInt(bps), uint256.NewInt(BpsDenominator))
	return new(uint256.Int).Sub(cost, off)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func isNegative(v *big.Int) bool {
	return v != nil && v.Sign() < 0
}
