package mint

import "math/big"

// Settle apportions the funds collected for a successful mint among owner,
// platform, super-affiliate and affiliate, accrues each share into its
// withdrawal bucket, and advances the caller's minted counter. For rounds
// denominated in an external asset the value is recomputed from the schedule
// and pulled from the caller into the engine vault; native rounds settle the
// attached payment, which ValidateMint already proved exact.
func (e *Engine) Settle(args SettleArgs) (*Settlement, error) {
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
	affiliateUsed := !isZeroAddress(args.Affiliate)
	tokens, err := tokensOf(args.Quantity, invite.UnitSize)
	if err != nil {
		return nil, err
	}

	asset := invite.PaymentAsset
	var value *big.Int
	if isZeroAddress(asset) {
		value = copyBig(args.PaymentSent)
	} else {
		if e.assets == nil {
			return nil, ErrNilAssetBackend
		}
		value, err = ComputePrice(invite, cfg.Discounts, tokens, args.RoundSupply, affiliateUsed, e.now())
		if err != nil {
			return nil, err
		}
		if value.Sign() > 0 {
			if err := e.assets.TransferFrom(asset, caller, e.vault, value); err != nil {
				return nil, ErrTransferFailed
			}
		}
	}

	settlement := splitValue(value, cfg, affiliateUsed)
	settlement.Asset = asset

	if settlement.AffiliateCut.Sign() > 0 {
		if err := e.accrueAffiliate(args.Affiliate, asset, settlement.AffiliateCut); err != nil {
			return nil, err
		}
	}
	if settlement.SuperAffiliateCut.Sign() > 0 {
		if err := e.accrueAffiliate(cfg.SuperAffiliatePayout, asset, settlement.SuperAffiliateCut); err != nil {
			return nil, err
		}
	}
	if settlement.OwnerCut.Sign() > 0 || settlement.PlatformCut.Sign() > 0 {
		balance, ok, err := e.state.OwnerBalanceGet(args.Collection, asset)
		if err != nil {
			return nil, err
		}
		if !ok || balance == nil {
			balance = newOwnerBalance()
		}
		balance.Owner = new(big.Int).Add(copyBig(balance.Owner), settlement.OwnerCut)
		balance.Platform = new(big.Int).Add(copyBig(balance.Platform), settlement.PlatformCut)
		if err := e.state.OwnerBalancePut(args.Collection, asset, balance); err != nil {
			return nil, err
		}
	}

	minted, err := e.state.MintedGet(args.Collection, caller, args.Key)
	if err != nil {
		return nil, err
	}
	if err := e.state.MintedPut(args.Collection, caller, args.Key, minted+tokens); err != nil {
		return nil, err
	}
	settled, err := e.state.MintedGet(args.Collection, roundCounterWallet, args.Key)
	if err != nil {
		return nil, err
	}
	if err := e.state.MintedPut(args.Collection, roundCounterWallet, args.Key, settled+tokens); err != nil {
		return nil, err
	}

	if affiliateUsed {
		e.emit(ReferralEvent(args.Affiliate, asset, settlement.AffiliateCut, args.Quantity))
	}
	return settlement, nil
}

// splitValue computes the four-way fee split. The owner share is derived by
// subtraction so the cuts always sum exactly to the settled value.
func splitValue(value *big.Int, cfg *CollectionConfig, affiliateUsed bool) *Settlement {
	v := copyBig(value)
	affiliateCut := big.NewInt(0)
	if affiliateUsed && cfg.AffiliateFeeBps > 0 {
		affiliateCut = bpsShare(v, uint64(cfg.AffiliateFeeBps))
	}
	superCut := big.NewInt(0)
	if !isZeroAddress(cfg.SuperAffiliatePayout) && cfg.PlatformFeeBps > 0 {
		superCut = new(big.Int).Mul(v, big.NewInt(int64(cfg.PlatformFeeBps)))
		superCut = superCut.Div(superCut, big.NewInt(2))
		superCut = superCut.Div(superCut, big.NewInt(BpsDenominator))
	}
	platformCut := bpsShare(v, uint64(cfg.PlatformFeeBps))
	platformCut = platformCut.Sub(platformCut, superCut)
	ownerCut := new(big.Int).Sub(v, affiliateCut)
	ownerCut = ownerCut.Sub(ownerCut, platformCut)
	ownerCut = ownerCut.Sub(ownerCut, superCut)
	return &Settlement{
		Value:             v,
		OwnerCut:          ownerCut,
		PlatformCut:       platformCut,
		AffiliateCut:      affiliateCut,
		SuperAffiliateCut: superCut,
	}
}

func bpsShare(value *big.Int, bps uint64) *big.Int {
	share := new(big.Int).Mul(value, new(big.Int).SetUint64(bps))
	return share.Div(share, big.NewInt(BpsDenominator))
}

func (e *Engine) accrueAffiliate(affiliate [20]byte, asset [20]byte, amount *big.Int) error {
	balance, ok, err := e.state.AffiliateBalanceGet(affiliate, asset)
	if err != nil {
		return err
	}
	if !ok || balance == nil {
		balance = big.NewInt(0)
	}
	return e.state.AffiliateBalancePut(affiliate, asset, new(big.Int).Add(balance, amount))
}

// Withdraw pays out the claimant's entitled bucket for each listed asset.
// Owners and the configured alternate payout claim the owner bucket, the
// platform address claims the platform bucket, and everyone else claims
// their affiliate bucket. Native-currency owner payouts route to the
// alternate payout when one is configured. Buckets are zeroed together with
// the read; an empty bucket rejects the whole call before any funds move.
func (e *Engine) Withdraw(collection [20]byte, claimant [20]byte, assets [][20]byte) ([]Withdrawal, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.assets == nil {
		return nil, ErrNilAssetBackend
	}
	cfg, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, ErrUnknownCollection
	}

	type payout struct {
		asset     [20]byte
		amount    *big.Int
		recipient [20]byte
		apply     func() error
	}
	pending := make([]payout, 0, len(assets))
	seen := make(map[[20]byte]bool, len(assets))
	for _, asset := range assets {
		asset := asset
		// A repeated asset would read the same bucket twice before either
		// clear applies; treat it like draining an already-empty bucket.
		if seen[asset] {
			return nil, ErrBalanceEmpty
		}
		seen[asset] = true
		switch {
		case claimant == cfg.Owner || (!isZeroAddress(cfg.OwnerAltPayout) && claimant == cfg.OwnerAltPayout):
			balance, ok, err := e.state.OwnerBalanceGet(collection, asset)
			if err != nil {
				return nil, err
			}
			if !ok || balance == nil || copyBig(balance.Owner).Sign() == 0 {
				return nil, ErrBalanceEmpty
			}
			amount := copyBig(balance.Owner)
			recipient := claimant
			// The alternate payout preference applies to native currency
			// only; asset buckets pay the claimant directly.
			if isZeroAddress(asset) && !isZeroAddress(cfg.OwnerAltPayout) {
				recipient = cfg.OwnerAltPayout
			}
			cleared := balance.Clone()
			cleared.Owner = big.NewInt(0)
			pending = append(pending, payout{asset: asset, amount: amount, recipient: recipient, apply: func() error {
				return e.state.OwnerBalancePut(collection, asset, cleared)
			}})
		case claimant == e.platform:
			balance, ok, err := e.state.OwnerBalanceGet(collection, asset)
			if err != nil {
				return nil, err
			}
			if !ok || balance == nil || copyBig(balance.Platform).Sign() == 0 {
				return nil, ErrBalanceEmpty
			}
			amount := copyBig(balance.Platform)
			cleared := balance.Clone()
			cleared.Platform = big.NewInt(0)
			pending = append(pending, payout{asset: asset, amount: amount, recipient: claimant, apply: func() error {
				return e.state.OwnerBalancePut(collection, asset, cleared)
			}})
		default:
			balance, ok, err := e.state.AffiliateBalanceGet(claimant, asset)
			if err != nil {
				return nil, err
			}
			if !ok || balance == nil || balance.Sign() == 0 {
				return nil, ErrBalanceEmpty
			}
			amount := copyBig(balance)
			pending = append(pending, payout{asset: asset, amount: amount, recipient: claimant, apply: func() error {
				return e.state.AffiliateBalancePut(claimant, asset, big.NewInt(0))
			}})
		}
	}

	results := make([]Withdrawal, 0, len(pending))
	for _, p := range pending {
		if err := p.apply(); err != nil {
			return nil, err
		}
		if err := e.assets.Transfer(p.asset, p.recipient, p.amount); err != nil {
			return nil, ErrTransferFailed
		}
		e.emit(WithdrawalEvent(claimant, p.asset, p.amount))
		results = append(results, Withdrawal{Asset: p.asset, Amount: p.amount, Recipient: p.recipient})
	}
	return results, nil
}

// OwnerBalanceOf returns the accrued owner/platform buckets for an asset.
func (e *Engine) OwnerBalanceOf(collection [20]byte, asset [20]byte) (*OwnerBalance, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	balance, ok, err := e.state.OwnerBalanceGet(collection, asset)
	if err != nil {
		return nil, err
	}
	if !ok || balance == nil {
		return newOwnerBalance(), nil
	}
	return balance.Clone(), nil
}

// AffiliateBalanceOf returns the accrued affiliate bucket for an asset.
func (e *Engine) AffiliateBalanceOf(affiliate [20]byte, asset [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	balance, ok, err := e.state.AffiliateBalanceGet(affiliate, asset)
	if err != nil {
		return nil, err
	}
	if !ok || balance == nil {
		return big.NewInt(0), nil
	}
	return copyBig(balance), nil
}
