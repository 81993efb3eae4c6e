package mint

// ValidateBurnToMint checks a burn-to-mint conversion and returns the number
// of tokens the burn entitles the caller to mint. Token custody moves
// externally; the engine only verifies ownership, blanket approval toward its
// vault, the conversion ratio, and the same batch/supply/limit bounds a paid
// mint is subject to. Nothing is mutated; the caller records the conversion
// with CommitBurn after the external transfers succeed.
func (e *Engine) ValidateBurnToMint(args BurnArgs) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if e.tokens == nil {
		return 0, ErrNilTokenBackend
	}
	if len(args.TokenIDs) == 0 {
		return 0, ErrInvalidQuantity
	}
	cfg, ok, err := e.state.CollectionGet(args.Collection)
	if err != nil {
		return 0, err
	}
	if !ok || cfg == nil {
		return 0, ErrUnknownCollection
	}
	burn, ok, err := e.state.BurnConfigGet(args.Collection)
	if err != nil {
		return 0, err
	}
	if !ok || burn == nil || !burn.Enabled {
		return 0, ErrBurnDisabled
	}
	if e.now() < burn.Start {
		return 0, ErrBurnNotStarted
	}
	caller := e.EffectiveCaller(args.Caller, args.Origin)
	for _, id := range args.TokenIDs {
		owner, err := e.tokens.OwnerOf(burn.Source, id)
		if err != nil {
			return 0, err
		}
		if owner != caller {
			return 0, ErrNotTokenOwner
		}
	}
	approved, err := e.tokens.IsApprovedForAll(burn.Source, caller, e.vault)
	if err != nil {
		return 0, err
	}
	if !approved {
		return 0, ErrNotApproved
	}

	quantity, err := burnQuantity(burn, uint64(len(args.TokenIDs)))
	if err != nil {
		return 0, err
	}
	if quantity > cfg.MaxBatchSize {
		return 0, ErrMaxBatch
	}
	if args.TotalSupply+quantity > cfg.MaxSupply || args.TotalSupply+quantity < args.TotalSupply {
		return 0, ErrMaxSupply
	}
	if burn.WalletLimit > 0 {
		converted, err := e.state.MintedGet(args.Collection, caller, BurnCounterKey)
		if err != nil {
			return 0, err
		}
		if converted+quantity > burn.WalletLimit || converted+quantity < converted {
			return 0, ErrWalletLimit
		}
	}
	return quantity, nil
}

// CommitBurn records a completed conversion against the caller's lifetime
// burn counter. It is called after the external token transfers settle.
func (e *Engine) CommitBurn(collection [20]byte, caller [20]byte, origin [20]byte, quantity uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	wallet := e.EffectiveCaller(caller, origin)
	converted, err := e.state.MintedGet(collection, wallet, BurnCounterKey)
	if err != nil {
		return err
	}
	return e.state.MintedPut(collection, wallet, BurnCounterKey, converted+quantity)
}

// burnQuantity applies the conversion ratio. Reversed configs mint Ratio
// tokens per burned token; otherwise Ratio tokens burn down to one mint and
// the count must divide evenly.
func burnQuantity(burn *BurnConfig, count uint64) (uint64, error) {
	if burn.Ratio == 0 {
		return 0, ErrInvalidBurnRatio
	}
	if burn.Reversed {
		product := count * burn.Ratio
		if burn.Ratio > 1 && product/burn.Ratio != count {
			return 0, ErrQuantityOverflow
		}
		return product, nil
	}
	if count%burn.Ratio != 0 {
		return 0, ErrInvalidBurnRatio
	}
	return count / burn.Ratio, nil
}
