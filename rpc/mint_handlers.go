package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"mintgate/core/events"
	"mintgate/core/types"
	"mintgate/crypto"
	"mintgate/native/mint"
	"mintgate/state"
	"mintgate/storage"
)

func newManager(db storage.Database) *state.Manager {
	return state.NewManager(db)
}

// --- wire types ---

type inviteParam struct {
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

type tierParam struct {
	Threshold uint64 `json:"threshold"`
	Bps       uint32 `json:"bps"`
}

type collectionParam struct {
	Owner                string      `json:"owner"`
	MaxSupply            uint64      `json:"maxSupply"`
	MaxBatchSize         uint64      `json:"maxBatchSize"`
	AffiliateFeeBps      uint32      `json:"affiliateFeeBps"`
	PlatformFeeBps       uint32      `json:"platformFeeBps"`
	OwnerAltPayout       string      `json:"ownerAltPayout"`
	SuperAffiliatePayout string      `json:"superAffiliatePayout"`
	AffiliateDiscountBps uint32      `json:"affiliateDiscountBps"`
	Tiers                []tierParam `json:"tiers"`
}

type burnConfigParam struct {
	Source      string `json:"source"`
	BurnAddress string `json:"burnAddress"`
	Enabled     bool   `json:"enabled"`
	Ratio       uint64 `json:"ratio"`
	Reversed    bool   `json:"reversed"`
	Start       int64  `json:"start"`
	WalletLimit uint64 `json:"walletLimit"`
}

type proofParam struct {
	Key   string   `json:"key"`
	Nodes []string `json:"nodes"`
}

func decodeParams(raw json.RawMessage, out any) *rpcError {
	if len(raw) == 0 {
		return &rpcError{Code: codeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parseAddr(value string) ([20]byte, error) {
	var out [20]byte
	if strings.TrimSpace(value) == "" {
		return out, nil
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, err
	}
	return addr.Raw(), nil
}

func parseKey(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid key hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseAmountParam(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseProof(p *proofParam) (*mint.MembershipProof, error) {
	if p == nil {
		return nil, nil
	}
	key, err := parseKey(p.Key)
	if err != nil {
		return nil, err
	}
	proof := &mint.MembershipProof{Key: key}
	for _, node := range p.Nodes {
		parsed, err := parseKey(node)
		if err != nil {
			return nil, err
		}
		proof.Nodes = append(proof.Nodes, parsed)
	}
	return proof, nil
}

func parseSignature(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, nil
	}
	return hex.DecodeString(trimmed)
}

func buildInvite(p inviteParam) (*mint.Invite, error) {
	price, err := parseAmountParam(p.Price)
	if err != nil {
		return nil, err
	}
	reserve, err := parseAmountParam(p.ReservePrice)
	if err != nil {
		return nil, err
	}
	delta, err := parseAmountParam(p.Delta)
	if err != nil {
		return nil, err
	}
	asset, err := parseAddr(p.PaymentAsset)
	if err != nil {
		return nil, err
	}
	return &mint.Invite{
		Price:        price,
		ReservePrice: reserve,
		Delta:        delta,
		Interval:     p.Interval,
		Start:        p.Start,
		End:          p.End,
		WalletLimit:  p.WalletLimit,
		ListLimit:    p.ListLimit,
		UnitSize:     p.UnitSize,
		PaymentAsset: asset,
		DenyList:     p.DenyList,
	}, nil
}

func buildCollection(p collectionParam) (*mint.CollectionConfig, error) {
	owner, err := parseAddr(p.Owner)
	if err != nil {
		return nil, err
	}
	altPayout, err := parseAddr(p.OwnerAltPayout)
	if err != nil {
		return nil, err
	}
	superAffiliate, err := parseAddr(p.SuperAffiliatePayout)
	if err != nil {
		return nil, err
	}
	cfg := &mint.CollectionConfig{
		Owner:                owner,
		MaxSupply:            p.MaxSupply,
		MaxBatchSize:         p.MaxBatchSize,
		AffiliateFeeBps:      p.AffiliateFeeBps,
		PlatformFeeBps:       p.PlatformFeeBps,
		OwnerAltPayout:       altPayout,
		SuperAffiliatePayout: superAffiliate,
		Discounts:            mint.DiscountSchedule{AffiliateBps: p.AffiliateDiscountBps},
	}
	for _, tier := range p.Tiers {
		cfg.Discounts.Tiers = append(cfg.Discounts.Tiers, mint.DiscountTier{Threshold: tier.Threshold, Bps: tier.Bps})
	}
	return cfg, nil
}

func eventPayloads(recorder *events.Recorder) []*types.Event {
	out := make([]*types.Event, 0, len(recorder.Events))
	for _, evt := range recorder.Events {
		if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
			out = append(out, carrier.Event())
		}
	}
	return out
}

func invalidParams(err error) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: err.Error()}
}

// --- handlers ---

func (s *Server) registerCollection(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Caller     string          `json:"caller"`
		Collection string          `json:"collection"`
		Config     collectionParam `json:"config"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	cfg, err := buildCollection(params.Config)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.run("mint_registerCollection", func(engine *mint.Engine, _ *events.Recorder) (any, error) {
		if err := engine.RegisterCollection(caller, collection, cfg); err != nil {
			return nil, err
		}
		return map[string]bool{"registered": true}, nil
	})
}

func (s *Server) setInvite(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Caller     string      `json:"caller"`
		Collection string      `json:"collection"`
		Key        string      `json:"key"`
		Invite     inviteParam `json:"invite"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	key, err := parseKey(params.Key)
	if err != nil {
		return nil, invalidParams(err)
	}
	invite, err := buildInvite(params.Invite)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.run("mint_setInvite", func(engine *mint.Engine, recorder *events.Recorder) (any, error) {
		if err := engine.SetInvite(caller, collection, key, invite); err != nil {
			return nil, err
		}
		return map[string]any{"events": eventPayloads(recorder)}, nil
	})
}

func (s *Server) setBurnConfig(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Caller     string          `json:"caller"`
		Collection string          `json:"collection"`
		Config     burnConfigParam `json:"config"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	source, err := parseAddr(params.Config.Source)
	if err != nil {
		return nil, invalidParams(err)
	}
	burnAddr, err := parseAddr(params.Config.BurnAddress)
	if err != nil {
		return nil, invalidParams(err)
	}
	burn := &mint.BurnConfig{
		Source:      source,
		BurnAddress: burnAddr,
		Enabled:     params.Config.Enabled,
		Ratio:       params.Config.Ratio,
		Reversed:    params.Config.Reversed,
		Start:       params.Config.Start,
		WalletLimit: params.Config.WalletLimit,
	}
	return s.run("mint_setBurnConfig", func(engine *mint.Engine, _ *events.Recorder) (any, error) {
		if err := engine.SetBurnConfig(caller, collection, burn); err != nil {
			return nil, err
		}
		return map[string]bool{"stored": true}, nil
	})
}

func (s *Server) quote(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Collection  string `json:"collection"`
		Key         string `json:"key"`
		Quantity    uint64 `json:"quantity"`
		RoundSupply uint64 `json:"roundSupply"`
		Affiliate   bool   `json:"affiliate"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	key, err := parseKey(params.Key)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.runRead("mint_quote", func(engine *mint.Engine) (any, error) {
		cost, err := engine.Quote(collection, key, params.Quantity, params.RoundSupply, params.Affiliate)
		if err != nil {
			return nil, err
		}
		return map[string]string{"cost": cost.String()}, nil
	})
}

type mintParams struct {
	Collection  string      `json:"collection"`
	Key         string      `json:"key"`
	Caller      string      `json:"caller"`
	Origin      string      `json:"origin"`
	Affiliate   string      `json:"affiliate"`
	Signature   string      `json:"signature"`
	Proof       *proofParam `json:"proof"`
	Quantity    uint64      `json:"quantity"`
	RoundSupply uint64      `json:"roundSupply"`
	TotalSupply uint64      `json:"totalSupply"`
	PaymentSent string      `json:"paymentSent"`
}

func buildMintArgs(params mintParams) (mint.MintArgs, error) {
	var args mint.MintArgs
	var err error
	if args.Collection, err = parseAddr(params.Collection); err != nil {
		return args, err
	}
	if args.Key, err = parseKey(params.Key); err != nil {
		return args, err
	}
	if args.Caller, err = parseAddr(params.Caller); err != nil {
		return args, err
	}
	if args.Origin, err = parseAddr(params.Origin); err != nil {
		return args, err
	}
	if args.Affiliate, err = parseAddr(params.Affiliate); err != nil {
		return args, err
	}
	if args.Signature, err = parseSignature(params.Signature); err != nil {
		return args, err
	}
	if args.Proof, err = parseProof(params.Proof); err != nil {
		return args, err
	}
	if args.PaymentSent, err = parseAmountParam(params.PaymentSent); err != nil {
		return args, err
	}
	args.Quantity = params.Quantity
	args.RoundSupply = params.RoundSupply
	args.TotalSupply = params.TotalSupply
	return args, nil
}

func (s *Server) validate(raw json.RawMessage) (any, *rpcError) {
	var params mintParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	args, err := buildMintArgs(params)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.runRead("mint_validate", func(engine *mint.Engine) (any, error) {
		cost, err := engine.ValidateMint(args)
		if err != nil {
			return nil, err
		}
		return map[string]string{"cost": cost.String()}, nil
	})
}

func (s *Server) settle(raw json.RawMessage) (any, *rpcError) {
	var params mintParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	args, err := buildMintArgs(params)
	if err != nil {
		return nil, invalidParams(err)
	}
	settleArgs := mint.SettleArgs{
		Collection:  args.Collection,
		Key:         args.Key,
		Caller:      args.Caller,
		Origin:      args.Origin,
		Affiliate:   args.Affiliate,
		Quantity:    args.Quantity,
		RoundSupply: args.RoundSupply,
		PaymentSent: args.PaymentSent,
	}
	return s.run("mint_settle", func(engine *mint.Engine, recorder *events.Recorder) (any, error) {
		settlement, err := engine.Settle(settleArgs)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"value":             settlement.Value.String(),
			"ownerCut":          settlement.OwnerCut.String(),
			"platformCut":       settlement.PlatformCut.String(),
			"affiliateCut":      settlement.AffiliateCut.String(),
			"superAffiliateCut": settlement.SuperAffiliateCut.String(),
			"events":            eventPayloads(recorder),
		}, nil
	})
}

type burnParams struct {
	Collection  string   `json:"collection"`
	Caller      string   `json:"caller"`
	Origin      string   `json:"origin"`
	TokenIDs    []string `json:"tokenIds"`
	TotalSupply uint64   `json:"totalSupply"`
	Quantity    uint64   `json:"quantity"`
}

func buildBurnArgs(params burnParams) (mint.BurnArgs, error) {
	var args mint.BurnArgs
	var err error
	if args.Collection, err = parseAddr(params.Collection); err != nil {
		return args, err
	}
	if args.Caller, err = parseAddr(params.Caller); err != nil {
		return args, err
	}
	if args.Origin, err = parseAddr(params.Origin); err != nil {
		return args, err
	}
	for _, id := range params.TokenIDs {
		parsed, err := parseAmountParam(id)
		if err != nil {
			return args, err
		}
		args.TokenIDs = append(args.TokenIDs, parsed)
	}
	args.TotalSupply = params.TotalSupply
	return args, nil
}

func (s *Server) validateBurn(raw json.RawMessage) (any, *rpcError) {
	var params burnParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	args, err := buildBurnArgs(params)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.runRead("mint_validateBurn", func(engine *mint.Engine) (any, error) {
		quantity, err := engine.ValidateBurnToMint(args)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"quantity": quantity}, nil
	})
}

func (s *Server) commitBurn(raw json.RawMessage) (any, *rpcError) {
	var params burnParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	origin, err := parseAddr(params.Origin)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.run("mint_commitBurn", func(engine *mint.Engine, _ *events.Recorder) (any, error) {
		if err := engine.CommitBurn(collection, caller, origin, params.Quantity); err != nil {
			return nil, err
		}
		return map[string]bool{"recorded": true}, nil
	})
}

func (s *Server) withdraw(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Collection string   `json:"collection"`
		Claimant   string   `json:"claimant"`
		Assets     []string `json:"assets"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	claimant, err := parseAddr(params.Claimant)
	if err != nil {
		return nil, invalidParams(err)
	}
	assets := make([][20]byte, 0, len(params.Assets))
	for _, asset := range params.Assets {
		parsed, err := parseAddr(asset)
		if err != nil {
			return nil, invalidParams(err)
		}
		assets = append(assets, parsed)
	}
	return s.run("mint_withdraw", func(engine *mint.Engine, recorder *events.Recorder) (any, error) {
		withdrawals, err := engine.Withdraw(collection, claimant, assets)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]string, 0, len(withdrawals))
		for _, w := range withdrawals {
			out = append(out, map[string]string{
				"asset":  hex.EncodeToString(w.Asset[:]),
				"amount": w.Amount.String(),
			})
		}
		return map[string]any{"withdrawals": out, "events": eventPayloads(recorder)}, nil
	})
}

func (s *Server) minted(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Collection string `json:"collection"`
		Wallet     string `json:"wallet"`
		Key        string `json:"key"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	wallet, err := parseAddr(params.Wallet)
	if err != nil {
		return nil, invalidParams(err)
	}
	key, err := parseKey(params.Key)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.runRead("mint_minted", func(engine *mint.Engine) (any, error) {
		minted, err := engine.MintedOf(collection, wallet, key)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"minted": minted}, nil
	})
}

func (s *Server) ownerBalance(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Collection string `json:"collection"`
		Asset      string `json:"asset"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		return nil, invalidParams(err)
	}
	asset, err := parseAddr(params.Asset)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.runRead("mint_ownerBalance", func(engine *mint.Engine) (any, error) {
		balance, err := engine.OwnerBalanceOf(collection, asset)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"owner":    balance.Owner.String(),
			"platform": balance.Platform.String(),
		}, nil
	})
}

func (s *Server) affiliateBalance(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Affiliate string `json:"affiliate"`
		Asset     string `json:"asset"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	affiliate, err := parseAddr(params.Affiliate)
	if err != nil {
		return nil, invalidParams(err)
	}
	asset, err := parseAddr(params.Asset)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.runRead("mint_affiliateBalance", func(engine *mint.Engine) (any, error) {
		balance, err := engine.AffiliateBalanceOf(affiliate, asset)
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount": balance.String()}, nil
	})
}
