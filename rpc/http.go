package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"mintgate/core/events"
	"mintgate/native/mint"
	"mintgate/observability"
	"mintgate/storage"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32030
	codeRateLimited    = -32020
)

// Server exposes the mint engine over JSON-RPC. Mutating methods are
// serialised by a single mutex and routed through a storage overlay that is
// committed only when the engine call succeeds, giving each call
// all-or-nothing semantics.
type Server struct {
	db   storage.Database
	log  *slog.Logger
	auth string

	platform [20]byte
	relay    [20]byte
	signer   [20]byte
	vault    [20]byte

	tokens mint.TokenOwnership
	assets mint.AssetTransfer
	nowFn  func() int64

	mu sync.Mutex

	limiterMu  sync.Mutex
	limiters   map[string]*rate.Limiter
	ratePerMin int
}

// ServerOptions carries the wiring for a Server.
type ServerOptions struct {
	DB              storage.Database
	Log             *slog.Logger
	AuthToken       string
	Platform        [20]byte
	Relay           [20]byte
	AffiliateSigner [20]byte
	Vault           [20]byte
	Tokens          mint.TokenOwnership
	Assets          mint.AssetTransfer
	RateLimitPerMin int
	NowFunc         func() int64
}

// NewServer constructs a Server from the supplied options.
func NewServer(opts ServerOptions) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	ratePerMin := opts.RateLimitPerMin
	if ratePerMin <= 0 {
		ratePerMin = 120
	}
	return &Server{
		db:         opts.DB,
		log:        log,
		auth:       strings.TrimSpace(opts.AuthToken),
		platform:   opts.Platform,
		relay:      opts.Relay,
		signer:     opts.AffiliateSigner,
		vault:      opts.Vault,
		tokens:     opts.Tokens,
		assets:     opts.Assets,
		nowFn:      opts.NowFunc,
		limiters:   make(map[string]*rate.Limiter),
		ratePerMin: ratePerMin,
	}
}

// Router mounts the JSON-RPC endpoint alongside health and metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handleRPC)
	return r
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := s.log.With("requestId", requestID)

	if !s.allow(remoteHost(r)) {
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, Error: &rpcError{Code: codeRateLimited, Message: "rate limit exceeded"}})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, Error: &rpcError{Code: codeParseError, Message: "unable to read request"}})
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, Error: &rpcError{Code: codeParseError, Message: "invalid JSON"}})
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "malformed request"}})
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "method not found"}})
		return
	}
	if handler.mutating && !s.authorized(r) {
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: &rpcError{Code: codeUnauthorized, Message: "unauthorized"}})
		return
	}

	start := time.Now()
	result, rpcErr := handler.fn(req.Params)
	observability.Engine().Latency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if rpcErr != nil {
		log.Info("rpc request rejected", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr})
		return
	}
	log.Info("rpc request served", "method", req.Method)
	writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

type method struct {
	mutating bool
	fn       func(json.RawMessage) (any, *rpcError)
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"mint_registerCollection": {mutating: true, fn: s.registerCollection},
		"mint_setInvite":          {mutating: true, fn: s.setInvite},
		"mint_setBurnConfig":      {mutating: true, fn: s.setBurnConfig},
		"mint_quote":              {fn: s.quote},
		"mint_validate":           {fn: s.validate},
		"mint_settle":             {mutating: true, fn: s.settle},
		"mint_validateBurn":       {fn: s.validateBurn},
		"mint_commitBurn":         {mutating: true, fn: s.commitBurn},
		"mint_withdraw":           {mutating: true, fn: s.withdraw},
		"mint_minted":             {fn: s.minted},
		"mint_ownerBalance":       {fn: s.ownerBalance},
		"mint_affiliateBalance":   {fn: s.affiliateBalance},
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.auth == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.auth)) == 1
}

func (s *Server) allow(host string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.ratePerMin)/60.0), s.ratePerMin)
		s.limiters[host] = limiter
	}
	return limiter.Allow()
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// engineFor builds a fresh engine bound to the supplied state, with events
// captured in the returned recorder.
func (s *Server) engineFor(st mint.EngineState) (*mint.Engine, *events.Recorder) {
	recorder := &events.Recorder{}
	engine := mint.NewEngine()
	engine.SetState(st)
	engine.SetEmitter(recorder)
	engine.SetPlatformAddress(s.platform)
	engine.SetRelayAddress(s.relay)
	engine.SetAffiliateSigner(s.signer)
	engine.SetVault(s.vault)
	engine.SetTokenOwnership(s.tokens)
	engine.SetAssetTransfer(s.assets)
	if s.nowFn != nil {
		engine.SetNowFunc(s.nowFn)
	}
	return engine, recorder
}

// run executes fn against a staged overlay under the engine mutex and
// commits the overlay only when fn succeeds.
func (s *Server) run(method string, fn func(engine *mint.Engine, recorder *events.Recorder) (any, error)) (any, *rpcError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overlay := storage.NewOverlay(s.db)
	engine, recorder := s.engineFor(newManager(overlay))
	result, err := fn(engine, recorder)
	observability.Engine().RecordOperation(method, err, reasonOf(err))
	if err != nil {
		overlay.Discard()
		return nil, engineError(err)
	}
	if err := overlay.Commit(); err != nil {
		return nil, &rpcError{Code: codeServerError, Message: "state commit failed"}
	}
	return result, nil
}

// runRead executes fn directly against the base database; read paths never
// mutate state.
func (s *Server) runRead(method string, fn func(engine *mint.Engine) (any, error)) (any, *rpcError) {
	engine, _ := s.engineFor(newManager(s.db))
	result, err := fn(engine)
	observability.Engine().RecordOperation(method, err, reasonOf(err))
	if err != nil {
		return nil, engineError(err)
	}
	return result, nil
}

func engineError(err error) *rpcError {
	if reason := reasonOf(err); reason != "" {
		return &rpcError{Code: codeRejected, Message: err.Error(), Data: map[string]string{"reason": reason}}
	}
	return &rpcError{Code: codeServerError, Message: err.Error()}
}

// reasonOf maps engine sentinel errors to stable reason slugs surfaced to
// clients and metrics. Unknown errors yield an empty reason.
func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	for sentinel, reason := range rejectionReasons {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return ""
}

var rejectionReasons = map[error]string{
	mint.ErrUnknownCollection:     "unknown_collection",
	mint.ErrUnknownInvite:         "unknown_invite",
	mint.ErrUnauthorized:          "not_owner",
	mint.ErrFeeTooHigh:            "fee_too_high",
	mint.ErrDiscountTooHigh:       "discount_too_high",
	mint.ErrInvalidSchedule:       "invalid_schedule",
	mint.ErrInviteLocked:          "invite_locked",
	mint.ErrInvalidCollection:     "invalid_collection",
	mint.ErrReservedInviteKey:     "reserved_key",
	mint.ErrSelfReferral:          "self_referral",
	mint.ErrInvalidSignature:      "invalid_signature",
	mint.ErrWalletUnauthorized:    "wallet_unauthorized",
	mint.ErrWalletBlacklisted:     "wallet_blacklisted",
	mint.ErrMintNotStarted:        "not_started",
	mint.ErrMintEnded:             "ended",
	mint.ErrMintingPaused:         "paused",
	mint.ErrBurnDisabled:          "burn_disabled",
	mint.ErrBurnNotStarted:        "burn_not_started",
	mint.ErrInvalidQuantity:       "invalid_quantity",
	mint.ErrQuantityOverflow:      "quantity_overflow",
	mint.ErrWalletLimit:           "wallet_limit",
	mint.ErrListSupply:            "round_supply_cap",
	mint.ErrMaxBatch:              "batch_cap",
	mint.ErrMaxSupply:             "supply_cap",
	mint.ErrPriceOverflow:         "price_overflow",
	mint.ErrInsufficientPayment:   "underpaid",
	mint.ErrExcessPayment:         "overpaid",
	mint.ErrInsufficientAllowance: "insufficient_allowance",
	mint.ErrInsufficientBalance:   "insufficient_balance",
	mint.ErrNativeNotAccepted:     "native_not_accepted",
	mint.ErrNotTokenOwner:         "not_token_owner",
	mint.ErrNotApproved:           "not_approved",
	mint.ErrInvalidBurnRatio:      "invalid_burn_ratio",
	mint.ErrBalanceEmpty:          "balance_empty",
	mint.ErrTransferFailed:        "transfer_failed",
}
