package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/custodex/custodex/params"
	"github.com/custodex/custodex/pkg/crypto"
	"github.com/custodex/custodex/pkg/exchange"
	"github.com/custodex/custodex/pkg/token"
)

// Server handles REST API and WebSocket connections
type Server struct {
	ex     *exchange.Exchange
	tokens *token.Registry
	cfg    params.API
	router *mux.Router
	hub    *Hub     // WebSocket hub
	txLog  *os.File // Request audit log file
}

// NewServer creates a new API server and hooks the exchange event stream
// into the WebSocket hub.
func NewServer(ex *exchange.Exchange, tokens *token.Registry, cfg params.API) *Server {
	// Open request audit log file
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/requests.log"
	}

	os.MkdirAll("data", 0755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open audit log file %s: %v", txLogPath, err)
		txLog = nil // Continue without audit logging
	} else {
		log.Printf("[api] audit log: %s", txLogPath)
	}

	s := &Server{
		ex:     ex,
		tokens: tokens,
		cfg:    cfg,
		router: mux.NewRouter(),
		hub:    NewHub(),
		txLog:  txLog,
	}

	ex.OnEvent = s.onEvent
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Read endpoints
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")
	api.HandleFunc("/balances/{token}/{address}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/count", s.handleGetOrderCount).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Mutating endpoints
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/orders", s.handleMakeOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/fill", s.handleFillOrder).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	// Start WebSocket hub
	go s.hub.Run()

	// CORS configuration
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// Event Broadcasting
// ==============================

// onEvent fans a committed exchange event out to the WebSocket channels.
// Runs synchronously inside the exchange commit path, so it must not call
// back into the exchange.
func (s *Server) onEvent(ev exchange.Event) {
	update := EventUpdate{Type: "event", Event: toEventInfo(ev)}

	s.hub.BroadcastToChannel("events", update)
	if ev.Kind == exchange.EventTrade {
		s.hub.BroadcastToChannel("trades", update)
	}
	s.hub.BroadcastToChannel("account:"+strings.ToLower(ev.User.Hex()), update)
	if ev.Maker != (common.Address{}) && ev.Maker != ev.User {
		s.hub.BroadcastToChannel("account:"+strings.ToLower(ev.Maker.Hex()), update)
	}
}

// ==============================
// REST Handlers: Reads
// ==============================

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	ids := s.tokens.List()
	response := make([]TokenInfo, len(ids))
	for i, id := range ids {
		response[i] = TokenInfo{ID: id.Hex()}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tokStr, addrStr := vars["token"], vars["address"]

	if !common.IsHexAddress(tokStr) || !common.IsHexAddress(addrStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	tok := common.HexToAddress(tokStr)
	addr := common.HexToAddress(addrStr)

	respondJSON(w, BalanceResponse{
		Token:   tok.Hex(),
		Address: addr.Hex(),
		Balance: s.ex.BalanceOf(tok, addr),
	})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.ex.Orders()

	// Optional filters: ?status=open and ?owner=0x...
	status := r.URL.Query().Get("status")
	owner := r.URL.Query().Get("owner")

	response := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		if status != "" && o.Status.String() != status {
			continue
		}
		if owner != "" && !strings.EqualFold(o.Owner.Hex(), owner) {
			continue
		}
		response = append(response, toOrderInfo(o))
	}

	respondJSON(w, response)
}

func (s *Server) handleGetOrderCount(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, OrderCountResponse{Count: s.ex.OrderCount()})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	o, err := s.ex.GetOrder(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", err.Error())
		return
	}

	respondJSON(w, toOrderInfo(o))
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	events, err := s.ex.RecentEvents(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read events", err.Error())
		return
	}

	response := make([]EventInfo, len(events))
	for i, ev := range events {
		response[i] = toEventInfo(ev)
	}
	respondJSON(w, response)
}

// ==============================
// REST Handlers: Mutations
// ==============================

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Token) || !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	caller := common.HexToAddress(req.Address)
	if !s.authorize(w, caller, req.Signature, "deposit",
		req.Token, strconv.FormatInt(req.Amount, 10)) {
		return
	}

	tok := common.HexToAddress(req.Token)
	if err := s.ex.DepositToken(tok, req.Amount, caller); err != nil {
		respondExchangeError(w, err)
		return
	}

	s.logRequest("DEPOSIT", map[string]interface{}{
		"token":   tok.Hex(),
		"amount":  req.Amount,
		"address": caller.Hex(),
	})

	respondJSON(w, SubmitResponse{Status: "ok", Balance: s.ex.BalanceOf(tok, caller)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Token) || !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	caller := common.HexToAddress(req.Address)
	if !s.authorize(w, caller, req.Signature, "withdraw",
		req.Token, strconv.FormatInt(req.Amount, 10)) {
		return
	}

	tok := common.HexToAddress(req.Token)
	if err := s.ex.WithdrawToken(tok, req.Amount, caller); err != nil {
		respondExchangeError(w, err)
		return
	}

	s.logRequest("WITHDRAW", map[string]interface{}{
		"token":   tok.Hex(),
		"amount":  req.Amount,
		"address": caller.Hex(),
	})

	respondJSON(w, SubmitResponse{Status: "ok", Balance: s.ex.BalanceOf(tok, caller)})
}

func (s *Server) handleMakeOrder(w http.ResponseWriter, r *http.Request) {
	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.TokenGet) || !common.IsHexAddress(req.TokenGive) || !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	caller := common.HexToAddress(req.Address)
	if !s.authorize(w, caller, req.Signature, "order",
		req.TokenGet, strconv.FormatInt(req.AmountGet, 10),
		req.TokenGive, strconv.FormatInt(req.AmountGive, 10)) {
		return
	}

	o, err := s.ex.MakeOrder(
		common.HexToAddress(req.TokenGet), req.AmountGet,
		common.HexToAddress(req.TokenGive), req.AmountGive,
		caller,
	)
	if err != nil {
		respondExchangeError(w, err)
		return
	}

	log.Printf("[api] order submitted: id=%d owner=%s", o.ID, caller.Hex())
	s.logRequest("ORDER_MAKE", map[string]interface{}{
		"order_id": o.ID,
		"address":  caller.Hex(),
	})

	respondJSON(w, SubmitResponse{Status: "ok", OrderID: o.ID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	caller := common.HexToAddress(req.Address)
	if !s.authorize(w, caller, req.Signature, "cancel",
		strconv.FormatUint(req.OrderID, 10)) {
		return
	}

	if err := s.ex.CancelOrder(req.OrderID, caller); err != nil {
		respondExchangeError(w, err)
		return
	}

	s.logRequest("ORDER_CANCEL", map[string]interface{}{
		"order_id": req.OrderID,
		"address":  caller.Hex(),
	})

	respondJSON(w, SubmitResponse{Status: "ok", OrderID: req.OrderID})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	caller := common.HexToAddress(req.Address)
	if !s.authorize(w, caller, req.Signature, "fill",
		strconv.FormatUint(req.OrderID, 10)) {
		return
	}

	if err := s.ex.FillOrder(req.OrderID, caller); err != nil {
		respondExchangeError(w, err)
		return
	}

	s.logRequest("ORDER_FILL", map[string]interface{}{
		"order_id": req.OrderID,
		"address":  caller.Hex(),
	})

	respondJSON(w, SubmitResponse{Status: "ok", OrderID: req.OrderID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

// authorize verifies the request signature recovers to the claimed address.
// When auth is disabled the signature is ignored entirely. Writes the error
// response itself and reports whether the request may proceed.
func (s *Server) authorize(w http.ResponseWriter, claimed common.Address, sigHex, action string, fields ...string) bool {
	if !s.cfg.AuthRequired {
		return true
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		respondError(w, http.StatusBadRequest, "invalid signature encoding", "")
		return false
	}

	hash := crypto.RequestHash(action, fields...)
	recovered, err := crypto.RecoverAddress(hash, sig)
	if err != nil || recovered != claimed {
		respondError(w, http.StatusUnauthorized, "signature verification failed", "")
		return false
	}
	return true
}

// respondExchangeError maps ledger errors onto HTTP status codes.
func respondExchangeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, exchange.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "not authorized", err.Error())
	case errors.Is(err, exchange.ErrInsufficientBalance), errors.Is(err, exchange.ErrOrderNotOpen):
		respondError(w, http.StatusConflict, "rejected", err.Error())
	case errors.Is(err, exchange.ErrTransferFailed):
		respondError(w, http.StatusBadGateway, "token transfer failed", err.Error())
	default:
		respondError(w, http.StatusBadRequest, "rejected", err.Error())
	}
}

func toOrderInfo(o exchange.Order) OrderInfo {
	return OrderInfo{
		ID:         o.ID,
		Owner:      o.Owner.Hex(),
		TokenGet:   o.TokenGet.Hex(),
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive.Hex(),
		AmountGive: o.AmountGive,
		Status:     o.Status.String(),
		Timestamp:  o.CreatedAt,
	}
}

func toEventInfo(ev exchange.Event) EventInfo {
	return EventInfo{
		Seq:        ev.Seq,
		Kind:       string(ev.Kind),
		Timestamp:  ev.Timestamp,
		User:       ev.User.Hex(),
		Token:      addrOrEmpty(ev.Token),
		Amount:     ev.Amount,
		Balance:    ev.Balance,
		OrderID:    ev.OrderID,
		TokenGet:   addrOrEmpty(ev.TokenGet),
		AmountGet:  ev.AmountGet,
		TokenGive:  addrOrEmpty(ev.TokenGive),
		AmountGive: ev.AmountGive,
		Maker:      addrOrEmpty(ev.Maker),
		Fee:        ev.Fee,
	}
}

func addrOrEmpty(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// logRequest writes an accepted mutating request to the audit log file
func (s *Server) logRequest(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return // Logging disabled
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event":     eventType,
		"data":      data,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal audit log entry: %v", err)
		return
	}

	// One JSON object per line
	s.txLog.Write(jsonData)
	s.txLog.Write([]byte("\n"))
}
