package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfledger/core"
	"shelfledger/native/market"
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
	codeServerError    = -32000

	codeMarketNotFound     = -32022
	codeMarketUnauthorized = -32023
	codeMarketInvalidState = -32024
	codeMarketConflict     = -32025
	codeMarketInvalidBatch = -32026
	codeMarketInsufficient = -32027
)

type Server struct {
	node   *core.Node
	logger *slog.Logger
}

func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{node: node, logger: logger}
}

// Handler builds the HTTP mux serving the JSON-RPC endpoint plus health and
// metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps an engine failure onto the JSON-RPC error surface
// using the market taxonomy code.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	taxonomy := market.Code(err)
	engineErrorCounter.WithLabelValues(taxonomy).Inc()
	status := http.StatusBadRequest
	code := codeServerError
	switch taxonomy {
	case market.CodeNotFound:
		status, code = http.StatusNotFound, codeMarketNotFound
	case market.CodeUnauthorized:
		status, code = http.StatusForbidden, codeMarketUnauthorized
	case market.CodeInvalidState:
		status, code = http.StatusConflict, codeMarketInvalidState
	case market.CodeInvalidBatch:
		status, code = http.StatusBadRequest, codeMarketInvalidBatch
	case market.CodeInsufficientBalance:
		status, code = http.StatusPaymentRequired, codeMarketInsufficient
	case market.CodeExternalValidationConflict:
		status, code = http.StatusConflict, codeMarketConflict
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, code, taxonomy, err.Error())
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	requestID := uuid.NewString()
	s.logger.Debug("rpc request", "method", req.Method, "requestId", requestID)
	requestCounter.WithLabelValues(req.Method).Inc()

	switch req.Method {
	case "market_registerSlot":
		s.handleRegisterSlot(w, req)
	case "market_updateSlot":
		s.handleUpdateSlot(w, req)
	case "market_activateSlot":
		s.handleSlotActivation(w, req, true)
	case "market_deactivateSlot":
		s.handleSlotActivation(w, req, false)
	case "market_registerListing":
		s.handleRegisterListing(w, req)
	case "market_updateListing":
		s.handleUpdateListing(w, req)
	case "market_activateListing":
		s.handleListingActivation(w, req, true)
	case "market_deactivateListing":
		s.handleListingActivation(w, req, false)
	case "market_placeProducts":
		s.handlePlaceProducts(w, req)
	case "market_makePurchase":
		s.handleMakePurchase(w, req)
	case "market_updateOrderStatus":
		s.handleUpdateOrderStatus(w, req)
	case "market_completeOrder":
		s.handleCompleteOrder(w, req)
	case "market_removeProducts":
		s.handleRemoveProducts(w, req)
	case "market_closeOracle":
		s.handleCloseOracle(w, req)
	case "market_getSlot":
		s.handleGetSlot(w, req)
	case "market_getListing":
		s.handleGetListing(w, req)
	case "market_getOracle":
		s.handleGetOracle(w, req)
	case "market_getEscrowBalance":
		s.handleGetEscrowBalance(w, req)
	case "market_getBalance":
		s.handleGetBalance(w, req)
	case "market_fundAccount":
		s.handleFundAccount(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}
