package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/xdex-labs/xdex-go/pkg/engine"
	"github.com/xdex-labs/xdex-go/pkg/ledger"
)

// Server exposes the engine's state to the rendering layer: REST snapshots
// of account/depth/spread/orders, POST endpoints that drive the lifecycle
// controller, and a WebSocket stream of snapshot updates and notifications.
type Server struct {
	view       *engine.MarketView
	accounts   *engine.AccountStateStore
	controller *engine.OrderLifecycleController
	scheduler  *engine.RefreshScheduler
	notifier   *engine.StreamNotifier
	router     *mux.Router
	hub        *Hub
	origins    []string
	log        *zap.SugaredLogger
}

func NewServer(view *engine.MarketView, accounts *engine.AccountStateStore, controller *engine.OrderLifecycleController, scheduler *engine.RefreshScheduler, notifier *engine.StreamNotifier, origins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		view:       view,
		accounts:   accounts,
		controller: controller,
		scheduler:  scheduler,
		notifier:   notifier,
		router:     mux.NewRouter(),
		hub:        NewHub(log),
		origins:    origins,
		log:        log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/depth", s.handleGetDepth).Methods("GET")
	api.HandleFunc("/spread", s.handleGetSpread).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOwnOrders).Methods("GET")
	api.HandleFunc("/account", s.handleGetAccount).Methods("GET")

	api.HandleFunc("/instrument", s.handleSelectInstrument).Methods("POST")
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until ctx is cancelled. It also pumps engine updates and
// notifications into the WebSocket hub.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.pumpUpdates(ctx)
	go s.pumpNotifications(ctx)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{Addr: addr, Handler: c.Handler(s.router)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	s.log.Infow("api_server_starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) pumpUpdates(ctx context.Context) {
	updates := s.view.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			s.hub.BroadcastToChannel("market", WSMarketUpdate{Type: "update", Update: u})
		}
	}
}

func (s *Server) pumpNotifications(ctx context.Context) {
	notes := s.notifier.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notes:
			s.hub.BroadcastToChannel("notifications", WSNotification{Type: "notification", Notification: n})
		}
	}
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StateSnapshot{
		Instrument: s.view.Instrument(),
		Asks:       s.view.Depth(ledger.Ask),
		Bids:       s.view.Depth(ledger.Bid),
		Spread:     s.view.Spread(),
		OwnOrders:  s.view.OwnOrders(),
		Account:    s.accounts.Snapshot(),
		Phase:      s.controller.Phase().String(),
	})
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, DepthSnapshot{
		Instrument: s.view.Instrument(),
		Asks:       s.view.Depth(ledger.Ask),
		Bids:       s.view.Depth(ledger.Bid),
	})
}

func (s *Server) handleGetSpread(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.view.Spread())
}

func (s *Server) handleGetOwnOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.view.OwnOrders())
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.accounts.Snapshot())
}

func (s *Server) handleSelectInstrument(w http.ResponseWriter, r *http.Request) {
	var req SelectInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.TokenID == "" {
		respondError(w, http.StatusBadRequest, "missing token_id", "")
		return
	}
	// Detached from the request context: refreshes outlive the response.
	s.scheduler.SelectInstrument(context.Background(), req.TokenID)
	respondJSON(w, SubmitResponse{Status: "selected"})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var err error
	switch req.Type {
	case "limit":
		err = s.controller.PlaceLimitOrder(context.Background(), req.Side, req.Price, req.Quantity)
	case "market":
		err = s.controller.PlaceMarketOrder(context.Background(), req.Side, req.Quantity)
	default:
		respondError(w, http.StatusBadRequest, "unknown order type", req.Type)
		return
	}
	if err != nil {
		respondMutationError(w, err)
		return
	}
	respondJSON(w, SubmitResponse{Status: "submitted"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "missing order_id", "")
		return
	}
	if err := s.controller.CancelOrder(context.Background(), req.OrderID, req.Side); err != nil {
		respondMutationError(w, err)
		return
	}
	respondJSON(w, SubmitResponse{Status: "submitted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func respondMutationError(w http.ResponseWriter, err error) {
	var ve *engine.ValidationError
	var lce *engine.LedgerCallError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, "validation failed", ve.Reason)
	case errors.Is(err, engine.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission in flight", "")
	case errors.As(err, &lce):
		respondError(w, http.StatusBadGateway, "ledger call failed", lce.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
