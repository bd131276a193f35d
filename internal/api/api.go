// Package api provides HTTP handlers and the main API server logic for
// Caredesk.
//
// It exposes RESTful endpoints for chat turns, behavior events, proactive
// prompt evaluation and the admin escalation view. The API wires together
// the store, genai, orders, knowledge, chat and behavior modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caredesk/caredesk/internal/behavior"
	"github.com/caredesk/caredesk/internal/chat"
	"github.com/caredesk/caredesk/internal/genai"
	"github.com/caredesk/caredesk/internal/knowledge"
	"github.com/caredesk/caredesk/internal/notify"
	"github.com/caredesk/caredesk/internal/orders"
	"github.com/caredesk/caredesk/internal/scheduler"
	"github.com/caredesk/caredesk/internal/store"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server carries the service dependencies shared by the HTTP handlers.
type Server struct {
	addr        string
	st          store.Store
	chatSvc     *chat.Service
	behaviorSvc *behavior.Engine
}

// NewServer assembles a server from already constructed services.
func NewServer(st store.Store, chatSvc *chat.Service, behaviorSvc *behavior.Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{addr: cfg.Addr, st: st, chatSvc: chatSvc, behaviorSvc: behaviorSvc}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /api/chat", s.chatHandler)
	mux.HandleFunc("POST /api/chat/proactive", s.proactiveChatHandler)
	mux.HandleFunc("GET /api/chat/{conversationID}/messages", s.messagesHandler)
	mux.HandleFunc("POST /api/chat/{conversationID}/escalate", s.escalateHandler)

	mux.HandleFunc("POST /api/behavior/log", s.behaviorLogHandler)
	mux.HandleFunc("POST /api/behavior/evaluate", s.behaviorEvaluateHandler)
	mux.HandleFunc("POST /api/behavior/engagement", s.behaviorEngagementHandler)

	mux.HandleFunc("GET /api/admin/escalations", s.escalationsHandler)
	mux.HandleFunc("GET /api/order/{orderID}", s.orderStatusHandler)
	return mux
}

// Run builds every module from the provided options and serves HTTP until
// the listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, notifyOpts []notify.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	// The pipeline stays available without a model: every generative path
	// has a deterministic fallback.
	var gen genai.ClientInterface
	if client, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("API Run: GenAI client unavailable, using heuristic replies", "error", err)
	} else {
		gen = client
	}

	var notifier notify.Notifier
	if n, err := notify.NewTwilioNotifier(notifyOpts...); err != nil {
		slog.Warn("API Run: Twilio notifier unavailable, escalation alerts disabled", "error", err)
		notifier = notify.NoopNotifier{}
	} else {
		notifier = n
	}

	// The synthetic order-status endpoint served below doubles as the
	// fallback provider.
	fallback := orders.NewStatusClient(fmt.Sprintf("http://localhost%s/api", cfg.Addr))
	resolver := orders.NewResolver(st, fallback)

	var retriever *knowledge.Retriever
	if gen != nil {
		retriever = knowledge.NewRetriever(st, gen)
	}

	chatSvc := chat.NewService(st, gen, resolver, retriever, notifier)
	behaviorSvc := behavior.NewEngine(st, gen)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddRetentionSweep(scheduler.DefaultRetentionSchedule, st, scheduler.DefaultRetentionAge); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	srv := NewServer(st, chatSvc, behaviorSvc, WithAddr(cfg.Addr))
	slog.Info("Caredesk API listening", "addr", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, srv.Handler())
}
