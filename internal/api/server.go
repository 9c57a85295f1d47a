// Package api is the proxy's HTTP surface: request intake
// (POST /proxy_classify), the control surface (strategy and replica-policy
// switches), and operational endpoints (health, metrics, stats).
// Grounded on shambharkar-siddhant-LockServer/internal/api/http.go's
// Server{mux}/withRequestID/readJSON/writeJSON/writeErr shape, with the
// handler bodies themselves ported from enesyesil-parallax/cmd/lb/main.go's
// inline /submit, /mode, /stats, /register closures.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akramsystems/batchproxy/internal/core"
	"github.com/akramsystems/batchproxy/internal/metrics"
	"github.com/akramsystems/batchproxy/internal/replica"
)

// TenantHeader is the dedicated HTTP header carrying the tenant id
// (spec.md §3, §6).
const TenantHeader = "X-Customer-Id"

// DefaultTenant is used when TenantHeader is absent or empty.
const DefaultTenant = "default"

type contextKey string

const requestIDKey contextKey = "req_id"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Server holds the wiring the HTTP surface needs: nothing here owns the
// dispatcher loop, it only enqueues tickets and reads shared registries.
type Server struct {
	Queue      *core.PendingQueue
	Strategies *core.StrategyRegistry
	Downstream *core.Registry
	Stats      *core.Stats
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	SetPolicy  func(replica.Policy)
	PolicyName func() string

	mux *http.ServeMux
}

// NewServer wires the routes and returns the composed handler chain.
func NewServer(s *Server) *Server {
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/proxy_classify", s.handleProxyClassify)
	s.mux.HandleFunc("/strategy", s.handleStrategy)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/downstream/register", s.handleDownstreamRegister)
	s.mux.HandleFunc("/downstream/policy", s.handleDownstreamPolicy)
}

// MountMetrics attaches the Prometheus exposition handler. Kept separate
// from routes() because cmd/proxy/main.go owns the *prometheus.Registry
// this handler is built from (mirrors enesyesil-parallax/cmd/lb/main.go
// registering promhttp.HandlerFor against a dedicated registry rather than
// the global default one).
func (s *Server) MountMetrics(h http.Handler) {
	s.mux.Handle("/metrics", h)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProxyClassify is the Request Frontend (spec.md §4.1): construct a
// ticket, enqueue it, block on the completion handle, respond with the
// downstream result annotated with proxy_latency_ms.
func (s *Server) handleProxyClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		writeErr(w, core.BadRequest.HTTPStatus(), "failed to read body")
		return
	}
	defer r.Body.Close()
	if len(body) == 0 {
		writeErr(w, core.BadRequest.HTTPStatus(), "empty request body")
		return
	}

	tenant := r.Header.Get(TenantHeader)
	if tenant == "" {
		tenant = DefaultTenant
	}

	ticket := core.NewTicket(tenant, string(body))
	s.Queue.Enqueue(ticket)
	if s.Metrics != nil {
		s.Metrics.QueueDepth.Set(float64(s.Queue.Depth()))
	}

	select {
	case outcome := <-ticket.Handle.Wait():
		elapsed := time.Since(start)
		if s.Metrics != nil {
			s.Metrics.ProxyLatencyMS.Observe(float64(elapsed.Milliseconds()))
		}
		latencyMS := float64(elapsed.Microseconds()) / 1000.0
		if outcome.Err != nil {
			if s.Metrics != nil {
				s.Metrics.RequestsTotal.WithLabelValues("error").Inc()
			}
			if s.Logger != nil {
				s.Logger.Warn("proxy_classify failed",
					zap.String("tenant_id", tenant),
					zap.String("strategy", string(s.Strategies.Current())),
					zap.Float64("latency_ms", latencyMS),
					zap.String("kind", string(outcome.Err.Kind)),
				)
			}
			writeErr(w, outcome.Err.Kind.HTTPStatus(), outcome.Err.Error())
			return
		}
		if s.Metrics != nil {
			s.Metrics.RequestsTotal.WithLabelValues("ok").Inc()
		}
		if s.Logger != nil {
			s.Logger.Debug("proxy_classify ok",
				zap.String("tenant_id", tenant),
				zap.String("strategy", string(s.Strategies.Current())),
				zap.Float64("latency_ms", latencyMS),
			)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"result":           outcome.Result,
			"proxy_latency_ms": latencyMS,
		})

	case <-r.Context().Done():
		// Caller cancelled. The ticket is not removed from the queue
		// (spec.md §5): it will still be dispatched, its result simply
		// has no reader left.
		if s.Metrics != nil {
			s.Metrics.RequestsTotal.WithLabelValues("cancelled").Inc()
		}
	}
}

// handleStrategy is the Control Surface's queue-strategy operations
// (spec.md §4.4).
func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, string(s.Strategies.Current()))

	case http.MethodPost:
		var name string
		if err := readJSON(r, &name); err != nil {
			writeErr(w, http.StatusBadRequest, "malformed strategy body: "+err.Error())
			return
		}
		strat, err := core.ParseStrategy(name)
		if err != nil {
			var se *core.SchedError
			if errors.As(err, &se) {
				writeErr(w, se.Kind.HTTPStatus(), se.Error())
				return
			}
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s.Strategies.Set(strat)
		if s.Logger != nil {
			s.Logger.Info("strategy changed", zap.String("strategy", string(strat)))
		}
		writeJSON(w, http.StatusOK, string(strat))

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStats reports the queue strategy, replica policy, the aggregate
// rolling latency/throughput snapshot, and a per-strategy breakdown of
// the same window so switching PROXY_STRATEGY has an observable before
// and after (SPEC_FULL.md §4.4 addition).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	rps, p50, p95, count := s.Stats.Snapshot(now)

	type repStat struct {
		ID       string  `json:"id"`
		Addr     string  `json:"addr"`
		InFlight int     `json:"in_flight"`
		LoadEMA  float64 `json:"load_ema_ms"`
	}

	type stratStat struct {
		Strategy string  `json:"strategy"`
		Samples  int     `json:"samples"`
		RPS      float64 `json:"rps"`
		P50Ms    float64 `json:"p50_ms"`
		P95Ms    float64 `json:"p95_ms"`
	}

	resp := struct {
		QueueDepth    int         `json:"queue_depth"`
		Strategy      string      `json:"strategy"`
		ReplicaPolicy string      `json:"replica_policy"`
		Samples       int         `json:"samples"`
		RPS           float64     `json:"rps"`
		P50Ms         float64     `json:"p50_ms"`
		P95Ms         float64     `json:"p95_ms"`
		ByStrategy    []stratStat `json:"by_strategy"`
		Replicas      []repStat   `json:"replicas"`
	}{
		QueueDepth: s.Queue.Depth(),
		Strategy:   string(s.Strategies.Current()),
		Samples:    count,
		RPS:        rps,
		P50Ms:      p50 * 1000.0,
		P95Ms:      p95 * 1000.0,
	}
	if s.PolicyName != nil {
		resp.ReplicaPolicy = s.PolicyName()
	}
	for _, ss := range s.Stats.PerStrategy(now) {
		resp.ByStrategy = append(resp.ByStrategy, stratStat{
			Strategy: string(ss.Strategy),
			Samples:  ss.Count,
			RPS:      ss.RPS,
			P50Ms:    ss.P50 * 1000.0,
			P95Ms:    ss.P95 * 1000.0,
		})
	}
	if s.Downstream != nil {
		for _, rep := range s.Downstream.Snapshot() {
			resp.Replicas = append(resp.Replicas, repStat{
				ID:       rep.ID,
				Addr:     rep.Addr,
				InFlight: rep.InFlight,
				LoadEMA:  rep.LoadEMA,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerReq struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// handleDownstreamRegister registers or refreshes a downstream replica
// (SPEC_FULL.md §4.4).
func (s *Server) handleDownstreamRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req registerReq
	if err := readJSON(r, &req); err != nil || req.ID == "" || req.Addr == "" {
		writeErr(w, http.StatusBadRequest, "id and addr required")
		return
	}
	s.Downstream.Upsert(core.Replica{ID: req.ID, Addr: req.Addr})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleDownstreamPolicy switches the replica selection policy
// (SPEC_FULL.md §4.4), independent of the queue strategy.
func (s *Server) handleDownstreamPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var name string
	if err := readJSON(r, &name); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed policy body: "+err.Error())
		return
	}
	pol, err := replica.New(name)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.SetPolicy != nil {
		s.SetPolicy(pol)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func readJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("missing body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
