// Package downstream implements the stateless caller of the classification
// endpoint (spec.md §4.5): send a list of items, receive a list of results
// of equal length in corresponding order, with failures classified into
// Transport/Protocol/Timeout.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/akramsystems/batchproxy/internal/core"
	"github.com/akramsystems/batchproxy/internal/metrics"
	"github.com/akramsystems/batchproxy/internal/replica"
)

type classifyRequest struct {
	Sequences []string `json:"sequences"`
}

type classifyResponse struct {
	Results []string `json:"results"`
}

// Client is stateless aside from a configured endpoint URL, timeout, and
// (optionally) a replica pool. Grounded on
// enesyesil-parallax/cmd/lb/main.go's /submit handler, factored out of the
// HTTP handler into a standalone type.
type Client struct {
	HTTP        *http.Client
	FallbackURL string
	Timeout     time.Duration

	Registry *core.Registry
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// policy is stored behind an atomic.Pointer so POST /downstream/policy
	// can swap it from an HTTP handler goroutine while the dispatcher
	// goroutine is mid-pick, without a dedicated mutex (same single-word
	// discipline as core.StrategyRegistry). A pointer indirection is
	// needed because replica.Policy implementations aren't a single
	// concrete type, and atomic.Value requires one.
	policy atomic.Pointer[replica.Policy]
}

func New(fallbackURL string, timeout time.Duration, reg *core.Registry, pol replica.Policy, mtr *metrics.Metrics, logger *zap.Logger) *Client {
	c := &Client{
		HTTP:        &http.Client{},
		FallbackURL: fallbackURL,
		Timeout:     timeout,
		Registry:    reg,
		Metrics:     mtr,
		Logger:      logger,
	}
	c.SetPolicy(pol)
	return c
}

// SetPolicy swaps the active replica selection policy. Safe to call
// concurrently with Classify.
func (c *Client) SetPolicy(pol replica.Policy) {
	c.policy.Store(&pol)
}

// PolicyName reports the active replica selection policy's name, for
// GET /stats.
func (c *Client) PolicyName() string {
	if p := c.policy.Load(); p != nil && *p != nil {
		return (*p).Name()
	}
	return ""
}

// batchCost is the downstream latency model spec.md §6 attributes to the
// classifier: cost scales with the square of the longest item in the
// batch. It's used purely as a relative ranking signal between replicas,
// not as a millisecond estimate.
func batchCost(items []string) float64 {
	longest := 0
	for _, it := range items {
		if len(it) > longest {
			longest = len(it)
		}
	}
	cost := float64(longest) * float64(longest)
	if cost < 1 {
		cost = 1
	}
	return cost
}

// pick chooses a replica address for a batch of the given cost, and its
// id if the pick came from the registry (empty id means the static
// fallback was used).
func (c *Client) pick(cost float64) (id, addr string) {
	if c.Registry == nil || c.Registry.Len() == 0 {
		return "", c.FallbackURL
	}
	p := c.policy.Load()
	if p == nil || *p == nil {
		return "", c.FallbackURL
	}
	snap := c.Registry.Snapshot()
	r := (*p).Choose(snap, cost)
	if r == nil {
		return "", c.FallbackURL
	}
	return r.ID, r.Addr
}

// Classify sends items to a downstream replica and returns the
// same-length, positionally-corresponding result list, or a classified
// error. No retries at this layer (spec.md §4.5).
func (c *Client) Classify(ctx context.Context, items []string) ([]string, *core.SchedError) {
	cost := batchCost(items)
	id, addr := c.pick(cost)
	if id != "" && c.Registry != nil {
		c.Registry.MarkStart(id)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, schedErr := c.doClassify(reqCtx, addr, items)
	elapsed := time.Since(start)

	if id != "" && c.Registry != nil {
		ema := c.Registry.MarkFinish(id, int(elapsed.Milliseconds()), cost)
		if c.Metrics != nil {
			c.Metrics.ReplicaLoad.WithLabelValues(id).Set(ema)
		}
	}
	if c.Logger != nil {
		fields := []zap.Field{
			zap.String("replica", addr),
			zap.Int("batch_items", len(items)),
			zap.Float64("batch_cost", cost),
			zap.Duration("elapsed", elapsed),
		}
		if schedErr != nil {
			c.Logger.Error("downstream classify failed", append(fields, zap.String("kind", string(schedErr.Kind)), zap.String("error", schedErr.Msg))...)
		} else {
			c.Logger.Debug("downstream classify ok", fields...)
		}
	}
	return result, schedErr
}

func (c *Client) doClassify(ctx context.Context, addr string, items []string) ([]string, *core.SchedError) {
	body, err := json.Marshal(classifyRequest{Sequences: items})
	if err != nil {
		return nil, core.NewError(core.Internal, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, core.NewError(core.Internal, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.NewError(core.DownstreamTimeout, err.Error())
		}
		return nil, core.NewError(core.DownstreamTransport, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewError(core.DownstreamProtocol, fmt.Sprintf("downstream returned status %d", resp.StatusCode))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.NewError(core.DownstreamProtocol, "malformed downstream response: "+err.Error())
	}
	if len(out.Results) != len(items) {
		return nil, core.NewError(core.DownstreamProtocol, fmt.Sprintf("result length %d != batch length %d", len(out.Results), len(items)))
	}
	return out.Results, nil
}
