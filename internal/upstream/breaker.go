package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("upstream circuit open")

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval clears the failure counts while closed. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// StatusError is a 5xx response, counted as a breaker failure.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Metrics exports breaker state per breaker name.
type Metrics struct {
	state *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drawer_upstream_breaker_state",
			Help: "Current state of the upstream circuit breaker (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}
	if reg != nil {
		reg.MustRegister(m.state)
	}
	return m
}

func (m *Metrics) set(name string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(name).Set(stateToFloat(state))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Client sends HTTP requests through a circuit breaker. Transport errors and 5xx
// responses count as failures; 4xx responses are returned to the caller untouched.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	name    string
}

func NewClient(httpClient *http.Client, cfg BreakerConfig, logger *slog.Logger, metrics *Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.set(name, to)
		},
	}
	metrics.set(cfg.Name, gobreaker.StateClosed)

	return &Client{
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:  logger,
		name:    cfg.Name,
	}
}

// isSuccessful ignores callers that cancelled their own request; that says
// nothing about the upstream.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Do executes req. The caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.WarnContext(req.Context(), "Upstream call rejected by circuit breaker", slog.String("breaker", c.name))
		return nil, fmt.Errorf("%s: %w", c.name, ErrOpen)
	}
	return resp, err
}

func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) Name() string {
	return c.name
}
