package resilient

import (
	"context"
	"time"

	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/logger"
)

// Classifier reports whether a call failure is transient. Transient failures
// are retried and count toward the breaker; everything else surfaces
// immediately and leaves the breaker alone.
type Classifier func(error) bool

// Call performs one attempt against the remote endpoint.
type Call func(ctx context.Context) ([]byte, error)

type Config struct {
	Endpoint         string
	MaxAttempts      int
	BackoffDelays    []time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
	ConnectTimeout   time.Duration
	ResponseTimeout  time.Duration
}

// DefaultConfig returns the exchange-wide retry and breaker constants.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:         endpoint,
		MaxAttempts:      3,
		BackoffDelays:    []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		ConnectTimeout:   5 * time.Second,
		ResponseTimeout:  30 * time.Second,
	}
}

// Client wraps an outbound call with a per-endpoint circuit breaker and a
// bounded retry loop.
type Client struct {
	cfg      Config
	breaker  *Breaker
	classify Classifier
	logger   *logger.Logger
}

func NewClient(cfg Config, classify Classifier, log *logger.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Client{
		cfg:      cfg,
		breaker:  NewBreaker(cfg.Endpoint, cfg.FailureThreshold, cfg.ResetTimeout),
		classify: classify,
		logger:   log,
	}
}

// Breaker exposes the client's breaker, mainly for state instrumentation.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Do executes the call under the breaker. Transient failures are retried
// with the configured backoff; exhausting every attempt counts as a single
// breaker failure. Permanent failures surface immediately without touching
// the breaker counter. The context is checked before every attempt and every
// backoff sleep.
func (c *Client) Do(ctx context.Context, call Call) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			c.breaker.Abandon()
			return nil, errors.Transient("call cancelled", err)
		}

		body, err := c.attempt(ctx, call)
		if err == nil {
			c.breaker.RecordSuccess()
			return body, nil
		}

		if !c.classify(err) {
			// The endpoint answered; the request itself is at fault.
			c.breaker.RecordPermanent()
			return nil, err
		}

		lastErr = err
		c.logger.Debug("transient failure, will retry",
			"endpoint", c.cfg.Endpoint,
			"attempt", attempt+1,
			"error", err.Error())

		if attempt < c.cfg.MaxAttempts-1 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				c.breaker.Abandon()
				return nil, errors.Transient("call cancelled during backoff", err)
			}
		}
	}

	c.breaker.RecordFailure()
	return nil, errors.Transient("attempts exhausted", lastErr)
}

func (c *Client) attempt(ctx context.Context, call Call) ([]byte, error) {
	attemptCtx := ctx
	if c.cfg.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.ResponseTimeout)
		defer cancel()
	}
	return call(attemptCtx)
}

func (c *Client) backoff(attempt int) time.Duration {
	if len(c.cfg.BackoffDelays) == 0 {
		return 0
	}
	if attempt >= len(c.cfg.BackoffDelays) {
		return c.cfg.BackoffDelays[len(c.cfg.BackoffDelays)-1]
	}
	return c.cfg.BackoffDelays[attempt]
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
