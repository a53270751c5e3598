package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 8 * time.Second
)

// ResilientConfig configures Resilient.
type ResilientConfig struct {
	// Name labels logs and metrics.
	Name string
	// RatePerSecond of 0 disables limiting.
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	// Timeout bounds one attempt when the call sets none.
	Timeout     time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Resilient wraps a Generator with rate limiting, a per-attempt timeout and
// bounded retries with jittered exponential backoff.
type Resilient struct {
	next    Generator
	cfg     ResilientConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewResilient wraps next. A nil logger is replaced with a no-op.
func NewResilient(next Generator, cfg ResilientConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	r := &Resilient{
		next:    next,
		cfg:     cfg,
		logger:  logger.Named("llm"),
		metrics: NewMetrics(),
		sleep:   sleepContext,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return r
}

// Generate implements Generator.
func (r *Resilient) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := Apply(Options{Timeout: r.cfg.Timeout}, opts...)
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff(attempt)
			r.logger.Debug("retrying generation",
				zap.String("generator", r.cfg.Name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			if err := r.sleep(ctx, wait); err != nil {
				lastErr = wrapError(r.cfg.Name, err, 0)
				break
			}
		}

		text, err := r.attempt(ctx, prompt, o, opts)
		if err == nil {
			r.metrics.Requests.WithLabelValues(r.cfg.Name, "ok").Inc()
			r.metrics.Duration.WithLabelValues(r.cfg.Name).Observe(time.Since(start).Seconds())
			return text, nil
		}
		lastErr = err

		var se *ServiceError
		if !errors.As(err, &se) || !se.Retryable() {
			break
		}
	}

	kind := KindOf(lastErr)
	r.metrics.Requests.WithLabelValues(r.cfg.Name, string(kind)).Inc()
	r.metrics.Duration.WithLabelValues(r.cfg.Name).Observe(time.Since(start).Seconds())
	r.logger.Warn("generation failed",
		zap.String("generator", r.cfg.Name),
		zap.String("kind", string(kind)),
		zap.Error(lastErr),
	)
	return "", lastErr
}

func (r *Resilient) attempt(ctx context.Context, prompt string, o Options, opts []Option) (string, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met.
			return "", &ServiceError{Kind: KindTimeout, Backend: r.cfg.Name, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}
	inner := append(append([]Option(nil), opts...), WithTimeout(0))
	text, err := r.next.Generate(ctx, prompt, inner...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &ServiceError{Kind: KindTimeout, Backend: r.cfg.Name, Err: err}
		}
		return "", wrapError(r.cfg.Name, err, 0)
	}
	return text, nil
}

func (r *Resilient) backoff(attempt int) time.Duration {
	d := r.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
	if d > r.cfg.MaxBackoff || d <= 0 {
		d = r.cfg.MaxBackoff
	}
	// up to 25% jitter
	return d - time.Duration(rand.Int64N(int64(d)/4+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
