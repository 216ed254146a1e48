// Package aiclient asks a generative model for a current-vs-counterfactual
// projection under a strict response schema and falls back to the heuristic
// model on any failure. Callers always get a valid projection.
package aiclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Skufu/DiabetView/internal/observability"
	"github.com/Skufu/DiabetView/internal/projection"
)

// maxSharedAttempt bounds a coalesced call once no caller's ctx governs it.
const maxSharedAttempt = 2 * time.Minute

const (
	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Provider     string
	GeminiAPIKey string
	OpenAIAPIKey string
	Model        string
	BaseURL      string
	Timeout      time.Duration
}

// Projector is implemented by both client variants.
type Projector interface {
	Project(ctx context.Context, profile projection.PatientProfile, intervention projection.Intervention) projection.Projection
	Attempt(ctx context.Context, profile projection.PatientProfile, intervention projection.Intervention) Outcome
}

// Backend performs one call to a model and returns its raw text. Errors wrap
// ErrTransport or ErrSchema.
type Backend interface {
	Provider() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type options struct {
	cache    Cache
	recorder Recorder
	metrics  *observability.Metrics
}

type Option func(*options)

func WithCache(c Cache) Option { return func(o *options) { o.cache = c } }

func WithRecorder(r Recorder) Option { return func(o *options) { o.recorder = r } }

func WithMetrics(m *observability.Metrics) Option { return func(o *options) { o.metrics = m } }

// New picks the client variant once, at construction. Without a usable key
// the Unconfigured variant is returned and no request is ever attempted.
func New(cfg Config, logger *zap.Logger, opts ...Option) (Projector, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAuto
	}

	var backend Backend
	switch provider {
	case ProviderAuto:
		switch {
		case cfg.GeminiAPIKey != "":
			backend = NewGemini(cfg.BaseURL, cfg.GeminiAPIKey, cfg.Model, cfg.Timeout)
		case cfg.OpenAIAPIKey != "":
			backend = NewOpenAI(cfg.BaseURL, cfg.OpenAIAPIKey, cfg.Model, cfg.Timeout)
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey != "" {
			backend = NewGemini(cfg.BaseURL, cfg.GeminiAPIKey, cfg.Model, cfg.Timeout)
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey != "" {
			backend = NewOpenAI(cfg.BaseURL, cfg.OpenAIAPIKey, cfg.Model, cfg.Timeout)
		}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}

	if backend == nil {
		logger.Warn("no AI API key found, projections use the heuristic model", zap.String("provider", provider))
		return NewUnconfigured(logger, opts...), nil
	}

	logger.Info("AI projection client configured",
		zap.String("provider", backend.Provider()),
		zap.String("model", backend.Model()),
	)
	return NewConfigured(backend, logger, opts...), nil
}

type Unconfigured struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewUnconfigured(logger *zap.Logger, opts ...Option) *Unconfigured {
	o := applyOptions(opts)
	return &Unconfigured{logger: logger, metrics: o.metrics}
}

func (u *Unconfigured) Attempt(context.Context, projection.PatientProfile, projection.Intervention) Outcome {
	return Outcome{Kind: KindUnconfigured, Err: ErrUnconfigured}
}

func (u *Unconfigured) Project(ctx context.Context, profile projection.PatientProfile, intervention projection.Intervention) projection.Projection {
	u.metrics.Projection(string(projection.SourceHeuristic), string(KindUnconfigured))
	return fallback(profile, intervention, KindUnconfigured)
}

type Configured struct {
	backend  Backend
	logger   *zap.Logger
	cache    Cache
	recorder Recorder
	metrics  *observability.Metrics
	group    singleflight.Group
}

func NewConfigured(backend Backend, logger *zap.Logger, opts ...Option) *Configured {
	o := applyOptions(opts)
	return &Configured{
		backend:  backend,
		logger:   logger.With(zap.String("provider", backend.Provider()), zap.String("model", backend.Model())),
		cache:    o.cache,
		recorder: o.recorder,
		metrics:  o.metrics,
	}
}

// Attempt makes exactly one model call and reports its tagged outcome
// without falling back.
func (c *Configured) Attempt(ctx context.Context, profile projection.PatientProfile, intervention projection.Intervention) Outcome {
	prompt := BuildPrompt(profile, intervention)

	start := time.Now()
	text, err := c.backend.Generate(ctx, prompt)
	var result projection.SimulationResult
	if err == nil {
		result, err = Parse(text)
	}
	latency := time.Since(start)

	outcome := Outcome{Kind: classify(err), Result: result, Err: err}
	c.metrics.AIAttempt(c.backend.Provider(), string(outcome.Kind), latency)
	if err != nil {
		c.logger.Warn("AI projection failed", zap.String("outcome", string(outcome.Kind)), zap.Error(err))
	}
	c.record(ctx, prompt, outcome, latency)

	return outcome
}

// Project never fails: cache hit, fresh AI answer, or heuristic fallback.
func (c *Configured) Project(ctx context.Context, profile projection.PatientProfile, intervention projection.Intervention) projection.Projection {
	key := Fingerprint(c.backend.Provider(), c.backend.Model(), profile, intervention)

	if cached, ok := c.lookup(ctx, key); ok {
		c.metrics.Projection(string(projection.SourceCache), string(KindOK))
		return projection.Projection{SimulationResult: cached, Source: projection.SourceCache}
	}

	outcome := c.coalesce(ctx, key, profile, intervention)

	switch outcome.Kind {
	case KindOK:
		c.store(ctx, key, outcome.Result)
		c.metrics.Projection(string(projection.SourceAI), string(KindOK))
		return projection.Projection{SimulationResult: outcome.Result, Source: projection.SourceAI}
	case KindSchemaError, KindTransportError, KindUnconfigured:
		c.metrics.Projection(string(projection.SourceHeuristic), string(outcome.Kind))
		return fallback(profile, intervention, outcome.Kind)
	default:
		c.logger.Error("unexpected AI outcome", zap.String("outcome", string(outcome.Kind)))
		return fallback(profile, intervention, outcome.Kind)
	}
}

// coalesce shares one model call between concurrent identical requests. The
// call runs detached from any single caller, and each caller stops waiting
// when its own ctx ends.
func (c *Configured) coalesce(ctx context.Context, key string, profile projection.PatientProfile, intervention projection.Intervention) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: KindTransportError, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), maxSharedAttempt)
		defer cancel()
		return c.Attempt(shared, profile, intervention), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Outcome)
	case <-ctx.Done():
		return Outcome{Kind: KindTransportError, Err: fmt.Errorf("%w: %v", ErrTransport, ctx.Err())}
	}
}

func (c *Configured) lookup(ctx context.Context, key string) (projection.SimulationResult, bool) {
	if c.cache == nil {
		return projection.SimulationResult{}, false
	}
	result, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("projection cache read failed", zap.Error(err))
		return projection.SimulationResult{}, false
	}
	if ok {
		c.metrics.CacheHit()
	} else {
		c.metrics.CacheMiss()
	}
	return result, ok
}

func (c *Configured) store(ctx context.Context, key string, result projection.SimulationResult) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, result); err != nil {
		c.logger.Warn("projection cache write failed", zap.Error(err))
	}
}

func (c *Configured) record(ctx context.Context, prompt string, outcome Outcome, latency time.Duration) {
	if c.recorder == nil {
		return
	}
	rec := AttemptRecord{
		Provider: c.backend.Provider(),
		Model:    c.backend.Model(),
		Kind:     outcome.Kind,
		Prompt:   prompt,
		Err:      outcome.Err,
		Latency:  latency,
	}
	if outcome.Kind == KindOK {
		result := outcome.Result
		rec.Result = &result
	}

	// The attempt may have been cut short by ctx; the log entry should still land.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.recorder.Record(recCtx, rec); err != nil {
		c.logger.Warn("projection log write failed", zap.Error(err))
	}
}

func fallback(profile projection.PatientProfile, intervention projection.Intervention, kind Kind) projection.Projection {
	return projection.Projection{
		SimulationResult: projection.Project(profile, intervention),
		Source:           projection.SourceHeuristic,
		Reason:           string(kind),
	}
}

// Fingerprint identifies a projection request for caching and coalescing.
func Fingerprint(provider, model string, profile projection.PatientProfile, intervention projection.Intervention) string {
	raw, _ := json.Marshal(struct {
		Provider     string                    `json:"provider"`
		Model        string                    `json:"model"`
		Profile      projection.PatientProfile `json:"profile"`
		Intervention projection.Intervention   `json:"intervention"`
	}{provider, model, profile, intervention})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
