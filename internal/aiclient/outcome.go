package aiclient

import (
	"context"
	"errors"
	"time"

	"github.com/Skufu/DiabetView/internal/projection"
)

var (
	// ErrTransport covers network failures, non-2xx answers and responses
	// without a candidate.
	ErrTransport = errors.New("ai transport failure")
	// ErrSchema covers replies that do not match the declared schema.
	ErrSchema = errors.New("ai schema violation")
	// ErrUnconfigured is reported when no credential is available.
	ErrUnconfigured = errors.New("ai client unconfigured")
)

type Kind string

const (
	KindOK             Kind = "ok"
	KindSchemaError    Kind = "schema_error"
	KindTransportError Kind = "transport_error"
	KindUnconfigured   Kind = "unconfigured"
)

// Outcome is the tagged result of a single attempt. Result is only
// meaningful when Kind is KindOK.
type Outcome struct {
	Kind   Kind
	Result projection.SimulationResult
	Err    error
}

func classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrSchema):
		return KindSchemaError
	case errors.Is(err, ErrUnconfigured):
		return KindUnconfigured
	default:
		return KindTransportError
	}
}

// AttemptRecord is what a Recorder receives for every model call.
type AttemptRecord struct {
	Provider string
	Model    string
	Kind     Kind
	Prompt   string
	Err      error
	Result   *projection.SimulationResult
	Latency  time.Duration
}

type Recorder interface {
	Record(ctx context.Context, rec AttemptRecord) error
}

// Cache stores successful projections by input fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (projection.SimulationResult, bool, error)
	Set(ctx context.Context, key string, result projection.SimulationResult) error
}
