package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for layout sessions.
var (
	// ErrIngestion indicates a point, size or color buffer was malformed or
	// rejected by the simulator.
	ErrIngestion = errors.New("dynamo: buffer ingestion rejected")

	// ErrBucketization indicates an edge buffer could not be bucketized or
	// was rejected by the simulator.
	ErrBucketization = errors.New("dynamo: edge bucketization rejected")

	// ErrUnsupportedFeature indicates the caller asked for functionality the
	// session does not implement.
	ErrUnsupportedFeature = errors.New("dynamo: unsupported feature")

	// ErrNotReady indicates a tick was requested before points were committed.
	ErrNotReady = errors.New("dynamo: session not ready")

	// ErrTickInFlight indicates a tick was requested while another one was
	// still running.
	ErrTickInFlight = errors.New("dynamo: tick already in flight")

	// ErrDimensionMismatch indicates a buffer whose stride or length does not
	// match the session.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrUnknownProfile indicates a layout profile lookup failed.
	ErrUnknownProfile = errors.New("dynamo: unknown layout profile")
)

type IngestionError struct {
	Buffer  string
	Wrapped error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Buffer, e.Wrapped)
}

func (e *IngestionError) Unwrap() error { return e.Wrapped }

func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }

type BucketizationError struct {
	Reason  string
	Wrapped error
}

func (e *BucketizationError) Error() string {
	if e.Wrapped == nil {
		return "bucketize edges: " + e.Reason
	}
	return fmt.Sprintf("bucketize edges: %s: %v", e.Reason, e.Wrapped)
}

func (e *BucketizationError) Unwrap() error { return e.Wrapped }

func (e *BucketizationError) Is(target error) bool { return target == ErrBucketization }

type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return "unsupported feature: " + e.Feature
}

func (e *UnsupportedFeatureError) Is(target error) bool { return target == ErrUnsupportedFeature }

// WarningKind classifies non-fatal conditions.
type WarningKind string

const (
	WarnUnknownAlgorithm WarningKind = "unknown_algorithm"
	WarnUnknownParam     WarningKind = "unknown_param"
	WarnInvalidValue     WarningKind = "invalid_value"
	WarnSizeClamped      WarningKind = "size_clamped"
	WarnDeviceFallback   WarningKind = "device_fallback"
)

// Warning is a configuration condition that is reported but never fails the
// operation that produced it.
type Warning struct {
	Kind      WarningKind
	Algorithm string
	Param     string
	Detail    string
}

func (w Warning) String() string {
	s := string(w.Kind)
	if w.Algorithm != "" {
		s += " algorithm=" + w.Algorithm
	}
	if w.Param != "" {
		s += " param=" + w.Param
	}
	if w.Detail != "" {
		s += ": " + w.Detail
	}
	return s
}
