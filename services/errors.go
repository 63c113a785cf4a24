package services

import "fmt"

// ErrorKind classifies pipeline failures for the webhook response.
type ErrorKind int

const (
	// KindMissingIdentity means the payload had no usable email. Rejected
	// before any backend call.
	KindMissingIdentity ErrorKind = iota
	// KindUnknownBiome means the named biome does not exist and the policy
	// forbids creating it.
	KindUnknownBiome
	// KindBackend covers any failed call to the CMS, including validation
	// rejections and timeouts.
	KindBackend
	// KindGateway covers a payment-gateway call that did not report success.
	KindGateway
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingIdentity:
		return "MissingIdentity"
	case KindUnknownBiome:
		return "UnknownBiome"
	case KindBackend:
		return "Backend"
	case KindGateway:
		return "Gateway"
	default:
		return "Unknown"
	}
}

// PipelineError is the terminal Failed(kind) of a notification, recording
// the state the pipeline had reached when the step failed.
type PipelineError struct {
	Kind  ErrorKind
	State State
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s (%s): %v", e.State, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
