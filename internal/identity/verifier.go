// Package identity defines the facial verification collaborator. The engine
// never computes photo similarity itself; it only consumes a score from an
// external verifier.
package identity

import (
	"context"

	id "sentra/pkg/domain"
)

// Result is the verdict returned by the external verifier. Score is a
// similarity in [0, 1]; Verified applies the verifier's own threshold.
type Result struct {
	Score    float64
	Verified bool
}

// Verifier compares a submitted photo reference against the agent's enrolled
// reference photo.
type Verifier interface {
	Verify(ctx context.Context, agentID id.AgentID, photoRef string) (Result, error)
}

// StaticVerifier returns a fixed result. Used in development and as a test
// double; production wires the external verification service client here.
type StaticVerifier struct {
	Result Result
	Err    error
}

func (v StaticVerifier) Verify(context.Context, id.AgentID, string) (Result, error) {
	return v.Result, v.Err
}
