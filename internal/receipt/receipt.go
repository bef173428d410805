// Package receipt verifies platform purchase receipts before the ledger
// grants anything.  Verification against the real store APIs lives
// outside this service; here a Registry routes each platform to the
// Verifier configured for it.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalid is returned for receipts that fail verification.
var ErrInvalid = errors.New("receipt invalid")

// Claim is what a client asserts about a purchase.
type Claim struct {
	Platform      string
	ProductID     string
	TransactionID string
	Receipt       string
}

// Verifier checks a receipt against its claim.
type Verifier interface {
	Verify(ctx context.Context, c Claim) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, c Claim) error

func (f VerifierFunc) Verify(ctx context.Context, c Claim) error { return f(ctx, c) }

// Registry dispatches verification by platform name (case-insensitive).
type Registry struct {
	byPlatform map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{byPlatform: make(map[string]Verifier)}
}

// Register routes platform to v, replacing any previous verifier.
func (r *Registry) Register(platform string, v Verifier) {
	r.byPlatform[strings.ToLower(strings.TrimSpace(platform))] = v
}

// Platforms lists the registered platforms in sorted order.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.byPlatform))
	for p := range r.byPlatform {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Verify rejects empty receipts and unknown platforms, then delegates.
func (r *Registry) Verify(ctx context.Context, c Claim) error {
	if strings.TrimSpace(c.Receipt) == "" {
		return fmt.Errorf("%w: empty receipt", ErrInvalid)
	}
	v, ok := r.byPlatform[strings.ToLower(strings.TrimSpace(c.Platform))]
	if !ok {
		return fmt.Errorf("%w: unsupported platform %q", ErrInvalid, c.Platform)
	}
	return v.Verify(ctx, c)
}

// Sandbox accepts every non-empty receipt.  Only for development builds.
type Sandbox struct{}

func (Sandbox) Verify(context.Context, Claim) error { return nil }
