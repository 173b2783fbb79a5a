// Package session defines the browser session the pipeline drives. A session
// is exclusively owned by one pipeline run from Acquire until Release.
package session

import (
	"context"

	"github.com/dvloznov/unbilled-sync/internal/bank"
)

// Session is a live browser page.
type Session interface {
	bank.Navigator
	// Screenshot captures the visible page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Release ends the session. It is safe to call more than once.
	Release(ctx context.Context) error
}

// Provider creates sessions.
type Provider interface {
	Acquire(ctx context.Context) (Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Session, error)

// Acquire implements Provider.
func (f ProviderFunc) Acquire(ctx context.Context) (Session, error) { return f(ctx) }
