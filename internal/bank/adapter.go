// Package bank holds the per-institution adapters. Each adapter knows how to
// log in, reach the unbilled-transactions view, and slice that view's rows
// into records. Page interaction goes through a Navigator.
package bank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/categorize"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/logger"
)

// ErrPageNotLoaded is returned when a page does not finish loading within the
// navigator's page-load ceiling.
var ErrPageNotLoaded = errors.New("page did not finish loading")

// Navigator drives the browser page. Every call may block until the page
// reacts and may fail with a navigation error.
type Navigator interface {
	GoTo(ctx context.Context, url string) error
	// ClickMenuPath clicks each selector in order, waiting for each to be
	// clickable first.
	ClickMenuPath(ctx context.Context, selectors []string) error
	// WaitUntilLoaded blocks until the document is complete. It reports false
	// when the page-load ceiling passes first.
	WaitUntilLoaded(ctx context.Context) (bool, error)
	WaitUntilVisible(ctx context.Context, selector string) error
	// Type replaces the field's value with text. Secret text is never logged.
	Type(ctx context.Context, selector, text string, secret bool) error
	// Snapshot returns the outer HTML of the first element matching selector.
	Snapshot(ctx context.Context, selector string) (string, error)
}

// Adapter is one institution's implementation of the pipeline steps.
type Adapter interface {
	Name() string
	Login(ctx context.Context, nav Navigator) error
	Navigate(ctx context.Context, nav Navigator) error
	ExtractRows(ctx context.Context, nav Navigator) ([]domain.TransactionRecord, error)
	Logout(ctx context.Context, nav Navigator) error
}

// PendingPolicy controls how an adapter treats the "PEND" placeholder in the
// amount cell. The date-side placeholder is always replaced with today.
type PendingPolicy struct {
	SkipPendingAmount bool
}

// Settings configures one adapter.
type Settings struct {
	URL      string
	Username string
	Password string

	// SkipPendingAmount overrides the adapter's default pending policy when set.
	SkipPendingAmount *bool
	// Selectors overrides individual default selectors by key.
	Selectors map[string]string

	Categorizer *categorize.Categorizer
	Clock       func() time.Time
}

func (s Settings) clock() func() time.Time {
	if s.Clock != nil {
		return s.Clock
	}
	return time.Now
}

func (s Settings) categorizer() *categorize.Categorizer {
	if s.Categorizer != nil {
		return s.Categorizer
	}
	return categorize.New()
}

func (s Settings) pending(def bool) PendingPolicy {
	if s.SkipPendingAmount != nil {
		return PendingPolicy{SkipPendingAmount: *s.SkipPendingAmount}
	}
	return PendingPolicy{SkipPendingAmount: def}
}

// Selectors maps a selector key to an XPath or CSS expression. Row and cell
// keys are CSS, since they are applied to a DOM snapshot.
type Selectors map[string]string

// merge returns defaults with overrides applied. Unknown keys are rejected so
// a typo in config does not silently keep a stale default.
func (d Selectors) merge(overrides map[string]string) (Selectors, error) {
	out := make(Selectors, len(d))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range overrides {
		key := strings.ToLower(k)
		if _, ok := d[key]; !ok {
			return nil, fmt.Errorf("unknown selector %q", k)
		}
		if strings.TrimSpace(v) != "" {
			out[key] = v
		}
	}
	return out, nil
}

// Selector keys shared by the adapters.
const (
	SelUsername    = "username"
	SelPassword    = "password"
	SelLoginButton = "login_button"
	SelLogout      = "logout_button"
	SelTransaction = "transactions"
	SelRows        = "rows"
	SelCells       = "cells"
)

type constructor func(Settings) (Adapter, error)

var registry = map[string]constructor{
	"bca":  func(s Settings) (Adapter, error) { return NewBCA(s) },
	"cimb": func(s Settings) (Adapter, error) { return NewCIMB(s) },
}

// New builds the adapter registered under name (case insensitive).
func New(name string, s Settings) (Adapter, error) {
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("bank.New: unsupported bank %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return c(s)
}

// Names lists the supported bank keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// login runs the shared login shape: open the page, fill the form, submit.
func login(ctx context.Context, nav Navigator, bank, url, username, password string, sel Selectors) error {
	log := logger.FromContext(ctx)

	if err := nav.GoTo(ctx, url); err != nil {
		return fmt.Errorf("%s login: open %s: %w", bank, url, err)
	}
	if err := waitLoaded(ctx, nav); err != nil {
		return fmt.Errorf("%s login: %w", bank, err)
	}
	log.Info().Str("url", url).Msg("Navigated to login page")

	if err := nav.Type(ctx, sel[SelUsername], username, false); err != nil {
		return fmt.Errorf("%s login: enter username: %w", bank, err)
	}
	if err := nav.Type(ctx, sel[SelPassword], password, true); err != nil {
		return fmt.Errorf("%s login: enter password: %w", bank, err)
	}
	if err := nav.ClickMenuPath(ctx, []string{sel[SelLoginButton]}); err != nil {
		return fmt.Errorf("%s login: click login button: %w", bank, err)
	}
	if err := waitLoaded(ctx, nav); err != nil {
		return fmt.Errorf("%s login: %w", bank, err)
	}

	log.Info().Msg("Login completed")
	return nil
}

func logout(ctx context.Context, nav Navigator, bank string, sel Selectors) error {
	if err := nav.ClickMenuPath(ctx, []string{sel[SelLogout]}); err != nil {
		return fmt.Errorf("%s logout: %w", bank, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Msg("Logout completed")
	return nil
}

func waitLoaded(ctx context.Context, nav Navigator) error {
	ok, err := nav.WaitUntilLoaded(ctx)
	if err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	if !ok {
		return ErrPageNotLoaded
	}
	return nil
}
