// Package browser implements session.Provider on top of a locally launched
// Chromium-family browser driven over the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/chromedp"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/session"
)

// ErrUnsupportedBrowser is returned for a browser name this package cannot
// drive.
var ErrUnsupportedBrowser = errors.New("browser not supported")

var errNotReady = errors.New("document not ready")

// Supported browser names. All are driven through the DevTools protocol.
const (
	Chrome   = "chrome"
	Chromium = "chromium"
	Edge     = "edge"
)

const highlightStyle = "border: 3px solid red;"

// Options configures launched browsers.
type Options struct {
	Name     string
	ExecPath string
	Headless bool
	// ImplicitWait bounds every element lookup.
	ImplicitWait time.Duration
	// PageLoadTimeout bounds navigation and WaitUntilLoaded.
	PageLoadTimeout time.Duration
	// Highlight outlines each element before it is clicked or typed into.
	Highlight bool
}

// DefaultOptions mirror the timeouts the bank pages were tuned against.
func DefaultOptions() Options {
	return Options{
		Name:            Chrome,
		Headless:        true,
		ImplicitWait:    20 * time.Second,
		PageLoadTimeout: 30 * time.Second,
	}
}

// Supported reports whether name can be launched.
func Supported(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Chrome, Chromium, Edge:
		return true
	}
	return false
}

// Provider launches one browser per acquired session.
type Provider struct {
	opts Options
}

// NewProvider validates opts and returns a Provider.
func NewProvider(opts Options) (*Provider, error) {
	if !Supported(opts.Name) {
		return nil, fmt.Errorf("NewProvider: %w: %q", ErrUnsupportedBrowser, opts.Name)
	}
	if opts.Name == Edge && opts.ExecPath == "" {
		return nil, fmt.Errorf("NewProvider: browser %q needs an exec path", opts.Name)
	}
	if opts.ImplicitWait <= 0 || opts.PageLoadTimeout <= 0 {
		return nil, fmt.Errorf("NewProvider: implicit wait and page load timeout must be positive")
	}
	return &Provider{opts: opts}, nil
}

// allocatorOptions builds the launch flags.
func (p *Provider) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", p.opts.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if p.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.opts.ExecPath))
	}
	return opts
}

// Acquire launches a browser and opens a blank tab. The browser lives until
// Release, independent of ctx.
func (p *Provider) Acquire(ctx context.Context) (session.Session, error) {
	log := logger.FromContext(ctx)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), p.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug().Msgf("devtools: "+format, args...)
		}),
	)

	// The first Run starts the browser and ties its lifetime to the context
	// it is given, so it gets browserCtx and is bounded from outside.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	var err error
	select {
	case err = <-started:
	case <-time.After(p.opts.PageLoadTimeout):
		err = fmt.Errorf("browser did not start within %s", p.opts.PageLoadTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("Acquire: launch %s: %w", p.opts.Name, err)
	}

	log.Info().
		Str("browser", p.opts.Name).
		Bool("headless", p.opts.Headless).
		Dur("implicit_wait", p.opts.ImplicitWait).
		Dur("page_load_timeout", p.opts.PageLoadTimeout).
		Msg("Browser session started")

	return &Session{
		opts:          p.opts,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Session is one browser tab. Methods must not be called concurrently.
type Session struct {
	opts Options

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	releaseOnce sync.Once
	releaseErr  error
}

// run executes actions on the browser tab bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	actx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(actx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// GoTo implements bank.Navigator.
func (s *Session) GoTo(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("GoTo %s: %w", url, err)
	}
	return nil
}

// ClickMenuPath implements bank.Navigator.
func (s *Session) ClickMenuPath(ctx context.Context, selectors []string) error {
	log := logger.FromContext(ctx)
	for _, sel := range selectors {
		actions := []chromedp.Action{chromedp.WaitVisible(sel, chromedp.BySearch)}
		if s.opts.Highlight {
			actions = append(actions, chromedp.SetAttributeValue(sel, "style", highlightStyle, chromedp.BySearch))
		}
		actions = append(actions, chromedp.Click(sel, chromedp.BySearch))

		if err := s.run(ctx, s.opts.ImplicitWait, actions...); err != nil {
			return fmt.Errorf("click %s: %w", sel, err)
		}
		log.Debug().Str("selector", sel).Msg("Clicked element")
	}
	return nil
}

// WaitUntilLoaded implements bank.Navigator by polling document.readyState
// until it is "complete" or PageLoadTimeout passes.
func (s *Session) WaitUntilLoaded(ctx context.Context) (bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = s.opts.PageLoadTimeout

	check := func() error {
		var state string
		if err := s.run(ctx, s.opts.ImplicitWait, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if state != "complete" {
			return errNotReady
		}
		return nil
	}

	err := backoff.Retry(check, backoff.WithContext(b, ctx))
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Dur("timeout", s.opts.PageLoadTimeout).Msg("Page did not finish loading")
		return false, nil
	}
}

// WaitUntilVisible implements bank.Navigator.
func (s *Session) WaitUntilVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.opts.ImplicitWait, chromedp.WaitVisible(selector, chromedp.BySearch)); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

// Type implements bank.Navigator. The field is cleared before typing.
func (s *Session) Type(ctx context.Context, selector, text string, secret bool) error {
	actions := []chromedp.Action{chromedp.WaitVisible(selector, chromedp.BySearch)}
	if s.opts.Highlight {
		actions = append(actions, chromedp.SetAttributeValue(selector, "style", highlightStyle, chromedp.BySearch))
	}
	actions = append(actions,
		chromedp.SetValue(selector, "", chromedp.BySearch),
		chromedp.SendKeys(selector, text, chromedp.BySearch),
	)

	if err := s.run(ctx, s.opts.ImplicitWait, actions...); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}

	log := logger.FromContext(ctx)

	ev := log.Debug().Str("selector", selector)
	if secret {
		ev.Msg("Entered secret text")
	} else {
		ev.Str("text", text).Msg("Entered text")
	}
	return nil
}

// Snapshot implements bank.Navigator.
func (s *Session) Snapshot(ctx context.Context, selector string) (string, error) {
	var html string
	if err := s.run(ctx, s.opts.ImplicitWait, chromedp.OuterHTML(selector, &html, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", selector, err)
	}
	return html, nil
}

// Screenshot implements session.Session.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.opts.ImplicitWait, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Release closes the browser. Later calls return the first call's result.
func (s *Session) Release(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		s.releaseErr = chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.allocCancel()
		if s.releaseErr != nil {
			s.releaseErr = fmt.Errorf("Release: %w", s.releaseErr)
			return
		}
		log := logger.FromContext(ctx)
		log.Info().Msg("Browser session closed")
	})
	return s.releaseErr
}
