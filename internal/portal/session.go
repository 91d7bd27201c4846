// Package portal drives the OCIP administration portal through a real
// Chrome instance: one operator-authenticated browser session shared by
// every phase, plus goquery parsing of the rendered pages.
package portal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/common"
)

// Browser owns the Chrome process and the logged-in portal session. The
// portal has no API credentials; an operator completes the login by hand in
// the visible browser window, and every fetch reuses that session.
type Browser struct {
	config *common.PortalConfig
	logger arbor.ILogger

	browserCtx  context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewBrowser creates an unstarted browser for the given portal.
func NewBrowser(config *common.PortalConfig, logger arbor.ILogger) *Browser {
	return &Browser{
		config: config,
		logger: logger,
	}
}

// Start launches Chrome and navigates to the portal's landing page. The
// browser runs headful by default so the operator can log in.
func (b *Browser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("start-maximized", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if b.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.config.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Materialize the browser process before handing the context out.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.cancelCtx = cancelCtx
	b.cancelAlloc = cancelAlloc

	b.logger.Info().
		Str("base_url", b.config.BaseURL).
		Bool("headless", b.config.Headless).
		Msg("Browser session started")

	return nil
}

// Run executes chromedp actions against the shared session, bounded by the
// configured navigation timeout and by the caller's context.
func (b *Browser) Run(ctx context.Context, actions ...chromedp.Action) error {
	if b.browserCtx == nil {
		return fmt.Errorf("browser not started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(b.browserCtx, b.config.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Login navigates to the landing page and blocks until the operator
// confirms the manual login, then verifies the session took.
func (b *Browser) Login(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := b.Run(ctx,
		chromedp.Navigate(b.config.BaseURL),
		chromedp.Sleep(b.config.PageLoadWait),
	); err != nil {
		return fmt.Errorf("failed to open portal landing page: %w", err)
	}

	fmt.Fprintln(out, "Complete the portal login in the browser window, then press ENTER to continue...")
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read login confirmation: %w", err)
	}

	if !b.IsValid(ctx) {
		return fmt.Errorf("portal session not established after login")
	}

	b.logger.Info().Msg("Portal login confirmed")
	return nil
}

// IsValid reports whether the authenticated session still holds. A browser
// bounced to the login page, or any page rendering a password field, means
// the portal no longer honors the session.
func (b *Browser) IsValid(ctx context.Context) bool {
	var location string
	var hasLoginForm bool
	err := b.Run(ctx,
		chromedp.Location(&location),
		chromedp.Evaluate(`document.querySelector("input[type='password']") !== null`, &hasLoginForm),
	)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Session check failed")
		return false
	}
	if location == "" || hasLoginForm {
		return false
	}
	return !strings.Contains(strings.ToLower(location), "/account/login")
}

// Close tears down the browser process.
func (b *Browser) Close() {
	if b.cancelCtx != nil {
		b.cancelCtx()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	b.logger.Debug().Msg("Browser session closed")
}
