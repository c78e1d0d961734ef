package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// readySelector is the element whose presence signals a fully rendered
// wishlist page. Its absence after the wait deadline is not fatal: the
// partially rendered content is still handed to classification.
const readySelector = "span#profile-list-name"

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "pt-BR,pt;q=0.9,en;q=0.8",
		TimezoneID:     "America/Sao_Paulo",
		Locale:         "pt-BR",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

// withDefaults fills zero-valued option fields from DefaultOptions, so
// callers can set just Headless and Timeout and still get the full
// pt-BR browser profile the wishlist pages are parsed against.
func withDefaults(opts *Options) *Options {
	def := DefaultOptions()
	if opts == nil {
		return def
	}

	merged := *opts
	if merged.Timeout <= 0 {
		merged.Timeout = def.Timeout
	}
	if merged.UserAgent == "" {
		merged.UserAgent = def.UserAgent
	}
	if merged.ViewportWidth <= 0 {
		merged.ViewportWidth = def.ViewportWidth
	}
	if merged.ViewportHeight <= 0 {
		merged.ViewportHeight = def.ViewportHeight
	}
	if merged.AcceptLanguage == "" {
		merged.AcceptLanguage = def.AcceptLanguage
	}
	if merged.TimezoneID == "" {
		merged.TimezoneID = def.TimezoneID
	}
	if merged.Locale == "" {
		merged.Locale = def.Locale
	}
	if merged.ExtraHeaders == nil {
		merged.ExtraHeaders = def.ExtraHeaders
	}
	return &merged
}

func New(opts *Options) (*Browser, error) {
	opts = withDefaults(opts)

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	browserCtx, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: b,
		context: browserCtx,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// FetchRenderedPage navigates a fresh page to url, waits for the
// wishlist ready signal (bounded by timeout), and returns the rendered
// content. The page is closed on every exit path. A missed ready
// signal is tolerated; navigation or content failures are not.
func (b *Browser) FetchRenderedPage(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := b.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if timeout <= 0 {
		timeout = DefaultOptions().Timeout
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := page.Locator(readySelector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		// Error pages and private lists never show the ready signal.
		b.logger.Debug("ready signal not seen before deadline", "url", url)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}

	return content, nil
}

func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
