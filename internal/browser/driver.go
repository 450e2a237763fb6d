// File: internal/browser/driver.go
// Description: Playwright-backed implementation of the scraper's driver
// interfaces. Runs a persistent Chromium context with a stealth init script
// so the portal sees a regular interactive browser.
package browser

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"sigitm-exporter/internal/config"
	"sigitm-exporter/internal/scraper"
)

// Automation fingerprints the portal's front end is known to probe for.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', { get: () => ['pt-BR', 'pt', 'en-US'] });
`

// Driver owns the playwright engine for the lifetime of one session.
type Driver struct {
	pw     *playwright.Playwright
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewDriver starts the playwright engine. The caller must Stop it.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright engine: %w", err)
	}
	return &Driver{pw: pw, cfg: cfg, logger: logger.Named("browser")}, nil
}

// Launch opens the persistent Chromium context and returns it with its
// initial page.
func (d *Driver) Launch() (scraper.Browser, scraper.Page, error) {
	for _, dir := range []string{d.cfg.ProfileDir, d.cfg.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:        playwright.Bool(d.cfg.Headless),
		AcceptDownloads: playwright.Bool(true),
		UserAgent:       playwright.String(d.cfg.UserAgent),
		Viewport: &playwright.Size{
			Width:  d.cfg.ViewportWidth,
			Height: d.cfg.ViewportHeight,
		},
		IgnoreHttpsErrors: playwright.Bool(true),
		Args:              d.cfg.Args,
	}

	bctx, err := d.pw.Chromium.LaunchPersistentContext(d.cfg.ProfileDir, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch persistent context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		d.logger.Warn("Failed to install stealth script", zap.Error(err))
	}

	wrapped := &browserContext{ctx: bctx, pages: make(map[playwright.Page]*portalPage)}

	var first playwright.Page
	if existing := bctx.Pages(); len(existing) > 0 {
		first = existing[0]
	} else {
		first, err = bctx.NewPage()
		if err != nil {
			_ = bctx.Close()
			return nil, nil, fmt.Errorf("failed to open initial page: %w", err)
		}
	}

	d.logger.Info("Persistent browser context launched",
		zap.Bool("headless", d.cfg.Headless),
		zap.String("profile_dir", d.cfg.ProfileDir))
	return wrapped, wrapped.wrap(first), nil
}

// Stop shuts the playwright engine down.
func (d *Driver) Stop() error {
	if d.pw == nil {
		return nil
	}
	err := d.pw.Stop()
	d.pw = nil
	return err
}

// browserContext adapts a playwright context. Page wrappers are cached so a
// page re-observed through Pages is the same value the caller already holds;
// page identity comparisons depend on that.
type browserContext struct {
	ctx playwright.BrowserContext

	mu    sync.Mutex
	pages map[playwright.Page]*portalPage
}

func (b *browserContext) wrap(p playwright.Page) *portalPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.pages[p]; ok {
		return w
	}
	w := &portalPage{page: p}
	b.pages[p] = w
	return w
}

func (b *browserContext) Pages() []scraper.Page {
	raw := b.ctx.Pages()
	out := make([]scraper.Page, 0, len(raw))
	for _, p := range raw {
		out = append(out, b.wrap(p))
	}
	return out
}

func (b *browserContext) Close() error {
	return b.ctx.Close()
}

// portalPage adapts one playwright page.
type portalPage struct {
	page playwright.Page
}

func (p *portalPage) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return err
}

func (p *portalPage) Locator(selector string) scraper.Locator {
	return &portalLocator{loc: p.page.Locator(selector)}
}

func (p *portalPage) LocatorWithText(selector, text string) scraper.Locator {
	return &portalLocator{loc: p.page.Locator(selector, playwright.PageLocatorOptions{
		HasText: text,
	})}
}

func (p *portalPage) WaitNetworkIdle(timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (p *portalPage) WaitDocumentReady(timeout time.Duration) error {
	_, err := p.page.WaitForFunction("document.readyState === 'complete'", nil,
		playwright.PageWaitForFunctionOptions{Timeout: playwright.Float(millis(timeout))})
	return err
}

func (p *portalPage) PressKey(key string) error {
	return p.page.Keyboard().Press(key)
}

func (p *portalPage) ExpectDownload(timeout time.Duration, trigger func() error) (scraper.Download, error) {
	dl, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(millis(timeout)),
	})
	if err != nil {
		return nil, err
	}
	return &portalDownload{dl: dl}, nil
}

func (p *portalPage) BringToFront() error { return p.page.BringToFront() }
func (p *portalPage) Close() error        { return p.page.Close() }
func (p *portalPage) IsClosed() bool      { return p.page.IsClosed() }

// portalLocator adapts one playwright locator.
type portalLocator struct {
	loc playwright.Locator
}

func (l *portalLocator) WaitVisible(timeout time.Duration) error {
	return l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (l *portalLocator) Visible() (bool, error) { return l.loc.IsVisible() }
func (l *portalLocator) Count() (int, error)    { return l.loc.Count() }

func (l *portalLocator) First() scraper.Locator {
	return &portalLocator{loc: l.loc.First()}
}

func (l *portalLocator) Click() error { return l.loc.Click() }

func (l *portalLocator) ForceClick() error {
	return l.loc.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)})
}

func (l *portalLocator) DoubleClick() error { return l.loc.Dblclick() }

func (l *portalLocator) Fill(text string) error { return l.loc.Fill(text) }

func (l *portalLocator) Text() (string, error) { return l.loc.TextContent() }

func (l *portalLocator) Attribute(name string) (string, error) {
	return l.loc.GetAttribute(name)
}

func (l *portalLocator) Screenshot(path string) error {
	_, err := l.loc.Screenshot(playwright.LocatorScreenshotOptions{
		Path: playwright.String(path),
	})
	return err
}

// portalDownload adapts one playwright download handle.
type portalDownload struct {
	dl playwright.Download
}

func (d *portalDownload) SuggestedFilename() string { return d.dl.SuggestedFilename() }
func (d *portalDownload) SaveAs(path string) error  { return d.dl.SaveAs(path) }
func (d *portalDownload) Discard() error            { return d.dl.Delete() }

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
