// File: internal/scraper/mocks_test.go
package scraper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"sigitm-exporter/internal/config"
)

// fakeLocator scripts one remote element. Zero value behaves like a missing
// element.
type fakeLocator struct {
	mu sync.Mutex

	visible  bool
	count    int
	text     string
	attrs    map[string]string
	waitErr  error
	clickErr error
	fillErr  error

	// waitBlocks makes WaitVisible block until release is closed.
	waitBlocks bool
	release    chan struct{}

	clicks       int
	forceClicks  int
	doubleClicks int
	fills        []string
	screenshots  int

	onClick func(*fakeLocator)
	onFill  func(*fakeLocator, string)
}

func newVisibleLocator(text string) *fakeLocator {
	return &fakeLocator{visible: true, count: 1, text: text}
}

func (f *fakeLocator) WaitVisible(timeout time.Duration) error {
	if f.waitBlocks {
		select {
		case <-f.release:
		case <-time.After(timeout):
			return fmt.Errorf("timeout waiting for element")
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waitErr != nil {
		return f.waitErr
	}
	if !f.visible {
		return fmt.Errorf("element not visible")
	}
	return nil
}

func (f *fakeLocator) Visible() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible, nil
}

func (f *fakeLocator) Count() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeLocator) First() Locator { return f }

func (f *fakeLocator) Click() error {
	f.mu.Lock()
	f.clicks++
	cb := f.onClick
	err := f.clickErr
	f.mu.Unlock()
	if cb != nil {
		cb(f)
	}
	return err
}

func (f *fakeLocator) ForceClick() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceClicks++
	return f.clickErr
}

func (f *fakeLocator) DoubleClick() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doubleClicks++
	return f.clickErr
}

func (f *fakeLocator) Fill(text string) error {
	f.mu.Lock()
	f.fills = append(f.fills, text)
	cb := f.onFill
	err := f.fillErr
	f.mu.Unlock()
	if cb != nil {
		cb(f, text)
	}
	return err
}

func (f *fakeLocator) Text() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *fakeLocator) setText(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = t
}

func (f *fakeLocator) Attribute(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.attrs[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("attribute %q not present", name)
}

func (f *fakeLocator) Screenshot(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshots++
	return os.WriteFile(path, []byte("png-bytes"), 0o644)
}

// fakePage scripts one portal page. Locators are keyed by selector, or by
// selector + "::" + text for LocatorWithText lookups. Unknown selectors
// resolve to an invisible zero-count locator.
type fakePage struct {
	mu sync.Mutex

	elements map[string]*fakeLocator
	closed   bool

	navigations []string
	keysPressed []string

	networkIdleErr error
	docReadyErr    error
	navErr         error

	download    *fakeDownload
	downloadErr error
}

func newFakePage() *fakePage {
	return &fakePage{elements: make(map[string]*fakeLocator)}
}

func textKey(selector, text string) string { return selector + "::" + text }

func (p *fakePage) set(key string, l *fakeLocator) *fakeLocator {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[key] = l
	return l
}

func (p *fakePage) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	return p.navErr
}

func (p *fakePage) Locator(selector string) Locator {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.elements[selector]; ok {
		return l
	}
	return &fakeLocator{}
}

func (p *fakePage) LocatorWithText(selector, text string) Locator {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.elements[textKey(selector, text)]; ok {
		return l
	}
	return &fakeLocator{}
}

func (p *fakePage) WaitNetworkIdle(time.Duration) error   { return p.networkIdleErr }
func (p *fakePage) WaitDocumentReady(time.Duration) error { return p.docReadyErr }

func (p *fakePage) PressKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keysPressed = append(p.keysPressed, key)
	return nil
}

func (p *fakePage) ExpectDownload(timeout time.Duration, trigger func() error) (Download, error) {
	if err := trigger(); err != nil {
		return nil, err
	}
	if p.downloadErr != nil {
		return nil, p.downloadErr
	}
	if p.download == nil {
		return nil, fmt.Errorf("no download produced")
	}
	return p.download, nil
}

func (p *fakePage) BringToFront() error { return nil }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeDownload writes canned bytes on SaveAs.
type fakeDownload struct {
	name      string
	data      []byte
	saveErr   error
	savedTo   string
	discarded bool
}

func (d *fakeDownload) SuggestedFilename() string { return d.name }

func (d *fakeDownload) SaveAs(path string) error {
	if d.saveErr != nil {
		return d.saveErr
	}
	d.savedTo = path
	return os.WriteFile(path, d.data, 0o644)
}

func (d *fakeDownload) Discard() error {
	d.discarded = true
	return nil
}

// fakeBrowser holds a mutable page list so tests can simulate the portal
// opening a fresh window mid-login.
type fakeBrowser struct {
	mu     sync.Mutex
	pages  []Page
	closed bool
}

func (b *fakeBrowser) Pages() []Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Page, len(b.pages))
	copy(out, b.pages)
	return out
}

func (b *fakeBrowser) addPage(p Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = append(b.pages, p)
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type fakeDriver struct {
	browser   *fakeBrowser
	page      *fakePage
	launchErr error
	stopped   bool
}

func (d *fakeDriver) Launch() (Browser, Page, error) {
	if d.launchErr != nil {
		return nil, nil, d.launchErr
	}
	return d.browser, d.page, nil
}

func (d *fakeDriver) Stop() error {
	d.stopped = true
	return nil
}

// fakeSolver returns scripted tokens in order, cycling the last one.
type fakeSolver struct {
	mu     sync.Mutex
	tokens []string
	err    error
	calls  int
}

func (s *fakeSolver) Solve(_ context.Context, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.tokens) == 0 {
		return "token", nil
	}
	i := s.calls - 1
	if i >= len(s.tokens) {
		i = len(s.tokens) - 1
	}
	return s.tokens[i], nil
}

// fakeClock makes sleeps instant while keeping elapsed time observable.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	log []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.log = append(c.log, d)
}

// newTestSession wires a session over fakes with tight timeouts.
func newTestSession(driver *fakeDriver) *Session {
	cfg := config.NewDefaultConfig()
	cfg.Portal.Username = "user"
	cfg.Portal.Password = "pass"
	cfg.Portal.MaxLoginAttempts = 3
	cfg.Timeouts.PageLoad = 200 * time.Millisecond
	cfg.Timeouts.Element = 100 * time.Millisecond
	cfg.Timeouts.NewWindow = 2 * time.Second
	cfg.Timeouts.LoginVerify = 200 * time.Millisecond
	cfg.Timeouts.Completion = 120 * time.Second
	cfg.Timeouts.Download = time.Second

	s := NewSession(cfg, driver, &fakeSolver{}, zap.NewNop())
	clock := newFakeClock()
	s.now = clock.Now
	s.sleep = clock.Sleep
	return s
}

// equipLoginPage installs the four login controls on a page.
func equipLoginPage(p *fakePage, captchaSrc string) *fakeLocator {
	p.set(selUsername, newVisibleLocator(""))
	p.set(selPassword, newVisibleLocator(""))
	p.set(selCaptchaInput, newVisibleLocator(""))
	img := newVisibleLocator("")
	img.attrs = map[string]string{"src": captchaSrc}
	return p.set(selCaptchaImage, img)
}

// equipHomePage installs the welcome marker on the post-login window.
func equipHomePage(p *fakePage) {
	p.set(xpathWelcomeMarker, newVisibleLocator("Bem-vindo"))
}
