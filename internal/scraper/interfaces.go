// File: internal/scraper/interfaces.go
// Description: Narrow capability interfaces over the remote UI driver. The
// session logic is written entirely against these, so the rendering engine
// behind them is swappable (playwright in production, fakes in tests).
package scraper

import "time"

// Locator is a capability-bearing handle to one remote UI element.
type Locator interface {
	// WaitVisible blocks until the element is visible or the timeout elapses.
	WaitVisible(timeout time.Duration) error
	// Visible reports whether the element is currently visible.
	Visible() (bool, error)
	// Count returns how many elements currently match.
	Count() (int, error)
	// First narrows a multi-match locator to its first hit.
	First() Locator
	Click() error
	// ForceClick clicks without actionability checks; needed for the inline
	// grid editor, which overlays the cell it replaces.
	ForceClick() error
	DoubleClick() error
	Fill(text string) error
	Text() (string, error)
	Attribute(name string) (string, error)
	// Screenshot captures a still image of the element into the given file.
	Screenshot(path string) error
}

// Download is the handle for one resolved export download.
type Download interface {
	SuggestedFilename() string
	// SaveAs persists the download and blocks until the write completes.
	SaveAs(path string) error
	// Discard releases the transient download, deleting its temporary file.
	Discard() error
}

// Page is the surface of one portal page the session drives.
type Page interface {
	Navigate(url string) error
	Locator(selector string) Locator
	// LocatorWithText narrows a selector to elements containing the text.
	LocatorWithText(selector, text string) Locator
	WaitNetworkIdle(timeout time.Duration) error
	WaitDocumentReady(timeout time.Duration) error
	PressKey(key string) error
	// ExpectDownload arms a download expectation, then runs trigger. The
	// expectation exists before the triggering action, so the download event
	// cannot be missed.
	ExpectDownload(timeout time.Duration, trigger func() error) (Download, error)
	BringToFront() error
	Close() error
	IsClosed() bool
}

// Browser is the single persistent context owning all open pages. Pages
// must return stable values so callers can compare page identity across
// calls.
type Browser interface {
	Pages() []Page
	Close() error
}

// Driver launches the browser context for a session and releases the
// underlying engine on Stop.
type Driver interface {
	Launch() (Browser, Page, error)
	Stop() error
}
