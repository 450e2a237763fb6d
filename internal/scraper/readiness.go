// File: internal/scraper/readiness.go
package scraper

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReadinessSpec names a page-load checkpoint: a set of wait conditions plus
// an overall timeout. Never mutated after construction.
type ReadinessSpec struct {
	// Step names the checkpoint for logs.
	Step string
	// Timeout bounds the whole check.
	Timeout time.Duration
	// Elements are selectors that must become visible. They double as the
	// critical set for the rescue probe after a timeout.
	Elements []string
}

// Detector resolves a ReadinessSpec into a single pass/fail outcome. The
// network-idle and document-ready signals and every element check are awaited
// concurrently; all of them must resolve before the timeout. A timeout is
// still treated as success when one of the critical elements is already
// present - the element is the signal that matters functionally, the rest are
// allowed to lag.
type Detector struct {
	logger         *zap.Logger
	elementTimeout time.Duration
}

// NewDetector builds a Detector. elementTimeout bounds each individual
// element-visibility condition inside a check.
func NewDetector(elementTimeout time.Duration, logger *zap.Logger) *Detector {
	return &Detector{
		logger:         logger.Named("readiness"),
		elementTimeout: elementTimeout,
	}
}

// Wait runs every condition of the spec concurrently and reports whether the
// page reached the checkpoint. All conditions are always awaited; there is no
// first-error cancellation. Waits still pending when the timeout fires are
// abandoned.
func (d *Detector) Wait(page Page, spec ReadinessSpec) bool {
	log := d.logger.With(zap.String("step", spec.Step))
	log.Info("Waiting for page checkpoint")
	start := time.Now()

	var g errgroup.Group
	g.Go(func() error {
		if err := page.WaitNetworkIdle(spec.Timeout); err != nil {
			return fmt.Errorf("network idle: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := page.WaitDocumentReady(spec.Timeout); err != nil {
			return fmt.Errorf("document ready: %w", err)
		}
		return nil
	})
	for _, selector := range spec.Elements {
		g.Go(func() error {
			if err := page.Locator(selector).WaitVisible(d.elementTimeout); err != nil {
				return fmt.Errorf("element %q: %w", selector, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			log.Error("Page checkpoint failed", zap.Error(err))
			return false
		}
		log.Info("Page checkpoint reached", zap.Duration("elapsed", time.Since(start).Round(100*time.Millisecond)))
		return true
	case <-time.After(spec.Timeout):
		log.Error("Timeout waiting for page checkpoint", zap.Duration("timeout", spec.Timeout))
		return d.rescue(page, spec, log)
	}
}

// rescue is the best-effort probe after a timeout: if any critical element is
// already in the DOM, the checkpoint counts as reached even though slower
// signals (usually network idle) never settled.
func (d *Detector) rescue(page Page, spec ReadinessSpec, log *zap.Logger) bool {
	for _, selector := range spec.Elements {
		n, err := page.Locator(selector).Count()
		if err != nil {
			continue
		}
		if n > 0 {
			log.Info("Critical element present despite timeout; continuing", zap.String("selector", selector))
			return true
		}
	}
	return false
}
