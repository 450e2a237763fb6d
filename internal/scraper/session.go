// File: internal/scraper/session.go
// Description: Top-level session controller. Owns the single live page
// reference and sequences login, navigation, parameter adjustment,
// completion polling and export with fail-fast short-circuiting.
package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sigitm-exporter/internal/captcha"
	"sigitm-exporter/internal/config"
)

// Stage labels for run results and logs.
const (
	StageStartup    = "startup"
	StageLogin      = "login"
	StageNavigation = "navigation"
	StageAdjust     = "adjust_and_execute"
	StageCompletion = "completion"
	StageExport     = "export"
)

// Result is the controller's sole output. Faults never escape Run; every
// failure mode collapses into Succeeded=false plus the stage that failed.
type Result struct {
	Succeeded    bool
	ArtifactPath string
	FailedStage  string
}

// SuccessDetector decides whether a submitted login attempt succeeded.
// The default heuristic combines the captcha fingerprint check with
// new-window detection; tests and future portal revisions can substitute
// their own.
type SuccessDetector func(ctx context.Context, s *Session, fingerprint string) bool

// Session is one full run of the controller: it owns the browser context,
// the current page reference and all attempt counters. Not safe for
// concurrent use; the workflow is strictly sequential by design.
type Session struct {
	cfg    *config.Config
	driver Driver
	solver captcha.Solver

	detector *Detector
	confirm  SuccessDetector
	logger   *zap.Logger

	browser Browser
	page    Page
	stage   string

	// clock hooks; replaced in tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewSession wires a session from its collaborators.
func NewSession(cfg *config.Config, driver Driver, solver captcha.Solver, logger *zap.Logger) *Session {
	log := logger.Named("session")
	return &Session{
		cfg:      cfg,
		driver:   driver,
		solver:   solver,
		detector: NewDetector(cfg.Timeouts.Element, log),
		confirm:  confirmByWindowSwitch,
		logger:   log,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Run executes the full workflow. The first failing stage short-circuits the
// rest. Teardown runs on every path, and its errors are logged, never
// escalated.
func (s *Session) Run(ctx context.Context) (res Result) {
	defer s.teardown()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session aborted by internal fault",
				zap.String("stage", s.stage), zap.Any("panic", r))
			res = Result{FailedStage: s.stage}
		}
	}()

	s.stage = StageStartup
	browser, page, err := s.driver.Launch()
	if err != nil {
		s.logger.Error("Failed to launch browser context", zap.Error(err))
		return Result{FailedStage: StageStartup}
	}
	s.browser, s.page = browser, page
	s.logger.Info("Browser context ready")

	s.stage = StageLogin
	if !s.login(ctx) {
		return Result{FailedStage: StageLogin}
	}
	s.stage = StageNavigation
	if !s.openQueryEditor() {
		return Result{FailedStage: StageNavigation}
	}
	s.stage = StageAdjust
	if !s.adjustDateAndExecute() {
		return Result{FailedStage: StageAdjust}
	}
	s.stage = StageCompletion
	if !s.awaitCompletion() {
		return Result{FailedStage: StageCompletion}
	}
	s.stage = StageExport
	path, ok := s.exportQuery()
	if !ok {
		return Result{FailedStage: StageExport}
	}

	s.logger.Info("Export completed", zap.String("artifact", path))
	return Result{Succeeded: true, ArtifactPath: path}
}

// teardown releases the browser context and the driver engine. Tolerates
// partial initialization and double closes.
func (s *Session) teardown() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("Failed to close browser context", zap.Error(err))
		}
		s.browser = nil
	}
	if s.driver != nil {
		if err := s.driver.Stop(); err != nil {
			s.logger.Warn("Failed to stop browser engine", zap.Error(err))
		}
	}
}

// waitForNewWindow polls the context until a page other than the current one
// shows up, then switches to it: the previous page is closed first, only then
// is the new one adopted. Returns nil on timeout.
func (s *Session) waitForNewWindow(timeout time.Duration) Page {
	s.logger.Info("Waiting for new window")
	deadline := s.now().Add(timeout)
	prior := s.page

	for s.now().Before(deadline) {
		for _, p := range s.browser.Pages() {
			if p == s.page || p.IsClosed() {
				continue
			}
			if !prior.IsClosed() {
				if err := prior.Close(); err != nil {
					s.logger.Warn("Failed to close prior page", zap.Error(err))
				}
			}
			s.page = p
			if err := p.BringToFront(); err != nil {
				s.logger.Debug("Could not focus new window", zap.Error(err))
			}
			s.logger.Info("Switched to new window")
			return p
		}
		s.sleep(500 * time.Millisecond)
	}

	s.logger.Warn("No new window detected", zap.Duration("timeout", timeout))
	return nil
}
