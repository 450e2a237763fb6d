// File: internal/scraper/login.go
// Description: Bounded-retry login state machine. Each attempt fetches a
// fresh captcha; solutions are never reused. Attempt outcome is decided by
// the session's SuccessDetector.
package scraper

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// loginElements are the four controls an attempt needs. All four must be
// visible before the attempt proceeds.
type loginElements struct {
	identity     Locator
	secret       Locator
	captchaImage Locator
	captchaInput Locator
}

// LoginAttempt is the ephemeral per-retry state: the attempt index and the
// pre-submit captcha source fingerprint used to detect a rejected solution.
type LoginAttempt struct {
	Index       int
	Fingerprint string
}

// login drives the full authentication sequence: navigate to the login page,
// then retry captcha-solving attempts up to the configured maximum.
func (s *Session) login(ctx context.Context) bool {
	if err := s.page.Navigate(s.cfg.Portal.LoginURL); err != nil {
		s.logger.Error("Failed to open login page", zap.Error(err))
		return false
	}
	s.detector.Wait(s.page, ReadinessSpec{Step: "login page", Timeout: s.cfg.Timeouts.PageLoad})

	maxAttempts := s.cfg.Portal.MaxLoginAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s.logger.Info("Login attempt", zap.Int("attempt", attempt), zap.Int("max", maxAttempts))

		if s.attemptLogin(ctx, attempt) {
			s.logger.Info("Login succeeded", zap.Int("attempt", attempt))
			return true
		}
		s.logger.Warn("Login attempt failed", zap.Int("attempt", attempt))
	}

	s.logger.Error("All login attempts exhausted", zap.Int("max", maxAttempts))
	return false
}

// attemptLogin runs one full attempt: locate elements, record the captcha
// fingerprint, fill and submit the form, then verify the outcome.
func (s *Session) attemptLogin(ctx context.Context, attempt int) bool {
	els, err := s.locateLoginElements()
	if err != nil {
		s.logger.Error("Failed to locate login elements", zap.Error(err))
		return false
	}

	att := LoginAttempt{Index: attempt}
	// The fingerprint is best effort; without it the rejected-solution check
	// is simply skipped.
	if src, err := els.captchaImage.Attribute("src"); err == nil {
		att.Fingerprint = src
	}

	if !s.fillLoginForm(ctx, els) {
		return false
	}

	// Give the portal a moment to process the submit before verifying.
	s.sleep(time.Second)

	return s.confirm(ctx, s, att.Fingerprint)
}

// locateLoginElements waits for all four login controls concurrently. A
// single missing element fails the whole attempt.
func (s *Session) locateLoginElements() (loginElements, error) {
	els := loginElements{
		identity:     s.page.Locator(selUsername),
		secret:       s.page.Locator(selPassword),
		captchaImage: s.page.Locator(selCaptchaImage),
		captchaInput: s.page.Locator(selCaptchaInput),
	}

	timeout := s.cfg.Timeouts.Element
	var g errgroup.Group
	for _, l := range []Locator{els.identity, els.secret, els.captchaImage, els.captchaInput} {
		g.Go(func() error { return l.WaitVisible(timeout) })
	}
	if err := g.Wait(); err != nil {
		return loginElements{}, err
	}

	s.logger.Debug("All login elements located")
	return els, nil
}

// fillLoginForm fills identity, secret and the freshly solved captcha token
// in that fixed order, then submits with Enter. The captcha field is touched
// only after a solution exists.
func (s *Session) fillLoginForm(ctx context.Context, els loginElements) bool {
	if err := els.identity.Fill(s.cfg.Portal.Username); err != nil {
		s.logger.Error("Failed to fill username", zap.Error(err))
		return false
	}
	if err := els.secret.Fill(s.cfg.Portal.Password); err != nil {
		s.logger.Error("Failed to fill password", zap.Error(err))
		return false
	}

	token, err := s.solveCaptcha(ctx, els.captchaImage)
	if err != nil {
		s.logger.Warn("Captcha solving failed", zap.Error(err))
		return false
	}
	if err := els.captchaInput.Fill(token); err != nil {
		s.logger.Error("Failed to fill captcha token", zap.Error(err))
		return false
	}

	if err := s.page.PressKey("Enter"); err != nil {
		s.logger.Error("Failed to submit login form", zap.Error(err))
		return false
	}
	s.logger.Debug("Login form submitted")
	return true
}

// solveCaptcha captures the challenge image into a scoped temporary file and
// hands the bytes to the oracle. The file is removed on every path.
func (s *Session) solveCaptcha(ctx context.Context, image Locator) (string, error) {
	tmp, err := os.CreateTemp("", "captcha-*.png")
	if err != nil {
		return "", fmt.Errorf("creating captcha scratch file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := image.Screenshot(path); err != nil {
		return "", fmt.Errorf("capturing captcha image: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading captcha image: %w", err)
	}

	return s.solver.Solve(ctx, data)
}

// confirmByWindowSwitch is the default SuccessDetector. Two signals, in
// order: a changed captcha image means the solution was rejected and the
// attempt fails immediately; otherwise a new window must appear and its page
// must reach the welcome checkpoint. An unchanged captcha is treated as
// inconclusive, not as success.
func confirmByWindowSwitch(_ context.Context, s *Session, fingerprint string) bool {
	s.logger.Debug("Verifying login outcome")

	if fingerprint != "" {
		img := s.page.Locator(selCaptchaImage)
		if visible, err := img.Visible(); err == nil && visible {
			if src, err := img.Attribute("src"); err == nil && src != fingerprint {
				s.logger.Warn("Captcha image changed; previous solution was rejected")
				return false
			}
		}
		// A missing captcha usually means the login page is gone already;
		// fall through to window detection.
	}

	if s.waitForNewWindow(s.cfg.Timeouts.NewWindow) == nil {
		return false
	}

	return s.detector.Wait(s.page, ReadinessSpec{
		Step:     "home page after login",
		Timeout:  s.cfg.Timeouts.LoginVerify,
		Elements: []string{xpathWelcomeMarker},
	})
}
