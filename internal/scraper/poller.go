// File: internal/scraper/poller.go
// Description: Adaptive completion polling. The pagination indicator is the
// only completion signal the portal offers; its text is sampled until a
// positive total shows up or the budget runs out.
package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProgressClass classifies one poll sample.
type ProgressClass string

const (
	ProgressIndicatorNotFound ProgressClass = "indicator_not_found"
	ProgressInvalidFormat     ProgressClass = "invalid_format"
	ProgressNoTotal           ProgressClass = "no_total_found"
	ProgressComplete          ProgressClass = "complete"
	ProgressError             ProgressClass = "error"
)

// progressMarker precedes the total row count in the indicator text, e.g.
// "A visualizar 1 de 500".
const progressMarker = "de"

var totalPattern = regexp.MustCompile(`de\s+(\d+)`)

// Polling cadence: tight at first for fast queries, then relaxed to spare
// the portal. Budget comes from configuration.
const (
	pollFastInterval = 1 * time.Second
	pollSlowInterval = 2 * time.Second
	pollFastTicks    = 10
)

// ProgressStatus is one poll sample: raw indicator text, the extracted total
// (valid only for ProgressComplete) and its classification.
type ProgressStatus struct {
	Raw   string
	Total int
	Class ProgressClass
}

// ClassifyProgress derives a ProgressStatus from the indicator text. found
// reports whether a visible indicator existed at all.
func ClassifyProgress(raw string, found bool) ProgressStatus {
	if !found {
		return ProgressStatus{Class: ProgressIndicatorNotFound}
	}
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, progressMarker) || !strings.ContainsAny(raw, "0123456789") {
		return ProgressStatus{Raw: raw, Class: ProgressInvalidFormat}
	}
	m := totalPattern.FindStringSubmatch(raw)
	if m == nil {
		return ProgressStatus{Raw: raw, Class: ProgressNoTotal}
	}
	total, err := strconv.Atoi(m[1])
	if err != nil {
		return ProgressStatus{Raw: raw, Class: ProgressNoTotal}
	}
	return ProgressStatus{Raw: raw, Total: total, Class: ProgressComplete}
}

// checkProgress samples the pagination indicator once.
func (s *Session) checkProgress() ProgressStatus {
	indicator := s.page.Locator(selProgressIndicator)

	n, err := indicator.Count()
	if err != nil {
		return ProgressStatus{Class: ProgressError, Raw: err.Error()}
	}
	if n == 0 {
		return ClassifyProgress("", false)
	}

	raw, err := indicator.First().Text()
	if err != nil {
		return ProgressStatus{Class: ProgressError, Raw: err.Error()}
	}
	return ClassifyProgress(raw, true)
}

// awaitCompletion polls until the indicator reports a strictly positive
// total. An absent indicator keeps the loop going; only the exhausted budget
// fails it. Classification transitions are logged only when entering a
// non-routine state, so a stable "still rendering" situation produces one
// line, not hundreds.
func (s *Session) awaitCompletion() bool {
	budget := s.cfg.Timeouts.Completion
	s.logger.Info("Waiting for query completion", zap.Duration("budget", budget))

	start := s.now()
	ticks := 0
	var last ProgressClass

	for s.now().Sub(start) < budget {
		st := s.checkProgress()
		ticks++

		if st.Class == ProgressComplete && st.Total > 0 {
			s.logger.Info("Query complete",
				zap.Int("total", st.Total),
				zap.Int("ticks", ticks),
				zap.Duration("elapsed", s.now().Sub(start).Round(time.Second)))
			return true
		}

		if st.Class != last {
			if st.Class == ProgressInvalidFormat || st.Class == ProgressNoTotal {
				s.logger.Debug("Query still rendering", zap.String("status", string(st.Class)), zap.String("raw", st.Raw))
			}
			last = st.Class
		}

		if ticks < pollFastTicks {
			s.sleep(pollFastInterval)
		} else {
			s.sleep(pollSlowInterval)
		}
	}

	s.logger.Error("Query did not complete within budget",
		zap.Duration("budget", budget),
		zap.String("last_status", string(last)))
	return false
}
