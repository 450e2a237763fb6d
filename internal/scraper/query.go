// File: internal/scraper/query.go
package scraper

import (
	"time"

	"go.uber.org/zap"
)

// closingDateLayout is what the portal's inline date editor expects.
const closingDateLayout = "02/01/06"

// targetClosingDate returns yesterday at midnight in portal format.
func (s *Session) targetClosingDate() string {
	return s.now().AddDate(0, 0, -1).Format(closingDateLayout) + " 00:00"
}

// adjustDateAndExecute rewrites the query's closing-date parameter to
// yesterday 00:00, saves, executes, and waits for the export control as
// evidence the query ran. No retries at this layer.
func (s *Session) adjustDateAndExecute() bool {
	saveBtn := s.page.LocatorWithText(selButton, labelSave)
	execBtn := s.page.LocatorWithText(selButton, labelExecute)

	field := s.page.Locator(selClosingDateField)
	if err := field.WaitVisible(s.cfg.Timeouts.Element); err != nil {
		s.logger.Error("Closing-date field not found", zap.Error(err))
		return false
	}

	before, err := field.Text()
	if err != nil {
		s.logger.Error("Failed to read closing-date field", zap.Error(err))
		return false
	}

	if err := field.Click(); err != nil {
		s.logger.Error("Failed to activate closing-date editor", zap.Error(err))
		return false
	}
	// The grid needs a beat to swap the cell for its inline editor.
	s.sleep(500 * time.Millisecond)

	input := s.page.Locator(selFocusedInput)
	if err := input.WaitVisible(2 * time.Second); err != nil {
		s.logger.Error("Inline date editor did not appear", zap.Error(err))
		return false
	}

	target := s.targetClosingDate()
	s.logger.Info("Rewriting closing date", zap.String("from", before), zap.String("to", target))

	if err := input.ForceClick(); err != nil {
		s.logger.Error("Failed to focus date input", zap.Error(err))
		return false
	}
	if err := input.Fill(""); err != nil {
		s.logger.Error("Failed to clear date input", zap.Error(err))
		return false
	}
	if err := input.Fill(target); err != nil {
		s.logger.Error("Failed to fill date input", zap.Error(err))
		return false
	}
	if err := s.page.PressKey("Enter"); err != nil {
		s.logger.Error("Failed to confirm date input", zap.Error(err))
		return false
	}

	after, err := field.Text()
	if err != nil {
		s.logger.Error("Failed to re-read closing-date field", zap.Error(err))
		return false
	}
	if after == before && after != target {
		s.logger.Error("Closing-date change not confirmed", zap.String("value", after))
		return false
	}
	s.logger.Info("Closing-date change confirmed")

	if err := saveBtn.Click(); err != nil {
		s.logger.Error("Failed to save query", zap.Error(err))
		return false
	}
	s.logger.Info("Query saved")
	s.sleep(time.Second)

	if err := execBtn.Click(); err != nil {
		s.logger.Error("Failed to execute query", zap.Error(err))
		return false
	}
	s.logger.Info("Query execution triggered")

	return s.detector.Wait(s.page, ReadinessSpec{
		Step:     "query result page",
		Timeout:  s.cfg.Timeouts.PageLoad,
		Elements: []string{selExportReady},
	})
}
