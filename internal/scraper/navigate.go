// File: internal/scraper/navigate.go
package scraper

import (
	"fmt"

	"go.uber.org/zap"
)

// openQueryEditor walks the fixed menu path from the authenticated home page
// to the saved query's editor: menu, sub-item, report row, double activate,
// then wait for the editor's execute and save controls. Any missing element
// aborts the sequence; retries, if wanted, belong to the caller.
func (s *Session) openQueryEditor() bool {
	s.logger.Info("Navigating to saved query", zap.String("report", s.cfg.Portal.ReportName))

	menu := s.page.LocatorWithText(selMenuHeader, labelQueryMenu)
	if err := menu.WaitVisible(s.cfg.Timeouts.Element); err != nil {
		s.logger.Error("Query menu not visible", zap.Error(err))
		return false
	}
	if err := menu.Click(); err != nil {
		s.logger.Error("Failed to open query menu", zap.Error(err))
		return false
	}

	item := s.page.LocatorWithText(selTreeNode, labelQueryItem)
	if err := item.WaitVisible(s.cfg.Timeouts.Element); err != nil {
		s.logger.Error("Query list item not visible", zap.Error(err))
		return false
	}
	if err := item.Click(); err != nil {
		s.logger.Error("Failed to open query list", zap.Error(err))
		return false
	}

	rowXPath := fmt.Sprintf("//div[table//div[text()='%s']]", s.cfg.Portal.ReportName)
	if !s.detector.Wait(s.page, ReadinessSpec{
		Step:     "query list page",
		Timeout:  s.cfg.Timeouts.PageLoad,
		Elements: []string{rowXPath},
	}) {
		s.logger.Error("Query list did not load", zap.String("report", s.cfg.Portal.ReportName))
		return false
	}

	row := s.page.Locator(rowXPath)
	if err := row.WaitVisible(s.cfg.Timeouts.Element); err != nil {
		s.logger.Error("Report row not found", zap.String("report", s.cfg.Portal.ReportName), zap.Error(err))
		return false
	}
	if err := row.DoubleClick(); err != nil {
		s.logger.Error("Failed to open report editor", zap.Error(err))
		return false
	}
	s.logger.Info("Report selected for editing", zap.String("report", s.cfg.Portal.ReportName))

	if !s.detector.Wait(s.page, ReadinessSpec{
		Step:     "query editor page",
		Timeout:  s.cfg.Timeouts.PageLoad,
		Elements: []string{selExecuteBtn, selSaveBtn},
	}) {
		s.logger.Error("Query editor did not load")
		return false
	}
	return true
}
