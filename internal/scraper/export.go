// File: internal/scraper/export.go
// Description: The export stage. Triggers the portal's export button while
// intercepting the resulting download, saves the artifact locally and
// validates it before declaring the run a success.
package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportButtonTimeout = 10 * time.Second

// exportQuery clicks Exportar, captures the download and validates the saved
// file. Returns the artifact path and whether the export succeeded.
func (s *Session) exportQuery() (string, bool) {
	exportBtn := s.page.LocatorWithText(selButton, labelExport)
	if err := exportBtn.WaitVisible(exportButtonTimeout); err != nil {
		s.logger.Error("Export button never became visible", zap.Error(err))
		return "", false
	}

	dl, err := s.page.ExpectDownload(s.cfg.Timeouts.Download, func() error {
		return exportBtn.Click()
	})
	if err != nil {
		s.logger.Error("Download did not start", zap.Error(err))
		return "", false
	}

	name := dl.SuggestedFilename()
	if name == "" {
		name = fmt.Sprintf("export_%s.xls", s.now().Format("20060102_150405"))
	}
	path := filepath.Join(s.cfg.Browser.DownloadDir, name)

	if err := dl.SaveAs(path); err != nil {
		s.logger.Error("Failed to save download", zap.String("path", path), zap.Error(err))
		dl.Discard()
		return "", false
	}

	if err := validateArtifact(path); err != nil {
		s.logger.Error("Exported artifact failed validation", zap.String("path", path), zap.Error(err))
		dl.Discard()
		return "", false
	}

	s.logger.Info("Export saved", zap.String("path", path))
	return path, true
}

// validateArtifact rejects empty or corrupt exports. Modern workbook formats
// are opened and inspected; the portal's legacy .xls output cannot be parsed
// here, so it is accepted on size alone.
func validateArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact not readable: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact is empty")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return validateWorkbook(path)
	default:
		return nil
	}
}

func validateWorkbook(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("workbook could not be opened: %w", err)
	}
	defer f.Close()

	if len(f.GetSheetList()) == 0 {
		return fmt.Errorf("workbook contains no sheets")
	}
	return nil
}
