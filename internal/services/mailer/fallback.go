package mailer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/models"
)

// FallbackFilename returns the name a brief generated at t is saved under
func FallbackFilename(t time.Time) string {
	return "market_brief_" + t.Format("20060102_150405") + ".html"
}

// LocalChartHTML points the inline chart reference of body at a file next to it
func LocalChartHTML(body, chartFile string) string {
	return strings.ReplaceAll(body, `"cid:`+models.ChartContentID+`"`, `"`+chartFile+`"`)
}

// SaveHTML writes the report's HTML body to dir and returns the file path.
// The chart is saved next to it and the inline cid reference points at that file.
func SaveHTML(dir string, report *models.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report is nil")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FallbackFilename(report.GeneratedAt))
	base := strings.TrimSuffix(path, ".html")

	body := report.HTMLBody
	if len(report.Chart) > 0 {
		chartPath := base + ".png"
		if err := os.WriteFile(chartPath, report.Chart, 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", chartPath, err)
		}
		body = LocalChartHTML(body, filepath.Base(chartPath))
	}

	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if len(report.PDF) > 0 {
		pdfPath := base + ".pdf"
		if err := os.WriteFile(pdfPath, report.PDF, 0644); err != nil {
			return path, fmt.Errorf("failed to write %s: %w", pdfPath, err)
		}
	}

	return path, nil
}

// FileNotifier saves reports to a directory instead of emailing them.
type FileNotifier struct {
	dir    string
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Notifier = (*FileNotifier)(nil)

// NewFileNotifier creates a notifier writing to dir
func NewFileNotifier(dir string, logger arbor.ILogger) *FileNotifier {
	return &FileNotifier{dir: dir, logger: logger}
}

// Send writes report to disk
func (n *FileNotifier) Send(ctx context.Context, report *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := SaveHTML(n.dir, report)
	if err != nil {
		return err
	}
	n.logger.Info().Str("path", path).Msg("Brief saved to file")
	return nil
}
