// Package report renders the brief's markdown, HTML and plain-text bodies.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/brief.html
var templateFS embed.FS

// SubjectDateFormat is the date layout used in the email subject
const SubjectDateFormat = "02 Jan 2006"

// Service renders reports.
type Service struct {
	logger        arbor.ILogger
	subjectPrefix string
	markdown      goldmark.Markdown
	layout        *template.Template
}

type layoutData struct {
	Title        string
	Subject      string
	Date         string
	Generated    string
	RunID        string
	Narrative    template.HTML
	Failures     template.HTML
	Empty        bool
	EmptyMessage string
	Rows         []tableRow
	ChartSrc     template.URL
	ChartAlt     string
}

type tableRow struct {
	Symbol    string
	Name      string
	Close     string
	Change    string
	Percent   string
	Arrow     string
	AsOf      string
	Direction models.Direction
	Style     template.CSS
	Stale     bool
}

// NewService creates a report renderer
func NewService(config common.EmailConfig, logger arbor.ILogger) (*Service, error) {
	layout, err := template.ParseFS(templateFS, "templates/brief.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}

	return &Service{
		logger:        logger,
		subjectPrefix: strings.TrimSpace(config.SubjectPrefix),
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM, // GitHub Flavored Markdown (tables, strikethrough, etc.)
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
		layout: layout,
	}, nil
}

// Subject builds the email subject for a brief generated at t
func (s *Service) Subject(t time.Time) string {
	subject := Title + " – " + t.Format(SubjectDateFormat)
	if s.subjectPrefix != "" {
		subject = s.subjectPrefix + " " + subject
	}
	return subject
}

// Render fills the Subject, Markdown, HTMLBody and TextBody of report from its
// summaries, insights, failures and chart. An empty report renders an explicit
// empty state; it is never an error.
func (s *Service) Render(report *models.Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	report.Subject = s.Subject(report.GeneratedAt)
	report.Markdown = Markdown(report)

	narrativeHTML, err := s.toHTML(narrative(report))
	if err != nil {
		return err
	}
	failuresHTML, err := s.toHTML(failuresMarkdown(report.Failures))
	if err != nil {
		return err
	}

	data := layoutData{
		Title:        Title,
		Subject:      report.Subject,
		Date:         report.GeneratedAt.Format("Monday, 02 January 2006"),
		Generated:    report.GeneratedAt.Format("2006-01-02 15:04 MST"),
		RunID:        report.RunID,
		Narrative:    narrativeHTML,
		Failures:     failuresHTML,
		Empty:        report.IsEmpty(),
		EmptyMessage: EmptyMessage,
		ChartAlt:     "Market Performance Overview",
	}
	if len(report.Chart) > 0 {
		data.ChartSrc = template.URL("cid:" + models.ChartContentID)
	}
	for _, sm := range report.Summaries {
		row := tableRow{
			Symbol:    sm.Symbol,
			Name:      sm.Name,
			Close:     formatNumber(sm.Close),
			Change:    formatSigned(sm.Change),
			Percent:   formatPercent(sm.PercentChange),
			Arrow:     sm.Direction.Arrow(),
			Direction: sm.Direction,
			Style:     template.CSS("color: " + sm.Direction.Color() + "; font-weight: bold;"),
			Stale:     sm.Stale,
		}
		if !sm.AsOf.IsZero() {
			row.AsOf = sm.AsOf.Format("02 Jan")
		}
		data.Rows = append(data.Rows, row)
	}

	var buf bytes.Buffer
	if err := s.layout.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute report template: %w", err)
	}
	report.HTMLBody = buf.String()
	report.TextBody = s.toText(report.HTMLBody)

	s.logger.Debug().
		Int("summaries", len(report.Summaries)).
		Int("failures", len(report.Failures)).
		Bool("empty", report.IsEmpty()).
		Int("html_len", len(report.HTMLBody)).
		Int("text_len", len(report.TextBody)).
		Msg("Report rendered")

	return nil
}

// toHTML converts a markdown fragment to HTML
func (s *Service) toHTML(markdown string) (template.HTML, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	// Output is goldmark's own escaped rendering of text we generated
	return template.HTML(buf.String()), nil
}

// toText derives the plain-text alternative from the rendered HTML.
// Falls back to tag stripping when conversion fails or yields nothing.
func (s *Service) toText(htmlBody string) string {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("head", "style", "img")

	text, err := converter.ConvertString(htmlBody)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to text conversion failed, using fallback")
		return stripHTMLTags(htmlBody)
	}
	if strings.TrimSpace(text) == "" {
		return stripHTMLTags(htmlBody)
	}
	return strings.TrimSpace(text) + "\n"
}

// stripHTMLTags returns the visible text of htmlStr, one non-blank line per line
func stripHTMLTags(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	doc.Find("head, style, script").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
