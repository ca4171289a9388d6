// Package pdf renders the brief as a PDF attachment.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	fontFamily = "Arial"
	baseSize   = 10.0
	margin     = 12.0
	pageWidth  = 210.0 - 2*margin
	chartImage = "chart"
)

// Direction colours as RGB, matching the HTML table
var (
	upRGB   = [3]int{0x27, 0xae, 0x60}
	downRGB = [3]int{0xe7, 0x4c, 0x3c}
	flatRGB = [3]int{0x95, 0xa5, 0xa6}
)

// Service converts rendered reports to PDF
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// Generate renders the report's markdown followed by its chart.
func (s *Service) Generate(report *models.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("report is nil")
	}

	s.logger.Debug().
		Int("markdown_len", len(report.Markdown)).
		Int("chart_bytes", len(report.Chart)).
		Msg("Converting report to PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(report.Subject, true)
	pdf.SetCreator("marketbrief", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", baseSize)

	source := []byte(report.Markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		size:   baseSize,
	}
	if err := ast.Walk(doc, renderer.walk); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	if len(report.Chart) > 0 {
		pdf.Ln(4)
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader(chartImage, opts, bytes.NewReader(report.Chart))
		pdf.ImageOptions(chartImage, margin, 0, pageWidth, 0, true, opts, 0, "")
	}

	if err := pdf.Error(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	tr     func(string) string
	size   float64
	bold   bool
	italic bool
	inList bool
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(fontFamily, style, r.size)
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(5, r.tr(pdfSafe(s)))
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 16.0
			if node.Level > 1 {
				size = 13
			}
			r.pdf.SetFont(fontFamily, "B", size)
		} else {
			r.pdf.Ln(8)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering && !r.inList {
			r.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.write(" ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.List:
		r.inList = entering
		if !entering {
			r.pdf.Ln(7)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(margin + 4)
			r.write("- ")
		}
	case *extast.Table:
		if entering {
			r.renderTable(r.tableRows(node))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) tableRows(n *extast.Table) [][]string {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.(type) {
			case *extast.TableHeader, *extast.TableRow:
				var row []string
				for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
					row = append(row, strings.TrimSpace(cellText(cell, r.source)))
				}
				rows = append(rows, row)
			}
		}
	}
	collect(n)
	return rows
}

// cellText concatenates the text segments under a table cell
func cellText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// renderTable draws rows with the first row as header. Body rows whose first cell
// starts with a direction arrow are coloured by it.
func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	numCols := len(rows[0])

	const fontSize = 9.0
	const rowHeight = 7.0

	widths := r.columnWidths(rows, numCols, fontSize)

	r.pdf.Ln(2)
	for i, row := range rows {
		rgb := [3]int{0x2c, 0x3e, 0x50}
		if i == 0 {
			r.pdf.SetFont(fontFamily, "B", fontSize)
			r.pdf.SetFillColor(236, 240, 241)
		} else {
			r.pdf.SetFont(fontFamily, "", fontSize)
			if len(row) > 0 {
				rgb = rowColor(row[0])
			}
		}

		for j := 0; j < numCols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			align := "L"
			if j > 0 && j < numCols-1 {
				align = "R"
			}
			if i > 0 && j > 1 && j < numCols-1 {
				r.pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
			} else {
				r.pdf.SetTextColor(0x2c, 0x3e, 0x50)
			}
			r.pdf.CellFormat(widths[j], rowHeight, r.tr(pdfSafe(cell)), "1", 0, align, i == 0, 0, "")
		}
		r.pdf.Ln(-1)
	}

	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.Ln(3)
	r.updateFont()
}

// columnWidths sizes columns to their widest cell, then stretches them to the page width.
func (r *pdfRenderer) columnWidths(rows [][]string, numCols int, fontSize float64) []float64 {
	widths := make([]float64, numCols)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(fontFamily, style, fontSize)
		for j := 0; j < numCols && j < len(row); j++ {
			w := r.pdf.GetStringWidth(r.tr(pdfSafe(row[j]))) + 4
			if w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total <= 0 {
		return widths
	}
	scale := pageWidth / total
	for j := range widths {
		widths[j] *= scale
	}
	return widths
}

func rowColor(firstCell string) [3]int {
	switch {
	case strings.HasPrefix(firstCell, models.DirectionUp.Arrow()):
		return upRGB
	case strings.HasPrefix(firstCell, models.DirectionDown.Arrow()):
		return downRGB
	default:
		return flatRGB
	}
}

// The core PDF fonts are cp1252; arrows have no glyph there.
var pdfReplacer = strings.NewReplacer(
	models.DirectionUp.Arrow(), "+",
	models.DirectionDown.Arrow(), "-",
)

func pdfSafe(s string) string {
	return pdfReplacer.Replace(unescape(s))
}

// unescape drops markdown backslash escapes before ASCII punctuation
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("\\`*_{}[]()#+-.!|<>", s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
