package mailer

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/marketbrief/internal/models"
)

// Attachment file names
const (
	ChartFilename = "market-performance.png"
	PDFFilename   = "market-brief.pdf"
)

// envelope holds the addressing for one message
type envelope struct {
	From       *mail.Address
	Recipients []*mail.Address
	Date       time.Time
}

// buildMessage assembles the MIME message for report:
//
//	multipart/mixed
//	├── multipart/related
//	│   ├── multipart/alternative (text/plain, text/html)
//	│   └── image/png  Content-ID: <chart>
//	└── application/pdf (when the report carries one)
func buildMessage(env envelope, report *models.Report) ([]byte, error) {
	var h mail.Header
	h.SetDate(env.Date)
	h.SetAddressList("From", []*mail.Address{env.From})
	h.SetAddressList("To", env.Recipients)
	h.SetSubject(report.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	if report.RunID != "" {
		h.Set("X-Marketbrief-Run", report.RunID)
	}
	h.Set("MIME-Version", "1.0")
	h.SetContentType("multipart/mixed", nil)

	var buf bytes.Buffer
	mixed, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	var relatedHeader message.Header
	relatedHeader.SetContentType("multipart/related", map[string]string{"type": "multipart/alternative"})
	related, err := mixed.CreatePart(relatedHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create related part: %w", err)
	}

	var altHeader message.Header
	altHeader.SetContentType("multipart/alternative", nil)
	alt, err := related.CreatePart(altHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create alternative part: %w", err)
	}
	if err := writeLeaf(alt, textHeader("text/plain"), []byte(report.TextBody)); err != nil {
		return nil, err
	}
	if err := writeLeaf(alt, textHeader("text/html"), []byte(report.HTMLBody)); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("failed to close alternative part: %w", err)
	}

	if len(report.Chart) > 0 {
		var imgHeader message.Header
		imgHeader.SetContentType("image/png", map[string]string{"name": ChartFilename})
		imgHeader.SetContentDisposition("inline", map[string]string{"filename": ChartFilename})
		imgHeader.Set("Content-Transfer-Encoding", "base64")
		imgHeader.Set("Content-ID", "<"+models.ChartContentID+">")
		if err := writeLeaf(related, imgHeader, report.Chart); err != nil {
			return nil, err
		}
	}
	if err := related.Close(); err != nil {
		return nil, fmt.Errorf("failed to close related part: %w", err)
	}

	if len(report.PDF) > 0 {
		var pdfHeader message.Header
		pdfHeader.SetContentType("application/pdf", map[string]string{"name": PDFFilename})
		pdfHeader.SetContentDisposition("attachment", map[string]string{"filename": PDFFilename})
		pdfHeader.Set("Content-Transfer-Encoding", "base64")
		if err := writeLeaf(mixed, pdfHeader, report.PDF); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}

	return buf.Bytes(), nil
}

func textHeader(contentType string) message.Header {
	var h message.Header
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	return h
}

// writeLeaf writes a single-part body under parent
func writeLeaf(parent *message.Writer, header message.Header, body []byte) error {
	mediaType, _, _ := header.ContentType()
	w, err := parent.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", mediaType, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to write %s part: %w", mediaType, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s part: %w", mediaType, err)
	}
	return nil
}
