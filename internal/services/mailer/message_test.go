package mailer

import (
	"bytes"
	"io"
	"net/mail"
	"testing"
	"time"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/marketbrief/internal/models"
)

func testEnvelope() envelope {
	return envelope{
		From: &mail.Address{Name: "Market Brief", Address: "brief@example.com"},
		Recipients: []*mail.Address{
			{Address: "alice@example.com"},
			{Address: "bob@example.com"},
		},
		Date: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
}

func testReport() *models.Report {
	return &models.Report{
		RunID:    "run_123",
		Subject:  "Daily Market Brief – 19 Oct 2026",
		HTMLBody: `<html><body><img src="cid:chart"><p>Nifty 50 ▲ +0.80%</p></body></html>`,
		TextBody: "Nifty 50 ▲ +0.80%\n",
		Chart:    []byte("\x89PNG\r\n\x1a\nfake"),
	}
}

// part is a decoded leaf of a parsed message
type part struct {
	contentType string
	params      map[string]string
	header      message.Header
	body        []byte
}

// flatten walks a parsed entity depth-first, returning container types and leaves in order.
func flatten(t *testing.T, e *message.Entity, containers *[]string, leaves *[]part) {
	t.Helper()
	mediaType, params, err := e.Header.ContentType()
	require.NoError(t, err)

	if mr := e.MultipartReader(); mr != nil {
		*containers = append(*containers, mediaType)
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			flatten(t, p, containers, leaves)
		}
		return
	}

	body, err := io.ReadAll(e.Body)
	require.NoError(t, err)
	*leaves = append(*leaves, part{contentType: mediaType, params: params, header: e.Header, body: body})
}

func TestBuildMessage_Structure(t *testing.T) {
	report := testReport()
	raw, err := buildMessage(testEnvelope(), report)
	require.NoError(t, err)

	entity, err := message.Read(bytes.NewReader(raw))
	require.NoError(t, err)

	var containers []string
	var leaves []part
	flatten(t, entity, &containers, &leaves)

	assert.Equal(t, []string{"multipart/mixed", "multipart/related", "multipart/alternative"}, containers)
	require.Len(t, leaves, 3)

	assert.Equal(t, "text/plain", leaves[0].contentType)
	assert.Equal(t, report.TextBody, string(leaves[0].body))

	assert.Equal(t, "text/html", leaves[1].contentType)
	assert.Equal(t, report.HTMLBody, string(leaves[1].body))

	assert.Equal(t, "image/png", leaves[2].contentType)
	assert.Equal(t, "<chart>", leaves[2].header.Get("Content-Id"))
	disp, _, err := leaves[2].header.ContentDisposition()
	require.NoError(t, err)
	assert.Equal(t, "inline", disp)
	assert.Equal(t, report.Chart, leaves[2].body)
}

func TestBuildMessage_PDFAttachment(t *testing.T) {
	report := testReport()
	report.PDF = []byte("%PDF-1.4 fake")

	raw, err := buildMessage(testEnvelope(), report)
	require.NoError(t, err)

	entity, err := message.Read(bytes.NewReader(raw))
	require.NoError(t, err)

	var containers []string
	var leaves []part
	flatten(t, entity, &containers, &leaves)

	require.Len(t, leaves, 4)
	pdf := leaves[3]
	assert.Equal(t, "application/pdf", pdf.contentType)
	disp, params, err := pdf.header.ContentDisposition()
	require.NoError(t, err)
	assert.Equal(t, "attachment", disp)
	assert.Equal(t, PDFFilename, params["filename"])
	assert.Equal(t, report.PDF, pdf.body)
}

func TestBuildMessage_Headers(t *testing.T) {
	raw, err := buildMessage(testEnvelope(), testReport())
	require.NoError(t, err)

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Daily Market Brief – 19 Oct 2026", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "Market Brief", from[0].Name)
	assert.Equal(t, "brief@example.com", from[0].Address)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "alice@example.com", to[0].Address)
	assert.Equal(t, "bob@example.com", to[1].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "run_123", mr.Header.Get("X-Marketbrief-Run"))
}

func TestBuildMessage_NoChart(t *testing.T) {
	report := testReport()
	report.Chart = nil

	raw, err := buildMessage(testEnvelope(), report)
	require.NoError(t, err)

	entity, err := message.Read(bytes.NewReader(raw))
	require.NoError(t, err)

	var containers []string
	var leaves []part
	flatten(t, entity, &containers, &leaves)
	assert.Len(t, leaves, 2)
}
