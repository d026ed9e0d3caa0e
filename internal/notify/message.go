package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/hellojin97/copilot-ci-automation/internal/analysis"
	"github.com/hellojin97/copilot-ci-automation/internal/report"
	"golang.org/x/net/html"
)

// DefaultSubject builds the subject line from the analysis period.
func DefaultSubject(res *analysis.Result, now time.Time) string {
	if res == nil {
		return fmt.Sprintf("%s - %s", report.Title, now.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s (%s ~ %s)", report.Title,
		res.Summary.Start.Format("2006-01-02"), res.Summary.End.Format("2006-01-02"))
}

var bodyTemplate = template.Must(template.New("body").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #2c3e50; border-bottom: 3px solid #3498db; padding-bottom: 10px;">{{.Title}}</h2>
<p>Hello,</p>
{{if .Period}}<p>Please find attached the sales data analysis report for <strong>{{.Period}}</strong>.</p>{{else}}<p>Please find attached the sales data analysis report.</p>{{end}}
{{if .Metrics}}<div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
<h3 style="color: #2c3e50; margin-top: 0;">Key Figures</h3>
<ul>
{{range .Metrics}}<li>{{.Label}}: <strong>{{.Value}}</strong></li>
{{end}}</ul>
</div>{{end}}
{{if .Leaders}}<div style="background-color: #e8f4fd; padding: 20px; border-radius: 8px; margin: 20px 0;">
<h3 style="color: #2c3e50; margin-top: 0;">Highlights</h3>
<ul>
{{range .Leaders}}<li>{{.Label}}: <strong>{{.Value}}</strong> ({{.Amount}})</li>
{{end}}</ul>
</div>{{end}}
<p><strong>Attachment:</strong> {{.Attachment}} contains the full analysis.</p>
<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
<p style="color: #666; font-size: 14px;">This report was generated automatically.<br>Generated: {{.Generated}}</p>
</div>
</body>
</html>
`))

type bodyItem struct {
	Label, Value, Amount string
}

type bodyData struct {
	Title      string
	Period     string
	Metrics    []bodyItem
	Leaders    []bodyItem
	Attachment string
	Generated  string
}

// RenderHTML renders the email body summarising res.
func RenderHTML(res *analysis.Result, currency, attachment string, now time.Time) (string, error) {
	if currency == "" {
		currency = "$"
	}
	d := bodyData{
		Title:      report.Title,
		Attachment: attachment,
		Generated:  now.Format("January 2, 2006 15:04"),
	}
	if res != nil {
		s := res.Summary
		d.Period = fmt.Sprintf("%s ~ %s", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
		d.Metrics = []bodyItem{
			{Label: "Total revenue", Value: report.FormatCurrency(currency, s.TotalRevenue)},
			{Label: "Total quantity", Value: report.FormatCount(s.TotalQuantity)},
			{Label: "Total orders", Value: report.FormatCount(int64(s.Orders))},
			{Label: "Average order value", Value: report.FormatCurrency(currency, s.AvgOrderValue)},
		}
		leaders := []struct {
			label   string
			section analysis.Section
		}{
			{"Top category", analysis.ByCategory},
			{"Top region", analysis.ByRegion},
			{"Top salesperson", analysis.BySalesperson},
			{"Best-selling product", analysis.TopProducts},
		}
		for _, l := range leaders {
			if g, ok := res.Top(l.section); ok {
				d.Leaders = append(d.Leaders, bodyItem{Label: l.label, Value: g.Label, Amount: report.FormatCurrency(currency, g.Revenue)})
			}
		}
	}
	var b strings.Builder
	if err := bodyTemplate.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return b.String(), nil
}

// HTMLToText converts an HTML fragment to a readable plain-text rendition.
func HTMLToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			t := strings.Join(strings.Fields(n.Data), " ")
			if t == "" {
				b.WriteString(" ")
				break
			}
			if strings.TrimLeftFunc(n.Data, unicode.IsSpace) != n.Data {
				b.WriteString(" ")
			}
			b.WriteString(t)
			if strings.TrimRightFunc(n.Data, unicode.IsSpace) != n.Data {
				b.WriteString(" ")
			}
		case html.ElementNode:
			switch n.Data {
			case "p", "div", "br", "h1", "h2", "h3", "ul", "hr":
				b.WriteString("\n")
			case "li":
				b.WriteString("\n- ")
			case "style", "head", "script":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "h2", "h3", "ul", "div":
				b.WriteString("\n")
			}
		}
	}
	walk(doc)

	var lines []string
	blank := false
	for _, l := range strings.Split(b.String(), "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Message is an outgoing email with one attachment.
type Message struct {
	From           string
	To             []string
	Subject        string
	HTML           string
	AttachmentName string
	Attachment     []byte
	Date           time.Time
}

// Bytes encodes m as multipart/mixed with a multipart/alternative body.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)
	host := "localhost"
	if _, domain, ok := strings.Cut(m.From, "@"); ok {
		host = domain
	}

	hdr := []string{
		"From: " + m.From,
		"To: " + strings.Join(m.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", m.Subject),
		"Date: " + m.Date.Format(time.RFC1123Z),
		fmt.Sprintf("Message-ID: <%s@%s>", uuid.NewString(), host),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mixed.Boundary()),
	}
	buf.WriteString(strings.Join(hdr, "\r\n"))
	buf.WriteString("\r\n\r\n")

	var alt bytes.Buffer
	altW := multipart.NewWriter(&alt)
	if err := writePart(altW, "text/plain; charset=utf-8", "quoted-printable", []byte(HTMLToText(m.HTML)), nil); err != nil {
		return nil, err
	}
	if err := writePart(altW, "text/html; charset=utf-8", "quoted-printable", []byte(m.HTML), nil); err != nil {
		return nil, err
	}
	if err := altW.Close(); err != nil {
		return nil, err
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altW.Boundary()))
	pw, err := mixed.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := pw.Write(alt.Bytes()); err != nil {
		return nil, err
	}

	name := filepath.Base(m.AttachmentName)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	disp := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	}
	if err := writePart(mixed, mime.FormatMediaType(ctype, map[string]string{"name": name}), "base64", m.Attachment, disp); err != nil {
		return nil, err
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *multipart.Writer, ctype, encoding string, body []byte, extra map[string]string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", ctype)
	h.Set("Content-Transfer-Encoding", encoding)
	for k, v := range extra {
		h.Set(k, v)
	}
	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create mime part: %w", err)
	}
	switch encoding {
	case "base64":
		return writeBase64(pw, body)
	case "quoted-printable":
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write(body); err != nil {
			return err
		}
		return qp.Close()
	default:
		_, err := pw.Write(body)
		return err
	}
}

// writeBase64 writes data base64-encoded in 76-column lines.
func writeBase64(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", enc[:76]); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", enc)
	return err
}
