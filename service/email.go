package service

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var submissionEmail = template.Must(template.New("submission").Funcs(template.FuncMap{
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
	"size": FormatFileSize,
}).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #003366; border-bottom: 2px solid #003366; padding-bottom: 10px;">New Portal Submission</h2>
  <h3 style="color: #0066cc;">Personal Information</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td><strong>Name:</strong></td><td>{{.Metadata.FirstName}} {{.Metadata.LastName}}</td></tr>
    <tr><td><strong>Email:</strong></td><td>{{.Metadata.Email}}</td></tr>
    <tr><td><strong>Phone:</strong></td><td>{{orNA .Metadata.Phone}}</td></tr>
    <tr><td><strong>Tax ID:</strong></td><td>{{orNA .Metadata.TaxID}}</td></tr>
    <tr><td><strong>Address:</strong></td><td>{{orNA .Metadata.Address}}</td></tr>
  </table>
  <h3 style="color: #0066cc;">Tax Information</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td><strong>Filing Status:</strong></td><td>{{orNA .Metadata.FilingStatus}}</td></tr>
    <tr><td><strong>Tax Year:</strong></td><td>{{orNA .Metadata.TaxYear}}</td></tr>
    <tr><td><strong>Service Type:</strong></td><td>{{orNA .Metadata.ServiceType}}</td></tr>
    {{- if .Metadata.FirstTimeFiling}}
    <tr><td><strong>First Time Filing:</strong></td><td>{{.Metadata.FirstTimeFiling}}</td></tr>
    {{- end}}
  </table>
  {{- if .Metadata.AdditionalInfo}}
  <h3 style="color: #0066cc;">Additional Information</h3>
  <p style="background: #f5f5f5; padding: 10px;">{{.Metadata.AdditionalInfo}}</p>
  {{- end}}
  <h3 style="color: #0066cc;">Uploaded Documents</h3>
  {{- if .Groups}}
  <ul style="list-style: none; padding: 0;">
    {{- range .Groups}}
    <li><strong style="color: #003366;">{{.Label}}:</strong>
      <ul>
        {{- range .Files}}
        <li>{{if .Link}}<a href="{{.Link}}">{{.OriginalName}}</a>{{else}}{{.OriginalName}}{{end}} ({{size .Size}})</li>
        {{- end}}
      </ul>
    </li>
    {{- end}}
  </ul>
  <p style="background: #e8f4fd; padding: 10px;"><strong>Files Location:</strong><br><code>{{.Location}}</code></p>
  {{- else}}
  <p style="color: #999;">No documents uploaded</p>
  {{- end}}
  <hr>
  <p style="color: #999; font-size: 12px;"><em>Submitted on {{.SubmittedAt}}</em></p>
</div>
`))

type emailFile struct {
	OriginalName string
	Size         int64
	Link         string
}

type emailGroup struct {
	Label string
	Files []emailFile
}

// RenderSubmissionEmail renders the staff email body. Files are grouped by
// category in the order they were uploaded.
func RenderSubmissionEmail(n *Notification) ([]byte, error) {
	var groups []*emailGroup
	byField := make(map[string]*emailGroup)
	for _, f := range n.Metadata.Files {
		g, ok := byField[f.FieldName]
		if !ok {
			g = &emailGroup{Label: f.Category().Label()}
			byField[f.FieldName] = g
			groups = append(groups, g)
		}
		g.Files = append(g.Files, emailFile{OriginalName: f.OriginalName, Size: f.Size, Link: n.FileLinks[f.FileName]})
	}

	submittedAt := n.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	var buf bytes.Buffer
	err := submissionEmail.Execute(&buf, map[string]any{
		"Metadata":    n.Metadata,
		"Groups":      groups,
		"Location":    n.Link,
		"SubmittedAt": submittedAt.Format("Jan 2, 2006 3:04 PM MST"),
	})
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatFileSize renders bytes as B, KB or MB with one decimal
func FormatFileSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
