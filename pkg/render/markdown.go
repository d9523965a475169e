// Package render formats session content for the terminal. Everything is
// produced as markdown first and optionally styled with glamour.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/pkg/errors"
)

const answerTemplate = `
{{- .Content }}
{{ if .Sources }}
### Sources
{{ range $i, $s := .Sources }}
{{ inc $i }}. **{{ $s.DocumentID }}** ({{ percent $s.SimilarityScore }}{{ if $s.Metadata.DocumentType }}, {{ $s.Metadata.DocumentType }}{{ end }})
   {{ truncate $s.Content 240 }}
{{ end }}
{{- end }}
{{- with .Usage }}
_{{ .TokensUsed }} tokens · {{ .ProcessingTimeMs }} ms{{ if .LLMModel }} · {{ .LLMProvider }}/{{ .LLMModel }}{{ end }}_
{{ end }}`

const searchTemplate = `
{{- if not . }}No documents found.
{{ end }}
{{- range $i, $r := . }}
## {{ inc $i }}. {{ $r.DocumentID }}

- **Score:** {{ percent $r.SimilarityScore }}
{{- if $r.Metadata.DocumentType }}
- **Type:** {{ $r.Metadata.DocumentType }}
{{- end }}
{{- if $r.Metadata.ProcessedAt }}
- **Processed:** {{ $r.Metadata.ProcessedAt }}
{{- end }}

{{ $r.TextRepresentation }}
{{ if $r.OriginalData }}
` + "```json" + `
{{ indentJSON $r.OriginalData }}
` + "```" + `
{{ end }}
{{ end }}`

const embedTemplate = `
## Document {{ .DocumentID }}

- **Content hash:** {{ .ContentHash }}
- **Embedding dimension:** {{ .EmbeddingDimension }}
- **Fields:** {{ .Metadata.FieldCount }} ({{ .Metadata.NestedLevels }} nested levels)
{{- if .Metadata.DataTypes }}
- **Data types:** {{ join .Metadata.DataTypes ", " }}
{{- end }}
{{- if .Metadata.DocumentType }}
- **Document type:** {{ .Metadata.DocumentType }}
{{- end }}

{{ .TextRepresentation }}
`

const conversationTemplate = `
# Conversation {{ .ID }}
{{ range .Messages }}
**{{ .Role }}**{{ if not .Timestamp.IsZero }} _{{ .Timestamp.Format "2006-01-02 15:04" }}_{{ end }}

{{ .Content }}
{{ end }}`

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"inc":        func(i int) int { return i + 1 },
	"percent":    FormatScore,
	"truncate":   truncate,
	"indentJSON": indentJSON,
	"join":       strings.Join,
}).Parse(`{{ define "answer" }}` + answerTemplate + `{{ end }}` +
	`{{ define "search" }}` + searchTemplate + `{{ end }}` +
	`{{ define "embed" }}` + embedTemplate + `{{ end }}` +
	`{{ define "conversation" }}` + conversationTemplate + `{{ end }}`))

// Renderer turns session values into markdown, styled with glamour when a
// style is set.
type Renderer struct {
	style string
}

// New returns a renderer. An empty style leaves the markdown as is.
func New(style string) *Renderer {
	return &Renderer{style: style}
}

func (r *Renderer) Answer(m api.Message) (string, error) {
	return r.execute("answer", m)
}

func (r *Renderer) SearchResults(results []api.SearchResult) (string, error) {
	return r.execute("search", results)
}

func (r *Renderer) Embed(rec api.EmbedRecord) (string, error) {
	return r.execute("embed", rec)
}

func (r *Renderer) Conversation(c api.Conversation) (string, error) {
	return r.execute("conversation", c)
}

func (r *Renderer) execute(name string, data interface{}) (string, error) {
	var buffer bytes.Buffer
	if err := templates.ExecuteTemplate(&buffer, name, data); err != nil {
		return "", errors.Wrapf(err, "could not render %s", name)
	}
	if r.style == "" {
		return buffer.String(), nil
	}
	styled, err := glamour.Render(buffer.String(), r.style)
	if err != nil {
		return "", errors.Wrap(err, "could not style markdown")
	}
	return styled, nil
}

// FormatScore renders a similarity score as a percentage with one decimal.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
