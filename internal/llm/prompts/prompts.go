package prompts

import (
	_ "embed"
	"os"
	"strings"
	"text/template"
)

//go:embed system.md
var defaultSystemPrompt string

//go:embed explain.md
var defaultExplainPrompt string

// ExplainData feeds the explain template. Summary is the plain-text backtest
// summary; Context is optional operator guidance appended to the prompt.
type ExplainData struct {
	Summary string
	Context string
}

func DefaultSystemPrompt() string {
	return defaultSystemPrompt
}

func DefaultExplainPrompt() string {
	return defaultExplainPrompt
}

// LoadTemplate returns the file contents at path, or fallback when the path is
// empty or unreadable.
func LoadTemplate(path string, fallback string) string {
	if path == "" {
		return fallback
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	return string(contents)
}

func RenderExplainPrompt(templateText string, data ExplainData) (string, error) {
	tmpl, err := template.New("explain").Option("missingkey=error").Parse(templateText)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	if err := tmpl.Execute(&builder, data); err != nil {
		return "", err
	}
	return builder.String(), nil
}
