package category

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are a helpful assistant that categorizes meetings based on the title and description.
Return one of these categories:
{{- range .Categories}}
- {{.}}
{{- end}}

Only return the category name.

Examples:
{{- range .Examples}}
Title: "{{.Title}}" → {{.Category}}
{{- end}}

Now categorize:
Title: {{.Title}}
Description: {{.Description}}
`))

// Example is a worked example embedded in every prompt.
type Example struct {
	Title    string
	Category Category
}

// Examples are the four worked examples the model sees.
var Examples = []Example{
	{"Weekly team sync", Team},
	{"Lunch with Alex", Personal},
	{"Performance review with manager", OneOnOne},
	{"Demo for ACME Corp", Client},
}

// Prompt renders the classification prompt for one event.
func Prompt(title, description string) string {
	var b strings.Builder
	_ = promptTemplate.Execute(&b, struct {
		Categories  []Category
		Examples    []Example
		Title       string
		Description string
	}{All(), Examples, title, description})
	return b.String()
}
