package planner

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
)

//go:embed default_prompt.md
var defaultPrompt string

const (
	defaultRegion      = "Italia"
	noPreferences      = "Nessuna preferenza specificata"
	isoDate            = "2006-01-02"
	promptTemplateName = "prompt"
)

var defaultTemplate = template.Must(template.New(promptTemplateName).Parse(defaultPrompt))

type promptTemplateData struct {
	Trains            bool
	TrainingFrequency string
	TrainingDays      string
	Region            string
}

// PromptComposer builds the provider prompt from a GenerationRequest.
type PromptComposer struct {
	tmpl *template.Template
}

// NewPromptComposer loads the instruction template from path. When the file
// cannot be read or parsed the embedded default is used.
func NewPromptComposer(path string) *PromptComposer {
	return &PromptComposer{tmpl: loadTemplate(path)}
}

func loadTemplate(path string) *template.Template {
	if path == "" {
		return defaultTemplate
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultTemplate
	}
	tmpl, err := template.New(promptTemplateName).Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return defaultTemplate
	}
	return tmpl
}

// UsesDefault reports whether the embedded template is in use.
func (c *PromptComposer) UsesDefault() bool {
	return c.tmpl == defaultTemplate
}

// Compose renders the prompt: labelled context sections followed by the
// instruction template.
func (c *PromptComposer) Compose(req GenerationRequest) (string, error) {
	return compose(c.tmpl, req)
}

// ComposeDefault renders the prompt with the embedded template.
func (c *PromptComposer) ComposeDefault(req GenerationRequest) (string, error) {
	return compose(defaultTemplate, req)
}

func compose(tmpl *template.Template, req GenerationRequest) (string, error) {
	instructions, err := render(tmpl, req)
	if err != nil {
		return "", err
	}

	region := strings.TrimSpace(req.Region)
	if region == "" {
		region = defaultRegion
	}
	prefs := noPreferences
	if len(req.Disliked) > 0 {
		prefs = strings.Join(req.Disliked, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nDIETA BASE FORNITA DAL NUTRIZIONISTA:\n%s\n\n", req.DietText)
	fmt.Fprintf(&sb, "PREFERENZE ALIMENTARI (da evitare):\n%s\n\n", prefs)
	fmt.Fprintf(&sb, "REGIONE GEOGRAFICA:\n%s\n\n", region)
	fmt.Fprintf(&sb, "DATA DI INIZIO SETTIMANA:\n%s (Lunedì)\n\n", req.WeekStart.Format(isoDate))
	sb.WriteString(instructions)
	sb.WriteString("\n")
	return sb.String(), nil
}

func render(tmpl *template.Template, req GenerationRequest) (string, error) {
	data := promptTemplateData{
		Trains:            req.Trains,
		TrainingFrequency: notAvailable,
		TrainingDays:      notAvailable,
		Region:            defaultRegion,
	}
	if req.TrainingFrequency > 0 {
		data.TrainingFrequency = strconv.Itoa(req.TrainingFrequency)
	}
	if d := strings.TrimSpace(req.TrainingDays); d != "" {
		data.TrainingDays = d
	}
	if r := strings.TrimSpace(req.Region); r != "" {
		data.Region = r
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
