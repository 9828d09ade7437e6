// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"go.yaml.in/yaml/v3"
)

// Required prompt-template names.
const (
	PromptGenerateQuery = "generate_query"
	PromptGetSelected   = "get_selected"
	PromptSelectSection = "select_section"
)

// PromptSet is a named set of prompt templates loaded from a YAML file.
// The three required templates drive query planning (generate_query),
// relevance scoring (get_selected), and section selection (select_section).
type PromptSet struct {
	generateQuery *template.Template
	getSelected   *template.Template
	selectSection *template.Template
}

// LoadPromptSet reads and parses a prompt-template YAML file. All three
// required keys must be present and parse as text/template sources.
func LoadPromptSet(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt set %s: %w", path, err)
	}
	return ParsePromptSet(data)
}

// ParsePromptSet parses prompt templates from YAML bytes.
func ParsePromptSet(data []byte) (*PromptSet, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing prompt set: %w", err)
	}

	ps := &PromptSet{}
	for _, entry := range []struct {
		name string
		dst  **template.Template
	}{
		{PromptGenerateQuery, &ps.generateQuery},
		{PromptGetSelected, &ps.getSelected},
		{PromptSelectSection, &ps.selectSection},
	} {
		src, ok := raw[entry.name]
		if !ok || strings.TrimSpace(src) == "" {
			return nil, fmt.Errorf("prompt set missing required template %q", entry.name)
		}
		tmpl, err := template.New(entry.name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing template %q: %w", entry.name, err)
		}
		*entry.dst = tmpl
	}
	return ps, nil
}

// GenerateQuery renders the query-planning prompt for a user query.
func (p *PromptSet) GenerateQuery(userQuery string) (string, error) {
	return render(p.generateQuery, struct{ UserQuery string }{userQuery})
}

// GetSelected renders the relevance-scoring prompt for one candidate paper.
func (p *PromptSet) GetSelected(title, abstract, userQuery string) (string, error) {
	return render(p.getSelected, struct {
		Title     string
		Abstract  string
		UserQuery string
	}{title, abstract, userQuery})
}

// SelectSection renders the section-selection prompt, listing the paper's
// known section names for the oracle to choose from.
func (p *PromptSet) SelectSection(userQuery, title, abstract string, sections []string) (string, error) {
	return render(p.selectSection, struct {
		UserQuery string
		Title     string
		Abstract  string
		Sections  string
	}{userQuery, title, abstract, strings.Join(sections, ", ")})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
