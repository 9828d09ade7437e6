// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"strings"
	"testing"
)

const validPromptYAML = `
generate_query: "plan searches for {{.UserQuery}}"
get_selected: "rate [{{.Title}}] ({{.Abstract}}) against {{.UserQuery}}"
select_section: "choose from {{.Sections}} of [{{.Title}}]"
`

func TestParsePromptSet(t *testing.T) {
	ps, err := ParsePromptSet([]byte(validPromptYAML))
	if err != nil {
		t.Fatalf("ParsePromptSet: %v", err)
	}

	got, err := ps.GenerateQuery("graph sampling")
	if err != nil {
		t.Fatalf("GenerateQuery: %v", err)
	}
	if got != "plan searches for graph sampling" {
		t.Errorf("GenerateQuery = %q", got)
	}

	got, err = ps.GetSelected("A Title", "An abstract", "graph sampling")
	if err != nil {
		t.Fatalf("GetSelected: %v", err)
	}
	if !strings.Contains(got, "[A Title]") || !strings.Contains(got, "An abstract") {
		t.Errorf("GetSelected = %q", got)
	}

	got, err = ps.SelectSection("graph sampling", "A Title", "An abstract", []string{"Intro", "Related Work"})
	if err != nil {
		t.Fatalf("SelectSection: %v", err)
	}
	if !strings.Contains(got, "Intro, Related Work") {
		t.Errorf("SelectSection = %q, want joined section list", got)
	}
}

func TestParsePromptSetMissingTemplate(t *testing.T) {
	for _, missing := range []string{PromptGenerateQuery, PromptGetSelected, PromptSelectSection} {
		t.Run(missing, func(t *testing.T) {
			var b strings.Builder
			for _, line := range strings.Split(strings.TrimSpace(validPromptYAML), "\n") {
				if !strings.HasPrefix(line, missing+":") {
					b.WriteString(line + "\n")
				}
			}
			if _, err := ParsePromptSet([]byte(b.String())); err == nil {
				t.Errorf("ParsePromptSet accepted a set without %q", missing)
			}
		})
	}
}

func TestParsePromptSetBadYAML(t *testing.T) {
	if _, err := ParsePromptSet([]byte("generate_query: [unclosed")); err == nil {
		t.Error("ParsePromptSet accepted invalid YAML")
	}
}

func TestRenderTrimsWhitespace(t *testing.T) {
	ps, err := ParsePromptSet([]byte(`
generate_query: "  padded {{.UserQuery}}  "
get_selected: "x"
select_section: "x"
`))
	if err != nil {
		t.Fatalf("ParsePromptSet: %v", err)
	}
	got, err := ps.GenerateQuery("q")
	if err != nil {
		t.Fatalf("GenerateQuery: %v", err)
	}
	if got != "padded q" {
		t.Errorf("GenerateQuery = %q, want trimmed output", got)
	}
}
