// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"regexp"
	"strings"
)

// LaTeX structure patterns for section-citation extraction.
var (
	// sectionRe matches \section{Name} and \section*{Name} headings.
	sectionRe = regexp.MustCompile(`\\section\*?\{([^}]*)\}`)

	// bibItemRe matches \bibitem{key} and \bibitem[label]{key} entries.
	bibItemRe = regexp.MustCompile(`\\bibitem(?:\[[^\]]*\])?\{([^}]*)\}`)

	// bibStartRe marks where the bibliography begins, which also ends the
	// last body section.
	bibStartRe = regexp.MustCompile(`\\begin\{thebibliography\}|\\bibliography\{`)

	// texCommandRe matches a LaTeX command with an optional braced
	// argument, keeping the argument text.
	texCommandRe = regexp.MustCompile(`\\[a-zA-Z]+\*?\s*(?:\{([^{}]*)\})?`)
)

// ParseSections extracts a section-to-cited-titles mapping from LaTeX
// source. Citation keys matched by citePattern inside each section body are
// resolved to titles through the source's own bibliography; keys without a
// bibliography entry are dropped. Returns an empty map when the source has
// no sections or no resolvable bibliography.
func ParseSections(src string, citePattern *regexp.Regexp) map[string][]string {
	bibliography := parseBibliography(src)
	if len(bibliography) == 0 {
		return map[string][]string{}
	}

	headings := sectionRe.FindAllStringSubmatchIndex(src, -1)
	if len(headings) == 0 {
		return map[string][]string{}
	}

	bodyEnd := len(src)
	if loc := bibStartRe.FindStringIndex(src); loc != nil {
		bodyEnd = loc[0]
	}

	sections := make(map[string][]string, len(headings))
	for i, h := range headings {
		name := strings.TrimSpace(src[h[2]:h[3]])
		if name == "" || h[1] >= bodyEnd {
			continue
		}

		end := bodyEnd
		if i+1 < len(headings) && headings[i+1][0] < end {
			end = headings[i+1][0]
		}
		body := src[h[1]:end]

		var titles []string
		seen := make(map[string]bool)
		for _, m := range citePattern.FindAllStringSubmatch(body, -1) {
			if len(m) < 2 {
				continue
			}
			for _, key := range strings.Split(m[1], ",") {
				key = strings.TrimSpace(key)
				title, ok := bibliography[key]
				if !ok || seen[title] {
					continue
				}
				seen[title] = true
				titles = append(titles, title)
			}
		}
		sections[name] = titles
	}
	return sections
}

// parseBibliography maps \bibitem keys to cited paper titles.
func parseBibliography(src string) map[string]string {
	matches := bibItemRe.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return nil
	}

	end := len(src)
	if loc := strings.Index(src, `\end{thebibliography}`); loc >= 0 {
		end = loc
	}

	bibliography := make(map[string]string, len(matches))
	for i, m := range matches {
		key := src[m[2]:m[3]]
		entryEnd := end
		if i+1 < len(matches) && matches[i+1][0] < entryEnd {
			entryEnd = matches[i+1][0]
		}
		if m[1] >= entryEnd {
			continue
		}
		if title := entryTitle(src[m[1]:entryEnd]); title != "" {
			bibliography[key] = title
		}
	}
	return bibliography
}

// entryTitle extracts the title from one bibliography entry. BibTeX-generated
// entries separate authors, title, and venue with \newblock; the title is the
// second block. Hand-written entries fall back to the second sentence, or the
// whole entry when it has no sentence structure.
func entryTitle(entry string) string {
	blocks := strings.Split(entry, `\newblock`)
	if len(blocks) >= 2 {
		return cleanTeX(firstSentence(blocks[1]))
	}

	sentences := strings.SplitN(entry, ". ", 3)
	if len(sentences) >= 2 {
		return cleanTeX(sentences[1])
	}
	return cleanTeX(entry)
}

// firstSentence cuts text at the first period followed by whitespace or
// end of text.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i := 0; i < len(text); i++ {
		if text[i] == '.' && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n') {
			return text[:i]
		}
	}
	return text
}

// cleanTeX strips LaTeX markup from a text fragment: commands keep their
// braced argument, remaining braces and ties are removed, and whitespace is
// collapsed.
func cleanTeX(text string) string {
	text = texCommandRe.ReplaceAllString(text, "$1")
	text = strings.NewReplacer("{", "", "}", "", "~", " ").Replace(text)
	text = strings.TrimRight(strings.TrimSpace(text), ".")
	return strings.Join(strings.Fields(text), " ")
}
