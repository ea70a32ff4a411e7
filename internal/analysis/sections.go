package analysis

import "strings"

// Section is one heading-delimited slice of the extracted document.
type Section struct {
	Title string
	Body  string
}

// ParseSections splits markdown into ordered sections at heading boundaries.
// A line whose trimmed form begins with "#" starts a new section titled by
// that line. Content before the first heading becomes an implicit untitled
// section. An empty document yields no sections.
func ParseSections(markdown string) []Section {
	var sections []Section
	var current *Section
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimRight(body.String(), "\n")
		sections = append(sections, *current)
		current = nil
		body.Reset()
	}

	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			flush()
			current = &Section{Title: strings.TrimSpace(line)}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" && body.Len() == 0 {
				continue
			}
			current = &Section{}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}
