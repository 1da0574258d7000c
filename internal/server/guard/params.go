package guard

import "strings"

// Source names where in a request a parameter was found.
type Source string

const (
	SourceBody     Source = "body"
	SourcePath     Source = "path"
	SourceQuery    Source = "query"
	SourceMetadata Source = "metadata"
)

// Rule points at one place a project id may appear.
type Rule struct {
	Source Source
	Name   string
}

func (r Rule) String() string { return string(r.Source) + "." + r.Name }

// DefaultRules covers the snake_case and camelCase spellings used by body
// fields and route parameters.
var DefaultRules = []Rule{
	{SourceBody, "project_id"},
	{SourceBody, "projectId"},
	{SourcePath, "projectId"},
	{SourcePath, "project_id"},
}

// Params holds request parameters grouped by source.
type Params map[Source]map[string]string

func (p Params) Set(src Source, name, value string) {
	m, ok := p[src]
	if !ok {
		m = make(map[string]string)
		p[src] = m
	}
	m[name] = value
}

func (p Params) Get(src Source, name string) string {
	return p[src][name]
}

// Candidates evaluates rules in order and returns the distinct, trimmed,
// non-empty values in first-seen order.
func (p Params) Candidates(rules []Rule) []string {
	seen := make(map[string]struct{}, len(rules))
	var out []string
	for _, r := range rules {
		v := strings.TrimSpace(p.Get(r.Source, r.Name))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
