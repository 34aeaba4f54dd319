package migration

import (
	"fmt"
	"regexp"
	"strings"
)

// Dependency is an (app_label, migration_name) pair.
type Dependency struct {
	App  string
	Name string

	// Quote is the quote character used in the source, ' or ".
	// It is zero for dependencies built in code.
	Quote byte
}

// String renders the pair as a tuple literal.
func (d Dependency) String() string {
	q := string(d.quote())
	return fmt.Sprintf("(%s%s%s, %s%s%s)", q, d.App, q, q, d.Name, q)
}

func (d Dependency) quote() byte {
	if d.Quote == '"' {
		return '"'
	}
	return '\''
}

// Matches reports whether d names the same migration as other, ignoring
// quote style.
func (d Dependency) Matches(other Dependency) bool {
	return d.App == other.App && d.Name == other.Name
}

var (
	dependenciesStart = regexp.MustCompile(`(?m)^[ \t]*dependencies[ \t]*=[ \t]*[\[(]`)

	// Groups: 1 app open quote, 2 app, 3 app close quote, 4 name open
	// quote, 5 name, 6 name close quote. Quote pairing is checked by the
	// caller since RE2 has no backreferences.
	dependencyTuple = regexp.MustCompile(`\(\s*(['"])([^'"\n]*)(['"])\s*,\s*(['"])([^'"\n]*)(['"])\s*,?\s*\)`)
)

// dependencyBlock returns the byte range of the dependencies list body,
// or ok == false when the file declares none. body is text[start:end] with
// comments blanked out, so offsets into body are offsets into the range.
func dependencyBlock(text string) (start, end int, body string, ok bool) {
	loc := dependenciesStart.FindStringIndex(text)
	if loc == nil {
		return 0, 0, "", false
	}

	masked := []byte(text)
	depth := 1
	var inQuote byte
	for i := loc[1]; i < len(text); i++ {
		c := text[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				masked[i] = ' '
				i++
			}
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			depth--
			if depth == 0 {
				return loc[1], i, string(masked[loc[1]:i]), true
			}
		}
	}
	return 0, 0, "", false
}

type tupleMatch struct {
	dep Dependency

	// byte offsets of the app and name contents in the full text
	appStart, appEnd   int
	nameStart, nameEnd int
}

func findTuples(text string) []tupleMatch {
	start, _, body, ok := dependencyBlock(text)
	if !ok {
		return nil
	}

	var matches []tupleMatch
	for _, m := range dependencyTuple.FindAllStringSubmatchIndex(body, -1) {
		for i := range m {
			m[i] += start
		}
		appOpen, appClose := text[m[2]:m[3]], text[m[6]:m[7]]
		nameOpen, nameClose := text[m[8]:m[9]], text[m[12]:m[13]]
		if appOpen != appClose || nameOpen != nameClose {
			continue
		}

		matches = append(matches, tupleMatch{
			dep: Dependency{
				App:   text[m[4]:m[5]],
				Name:  text[m[10]:m[11]],
				Quote: appOpen[0],
			},
			appStart:  m[4],
			appEnd:    m[5],
			nameStart: m[10],
			nameEnd:   m[11],
		})
	}
	return matches
}

// ParseDependencies returns the (app, name) tuples of the file's
// dependencies list, in source order. Non-literal entries such as
// swappable_dependency(...) are skipped.
func ParseDependencies(text string) []Dependency {
	matches := findTuples(text)
	if len(matches) == 0 {
		return nil
	}

	deps := make([]Dependency, len(matches))
	for i, m := range matches {
		deps[i] = m.dep
	}
	return deps
}

// RewriteDependency replaces every dependencies-list tuple equal to from
// with to. Only the quoted app and name contents change; quotes, spacing
// and everything outside the matched tuples are preserved byte for byte.
func RewriteDependency(text string, from, to Dependency) string {
	out, _ := RewriteDependencies(text, func(d Dependency) (Dependency, bool) {
		return to, d.Matches(from)
	})
	return out
}

// RewriteDependencies rewrites the dependencies list in a single pass:
// each tuple for which replace returns true takes the returned app and
// name. A tuple is rewritten at most once, so mappings that chain (a to b,
// b to c) do not compound. It returns the new text and the number of
// tuples rewritten.
func RewriteDependencies(text string, replace func(Dependency) (Dependency, bool)) (string, int) {
	var b strings.Builder
	last, n := 0, 0

	for _, m := range findTuples(text) {
		to, ok := replace(m.dep)
		if !ok {
			continue
		}
		b.WriteString(text[last:m.appStart])
		b.WriteString(to.App)
		b.WriteString(text[m.appEnd:m.nameStart])
		b.WriteString(to.Name)
		last = m.nameEnd
		n++
	}

	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}
