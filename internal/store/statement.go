package store

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Statement is one SQL statement of a batch.
type Statement struct {
	Text string
	// Verb is the upper-case leading keyword, for example SELECT.
	Verb string
	// Params lists the distinct named parameters ($x, :x, @x) by name, in
	// order of first use.
	Params []string
	// Returning is set when the statement has a RETURNING clause.
	Returning bool
	// Modifies is set when a data-changing keyword appears anywhere in the
	// statement, as in WITH ... INSERT.
	Modifies bool
}

// ReturnsRows reports whether the statement produces a result set.
func (s Statement) ReturnsRows() bool {
	switch s.Verb {
	case "SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN":
		return true
	}
	return s.Returning
}

// ReadOnly reports whether the statement can run without SQLite's write
// lock.
func (s Statement) ReadOnly() bool {
	switch s.Verb {
	case "SELECT", "WITH", "VALUES", "EXPLAIN":
		return !s.Modifies
	}
	return false
}

// IsTransactionControl reports whether the statement begins or ends a
// transaction or savepoint.
func (s Statement) IsTransactionControl() bool {
	switch s.Verb {
	case "BEGIN", "COMMIT", "END", "ROLLBACK", "SAVEPOINT", "RELEASE":
		return true
	}
	return false
}

// SplitStatements splits src on semicolons that are outside quotes,
// comments and trigger bodies. Statements holding only whitespace and
// comments are dropped.
func SplitStatements(src string) []Statement {
	var (
		out   []Statement
		sp    splitter
		start int
	)
	sp.reset()

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(src, i, c)
			sp.content = true
		case c == '[':
			i = skipQuoted(src, i, ']')
			sp.content = true
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
			} else {
				i += end + 4
			}
		case (c == '$' || c == ':' || c == '@') && i+1 < len(src) && isIdentStart(src[i+1:]) && !precededByIdent(src, i):
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			sp.param(src[i+1 : j])
			sp.content = true
			i = j
		case isIdentByte(c) || c >= utf8.RuneSelf:
			j := i
			for j < len(src) && (isIdentByte(src[j]) || src[j] >= utf8.RuneSelf) {
				j++
			}
			sp.word(src[i:j])
			sp.content = true
			i = j
		case c == ';' && sp.depth == 0:
			if sp.content {
				out = append(out, sp.statement(src[start:i]))
			}
			sp.reset()
			i++
			start = i
		default:
			if !unicode.IsSpace(rune(c)) {
				sp.content = true
			}
			i++
		}
	}
	if sp.content {
		out = append(out, sp.statement(src[start:]))
	}
	return out
}

type splitter struct {
	verb      string
	words     int
	trigger   bool
	depth     int
	returning bool
	modifies  bool
	content   bool
	params    []string
	seen      map[string]bool
}

func (sp *splitter) reset() {
	*sp = splitter{seen: map[string]bool{}}
}

func (sp *splitter) word(w string) {
	upper := strings.ToUpper(w)
	sp.words++
	switch {
	case sp.words == 1:
		sp.verb = upper
	case sp.verb == "CREATE" && sp.words <= 3 && upper == "TRIGGER":
		sp.trigger = true
	}

	switch upper {
	case "RETURNING":
		sp.returning = true
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		sp.modifies = true
	case "BEGIN":
		if sp.trigger {
			sp.depth++
		}
	case "CASE":
		if sp.depth > 0 {
			sp.depth++
		}
	case "END":
		if sp.depth > 0 {
			sp.depth--
		}
	}
}

func (sp *splitter) param(name string) {
	if sp.seen[name] {
		return
	}
	sp.seen[name] = true
	sp.params = append(sp.params, name)
}

func (sp *splitter) statement(text string) Statement {
	return Statement{
		Text:      strings.TrimSpace(text),
		Verb:      sp.verb,
		Params:    sp.params,
		Returning: sp.returning,
		Modifies:  sp.modifies,
	}
}

// skipQuoted returns the index after the quoted section starting at i. A
// doubled closing quote is an escaped quote.
func skipQuoted(src string, i int, closing byte) int {
	for j := i + 1; j < len(src); j++ {
		if src[j] != closing {
			continue
		}
		if closing != ']' && j+1 < len(src) && src[j+1] == closing {
			j++
			continue
		}
		return j + 1
	}
	return len(src)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// isIdentStart reports whether s starts with an ASCII letter.
// database/sql requires named arguments to start with a letter.
func isIdentStart(s string) bool {
	c := s[0]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func precededByIdent(src string, i int) bool {
	return i > 0 && isIdentByte(src[i-1])
}
