package migratelint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Finding is one rule hit in one statement.
type Finding struct {
	File     string
	Line     int
	Rule     string
	Severity Severity
	Message  string
	Snippet  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: [%s] %s: %s", f.File, f.Line, f.Severity, f.Rule, f.Message)
}

type Linter struct {
	rules []Rule
}

func New(rules []Rule) *Linter {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Severity == SeverityOff {
			continue
		}
		active = append(active, r)
	}
	return &Linter{rules: active}
}

// LintSQL lints one migration's contents. name is used in findings only.
func (l *Linter) LintSQL(name, sql string) []Finding {
	var findings []Finding
	for _, stmt := range splitStatements(sql) {
		normalized := normalize(stmt.text)
		if normalized == "" {
			continue
		}
		for _, rule := range l.rules {
			if !rule.Pattern.MatchString(normalized) {
				continue
			}
			if rule.Unless != nil && rule.Unless.MatchString(normalized) {
				continue
			}
			findings = append(findings, Finding{
				File:     name,
				Line:     stmt.line,
				Rule:     rule.Name,
				Severity: rule.Severity,
				Message:  rule.Message,
				Snippet:  snippet(stmt.text),
			})
		}
	}
	return findings
}

func (l *Linter) LintFile(path string) ([]Finding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.LintSQL(path, string(raw)), nil
}

// LintPaths lints files and directories. Directories are walked for .sql
// files; file order is deterministic.
func (l *Linter) LintPaths(paths []string) ([]Finding, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".sql") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	var all []Finding
	for _, f := range files {
		findings, err := l.LintFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, findings...)
	}
	return all, nil
}

// HasBlockers reports whether any finding is at block severity.
func HasBlockers(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

type statement struct {
	text string
	line int // 1-based line of the statement's first non-blank char
}

// splitStatements splits on top-level semicolons, skipping single-quoted
// strings, line comments, block comments, and dollar-quoted bodies.
func splitStatements(sql string) []statement {
	var out []statement
	var buf strings.Builder
	line := 1
	startLine := 0

	i := 0
	for i < len(sql) {
		c := sql[i]

		if c == '\n' {
			line++
			buf.WriteByte(c)
			i++
			continue
		}

		// line comment
		if c == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			continue
		}

		// block comment
		if c == '/' && i+1 < len(sql) && sql[i+1] == '*' {
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				if sql[i] == '\n' {
					line++
				}
				i++
			}
			i += 2
			continue
		}

		// single-quoted string; '' is an escaped quote
		if c == '\'' {
			buf.WriteByte(c)
			i++
			for i < len(sql) {
				if sql[i] == '\n' {
					line++
				}
				if sql[i] == '\'' {
					if i+1 < len(sql) && sql[i+1] == '\'' {
						i += 2
						continue
					}
					buf.WriteByte('\'')
					i++
					break
				}
				i++
			}
			continue
		}

		// dollar-quoted body, e.g. $$...$$ or $fn$...$fn$
		if c == '$' {
			if tag, ok := dollarTag(sql[i:]); ok {
				end := strings.Index(sql[i+len(tag):], tag)
				if end >= 0 {
					body := sql[i : i+len(tag)+end+len(tag)]
					line += strings.Count(body, "\n")
					i += len(body)
					buf.WriteString(" ")
					continue
				}
			}
		}

		if c == ';' {
			out = appendStatement(out, buf.String(), startLine)
			buf.Reset()
			startLine = 0
			i++
			continue
		}

		if startLine == 0 && !isSpace(c) {
			startLine = line
		}
		buf.WriteByte(c)
		i++
	}
	out = appendStatement(out, buf.String(), startLine)
	return out
}

func appendStatement(out []statement, text string, line int) []statement {
	if strings.TrimSpace(text) == "" {
		return out
	}
	if line == 0 {
		line = 1
	}
	return append(out, statement{text: text, line: line})
}

var dollarTagRe = regexp.MustCompile(`^\$[A-Za-z_]*\$`)

func dollarTag(s string) (string, bool) {
	tag := dollarTagRe.FindString(s)
	return tag, tag != ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalize uppercases and collapses whitespace so rule patterns can assume
// single spaces; quoted literal contents are blanked to avoid false hits.
func normalize(stmt string) string {
	stmt = blankLiterals(stmt)
	stmt = whitespaceRe.ReplaceAllString(stmt, " ")
	return strings.ToUpper(strings.TrimSpace(stmt))
}

func blankLiterals(stmt string) string {
	var b strings.Builder
	in := false
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if c == '\'' {
			in = !in
			b.WriteByte(c)
			continue
		}
		if in {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func snippet(stmt string) string {
	s := whitespaceRe.ReplaceAllString(strings.TrimSpace(stmt), " ")
	const max = 120
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
