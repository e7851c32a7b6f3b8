package migratelint

import (
	"regexp"
)

type Severity string

const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityOff   Severity = "off"
)

// Rule matches one risky statement shape. Pattern runs against a normalized
// statement: comments stripped, string literals blanked, whitespace collapsed,
// uppercased.
type Rule struct {
	Name     string
	Severity Severity
	Message  string
	Pattern  *regexp.Regexp

	// Unless, when set and matching, suppresses the finding (e.g. a DEFAULT
	// clause next to NOT NULL).
	Unless *regexp.Regexp
}

// DefaultRules are the shipped rule set. Severities can be overridden per
// rule via config; the patterns are fixed.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "drop-table",
			Severity: SeverityBlock,
			Message:  "DROP TABLE destroys data and cannot be rolled back in place",
			Pattern:  regexp.MustCompile(`\bDROP\s+TABLE\b`),
		},
		{
			Name:     "drop-column",
			Severity: SeverityBlock,
			Message:  "dropping a column breaks older application versions still reading it",
			Pattern:  regexp.MustCompile(`\bALTER\s+TABLE\b.*\bDROP\s+COLUMN\b`),
		},
		{
			Name:     "rename-table",
			Severity: SeverityBlock,
			Message:  "renaming a table breaks every query against the old name during rollout",
			Pattern:  regexp.MustCompile(`\bALTER\s+TABLE\b.*\bRENAME\s+TO\b`),
		},
		{
			Name:     "rename-column",
			Severity: SeverityBlock,
			Message:  "renaming a column breaks older application versions; add a new column instead",
			Pattern:  regexp.MustCompile(`\bALTER\s+TABLE\b.*\bRENAME\s+(?:COLUMN\s+)?\S+\s+TO\b`),
		},
		{
			Name:     "alter-column-type",
			Severity: SeverityBlock,
			Message:  "ALTER COLUMN TYPE rewrites the table under an ACCESS EXCLUSIVE lock",
			Pattern:  regexp.MustCompile(`\bALTER\s+COLUMN\b.*\bTYPE\b`),
		},
		{
			Name:     "not-null-no-default",
			Severity: SeverityWarn,
			Message:  "adding NOT NULL without a DEFAULT fails on existing rows",
			Pattern:  regexp.MustCompile(`\bADD\s+COLUMN\b.*\bNOT\s+NULL\b`),
			Unless:   regexp.MustCompile(`\bDEFAULT\b`),
		},
		{
			Name:     "non-concurrent-index",
			Severity: SeverityWarn,
			Message:  "CREATE INDEX without CONCURRENTLY blocks writes for the whole build",
			Pattern:  regexp.MustCompile(`\bCREATE\s+(?:UNIQUE\s+)?INDEX\b`),
			Unless:   regexp.MustCompile(`\bCONCURRENTLY\b`),
		},
		{
			Name:     "truncate",
			Severity: SeverityBlock,
			Message:  "TRUNCATE destroys data",
			Pattern:  regexp.MustCompile(`\bTRUNCATE\b`),
		},
	}
}
