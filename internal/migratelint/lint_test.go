package migratelint

import (
	"os"
	"path/filepath"
	"testing"
)

func lintOne(t *testing.T, sql string) []Finding {
	t.Helper()
	return New(DefaultRules()).LintSQL("test.sql", sql)
}

func ruleNames(findings []Finding) []string {
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Rule)
	}
	return names
}

func TestRuleMatrix(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "drop table",
			sql:  `DROP TABLE old_events;`,
			want: []string{"drop-table"},
		},
		{
			name: "drop column",
			sql:  `ALTER TABLE room DROP COLUMN notes;`,
			want: []string{"drop-column"},
		},
		{
			name: "rename table",
			sql:  `ALTER TABLE room RENAME TO rooms;`,
			want: []string{"rename-table"},
		},
		{
			name: "rename column",
			sql:  `ALTER TABLE room RENAME COLUMN kind TO room_kind;`,
			want: []string{"rename-column"},
		},
		{
			name: "rename column without keyword",
			sql:  `ALTER TABLE room RENAME kind TO room_kind;`,
			want: []string{"rename-column"},
		},
		{
			name: "alter column type",
			sql:  `ALTER TABLE product ALTER COLUMN price_cents TYPE bigint;`,
			want: []string{"alter-column-type"},
		},
		{
			name: "not null without default",
			sql:  `ALTER TABLE room ADD COLUMN floor int NOT NULL;`,
			want: []string{"not-null-no-default"},
		},
		{
			name: "not null with default is fine",
			sql:  `ALTER TABLE room ADD COLUMN floor int NOT NULL DEFAULT 1;`,
			want: nil,
		},
		{
			name: "plain create index",
			sql:  `CREATE INDEX idx_room_user ON room (user_id);`,
			want: []string{"non-concurrent-index"},
		},
		{
			name: "unique index is also flagged",
			sql:  `CREATE UNIQUE INDEX idx_asset_key ON asset (storage_key);`,
			want: []string{"non-concurrent-index"},
		},
		{
			name: "concurrent index is fine",
			sql:  `CREATE INDEX CONCURRENTLY idx_room_user ON room (user_id);`,
			want: nil,
		},
		{
			name: "truncate",
			sql:  `TRUNCATE chat_turn;`,
			want: []string{"truncate"},
		},
		{
			name: "safe add column",
			sql:  `ALTER TABLE room ADD COLUMN floor int;`,
			want: nil,
		},
		{
			name: "lowercase still matches",
			sql:  `drop table old_events;`,
			want: []string{"drop-table"},
		},
		{
			name: "multiline statement",
			sql:  "ALTER TABLE room\n  DROP COLUMN notes;",
			want: []string{"drop-column"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ruleNames(lintOne(t, tc.sql))
			if len(got) != len(tc.want) {
				t.Fatalf("findings = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("findings = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestCommentsAndLiteralsIgnored(t *testing.T) {
	sql := `
-- DROP TABLE room;
/* TRUNCATE chat_turn; */
INSERT INTO audit (note) VALUES ('DROP TABLE inside a string');
`
	if findings := lintOne(t, sql); len(findings) != 0 {
		t.Fatalf("expected no findings, got %v", findings)
	}
}

func TestFindingLineNumbers(t *testing.T) {
	sql := `CREATE TABLE room (id uuid);

ALTER TABLE room
  DROP COLUMN notes;
`
	findings := lintOne(t, sql)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %v", findings)
	}
	if findings[0].Line != 3 {
		t.Fatalf("Line = %d, want 3", findings[0].Line)
	}
}

func TestDollarQuotedBodySkipped(t *testing.T) {
	sql := `CREATE FUNCTION cleanup() RETURNS void AS $$
  DROP TABLE scratch;
$$ LANGUAGE sql;`
	if findings := lintOne(t, sql); len(findings) != 0 {
		t.Fatalf("expected no findings inside dollar-quoted body, got %v", findings)
	}
}

func TestHasBlockers(t *testing.T) {
	warnOnly := lintOne(t, `CREATE INDEX idx ON room (user_id);`)
	if HasBlockers(warnOnly) {
		t.Fatalf("warn finding should not count as blocker")
	}
	blocked := lintOne(t, `DROP TABLE room;`)
	if !HasBlockers(blocked) {
		t.Fatalf("drop-table should be a blocker")
	}
}

func TestConfigOverridesSeverity(t *testing.T) {
	cfg := &Config{Rules: map[string]Severity{
		"non-concurrent-index": SeverityBlock,
		"truncate":             SeverityOff,
	}}
	rules, err := cfg.Apply(DefaultRules())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	linter := New(rules)

	findings := linter.LintSQL("m.sql", `CREATE INDEX idx ON room (user_id); TRUNCATE room;`)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %v", findings)
	}
	if findings[0].Rule != "non-concurrent-index" || findings[0].Severity != SeverityBlock {
		t.Fatalf("unexpected finding %v", findings[0])
	}
}

func TestConfigRejectsUnknownRule(t *testing.T) {
	cfg := &Config{Rules: map[string]Severity{"no-such-rule": SeverityWarn}}
	if _, err := cfg.Apply(DefaultRules()); err == nil {
		t.Fatalf("expected error for unknown rule")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migratelint.yaml")
	content := "rules:\n  truncate: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Rules["truncate"] != SeverityWarn {
		t.Fatalf("truncate severity = %q, want warn", cfg.Rules["truncate"])
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules:\n  truncate: nuke\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Fatalf("expected error for invalid severity")
	}
}

func TestLintPathsWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"001_init.sql":   `CREATE TABLE room (id uuid);`,
		"002_danger.sql": `DROP TABLE room;`,
		"notes.txt":      `DROP TABLE room;`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	findings, err := New(DefaultRules()).LintPaths([]string{dir})
	if err != nil {
		t.Fatalf("LintPaths: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %v", findings)
	}
	if filepath.Base(findings[0].File) != "002_danger.sql" {
		t.Fatalf("finding in wrong file: %s", findings[0].File)
	}
}
