package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (y String) ENGINE = Memory;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") || !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Errorf("unexpected statements %q", stmts)
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	tests := []struct {
		sql     string
		wantErr bool
	}{
		{"SELECT 'a'; SELECT 'b';", false},
		{"SELECT 'it''s'; SELECT 1;", false},
		{"SELECT 'a;b';", true},
	}
	for _, tt := range tests {
		err := validateNoSemicolonInStrings(tt.sql)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateNoSemicolonInStrings(%q) err = %v, wantErr %v", tt.sql, err, tt.wantErr)
		}
	}
}

func TestLoad(t *testing.T) {
	for _, dialect := range []string{Postgres, ClickHouse} {
		migrations, err := Load(dialect)
		if err != nil {
			t.Fatalf("Load(%s): %v", dialect, err)
		}
		if len(migrations) == 0 {
			t.Fatalf("no %s migrations embedded", dialect)
		}
		for i, m := range migrations {
			if i > 0 && migrations[i-1].Name >= m.Name {
				t.Errorf("%s migrations out of order: %s before %s", dialect, migrations[i-1].Name, m.Name)
			}
			if err := validateNoSemicolonInStrings(m.SQL); err != nil {
				t.Errorf("%s: %v", m.Name, err)
			}
			if len(splitStatements(m.SQL)) == 0 {
				t.Errorf("%s: no statements", m.Name)
			}
		}
	}

	if _, err := Load("sqlite"); err == nil {
		t.Error("expected error for unknown dialect")
	}
}
