package hmm

import (
	"strings"
	"testing"
)

func TestLoadScoreTable(t *testing.T) {
	in := strings.NewReader(`# 2 frames, 3 states
2 3
-1.0 -2.0 -3.0
-4.0 -5.0 -6.0
`)
	table, err := LoadScoreTable(in)
	if err != nil {
		t.Fatalf("LoadScoreTable failed: %v", err)
	}
	if len(table) != 2 || len(table[0]) != 3 {
		t.Fatalf("unexpected table shape: %+v", table)
	}
	if table[1][2] != -6.0 {
		t.Errorf("table[1][2] = %g, want -6.0", table[1][2])
	}
}

func TestLoadScoreTableRejectsShortRow(t *testing.T) {
	in := strings.NewReader("1 3\n-1.0 -2.0\n")
	if _, err := LoadScoreTable(in); err == nil {
		t.Error("expected an error for a short row")
	}
}

func TestLoadScoreTableRejectsFrameCountMismatch(t *testing.T) {
	in := strings.NewReader("2 1\n-1.0\n")
	if _, err := LoadScoreTable(in); err == nil {
		t.Error("expected an error for fewer rows than the header declares")
	}
}
