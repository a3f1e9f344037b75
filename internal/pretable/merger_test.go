package pretable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

func writeUnsorted(t *testing.T, dir, day string, rows []string) {
	t.Helper()

	content := strings.Join(domain.PretableHeader, "\t") + "\n"
	for _, row := range rows {
		content += row + "\n"
	}

	path := filepath.Join(dir, day+".unsorted.tsv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func row(serverTime, ip string) string {
	return strings.Join([]string{
		serverTime, "Chrome", "90.0", ip, "-23.5475", "-46.6361", "/scielo.php",
	}, "\t")
}

func TestPromoteSortsByNumericIP(t *testing.T) {
	unsortedDir := t.TempDir()
	sortedDir := t.TempDir()

	day := "2021-05-21"
	writeUnsorted(t, unsortedDir, day, []string{
		row("2021-05-21 14:30:37", "150.164.2.30"),
		row("2021-05-21 14:30:38", "89.155.0.2"),
		row("2021-05-21 14:30:39", "9.9.9.9"),
	})

	m, err := NewMerger(unsortedDir, sortedDir)
	if err != nil {
		t.Fatalf("NewMerger() error = %v", err)
	}
	if err := m.Promote(day); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(sortedDir, day+".tsv"))
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("promoted file has %d lines, want header plus 3 rows", len(lines))
	}

	wantOrder := []string{"9.9.9.9", "89.155.0.2", "150.164.2.30"}
	for i, wantIP := range wantOrder {
		cols := strings.Split(lines[i+1], "\t")
		if cols[3] != wantIP {
			t.Errorf("row %d ip = %s, want %s (numeric order, not lexical)", i, cols[3], wantIP)
		}
	}
}

func TestPromoteMergesAndDeduplicates(t *testing.T) {
	unsortedDir := t.TempDir()
	sortedDir := t.TempDir()

	day := "2021-05-21"
	shared := row("2021-05-21 14:30:37", "89.155.0.1")

	writeUnsorted(t, unsortedDir, day, []string{
		shared,
		row("2021-05-21 14:30:38", "89.155.0.2"),
	})

	m, err := NewMerger(unsortedDir, sortedDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Promote(day); err != nil {
		t.Fatalf("first Promote() error = %v", err)
	}

	// a later run re-parses the shared line and adds a new one
	writeUnsorted(t, unsortedDir, day, []string{
		shared,
		row("2021-05-21 14:30:39", "89.155.0.3"),
	})
	if err := m.Promote(day); err != nil {
		t.Fatalf("second Promote() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(sortedDir, day+".tsv"))
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("promoted file has %d lines, want header plus 3 deduplicated rows", len(lines))
	}
	if strings.Count(string(data), shared) != 1 {
		t.Error("shared row was not deduplicated")
	}

	// the replaced artifact leaves a compressed backup behind
	entries, err := os.ReadDir(sortedDir)
	if err != nil {
		t.Fatal(err)
	}
	backups := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".gz") {
			backups++
		}
	}
	if backups == 0 {
		t.Error("no backup of the previous artifact was taken")
	}
}

func TestPromoteIsIdempotent(t *testing.T) {
	unsortedDir := t.TempDir()
	sortedDir := t.TempDir()

	day := "2021-05-21"
	writeUnsorted(t, unsortedDir, day, []string{
		row("2021-05-21 14:30:37", "150.164.2.30"),
		row("2021-05-21 14:30:38", "89.155.0.2"),
	})

	m, err := NewMerger(unsortedDir, sortedDir)
	if err != nil {
		t.Fatal(err)
	}

	sortedPath := filepath.Join(sortedDir, day+".tsv")

	if err := m.Promote(day); err != nil {
		t.Fatalf("first Promote() error = %v", err)
	}
	first, err := os.ReadFile(sortedPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Promote(day); err != nil {
		t.Fatalf("second Promote() error = %v", err)
	}
	second, err := os.ReadFile(sortedPath)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Error("re-running the merge changed the promoted artifact")
	}
}

func TestPromoteSortTieBreaksOnWholeLine(t *testing.T) {
	unsortedDir := t.TempDir()
	sortedDir := t.TempDir()

	day := "2021-05-21"
	writeUnsorted(t, unsortedDir, day, []string{
		row("2021-05-21 23:00:00", "89.155.0.1"),
		row("2021-05-21 01:00:00", "89.155.0.1"),
	})

	m, err := NewMerger(unsortedDir, sortedDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Promote(day); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(sortedDir, day+".tsv"))
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("promoted file has %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[1], "2021-05-21 01:00:00") {
		t.Errorf("tie not broken by whole-line order: first row = %q", lines[1])
	}
}
