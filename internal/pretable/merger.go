package pretable

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
	"github.com/pitangainnovare/scielo-usage-counter/internal/fileutil"
)

// ipColumn is the zero-based position of the ip field in a pretable row
const ipColumn = 3

// Merger promotes a day's unsorted bucket into the canonical sorted
// pretable: it merges with any previously promoted content, removes
// exact duplicate lines, re-sorts by numeric IP order, backs up the
// previous artifact, and atomically replaces it. The merge is
// idempotent: re-running it over the same inputs yields byte-identical
// output.
type Merger struct {
	unsortedDir string
	sortedDir   string
}

// NewMerger builds a merger over the unsorted and promoted directories
func NewMerger(unsortedDir, sortedDir string) (*Merger, error) {
	if err := fileutil.EnsureDir(sortedDir); err != nil {
		return nil, fmt.Errorf("failed to create pretable directory: %w", err)
	}

	return &Merger{
		unsortedDir: unsortedDir,
		sortedDir:   sortedDir,
	}, nil
}

// Promote merges, deduplicates, and sorts the pretable for one calendar
// day (yyyy-mm-dd), replacing the canonical artifact.
func (m *Merger) Promote(day string) error {
	unsortedPath := fileutil.PretablePath(m.unsortedDir, day, UnsortedPosfix, Extension)
	sortedPath := fileutil.PretablePath(m.sortedDir, day, "", Extension)

	lines, err := readRows(unsortedPath)
	if err != nil {
		// a day whose lines were all rejected has no bucket; it still
		// promotes, with whatever was promoted before
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read unsorted pretable for %s: %w", day, err)
		}
	}

	if _, err := os.Stat(sortedPath); err == nil {
		if err := backup(sortedPath); err != nil {
			return fmt.Errorf("failed to back up pretable for %s: %w", day, err)
		}

		previous, err := readRows(sortedPath)
		if err != nil {
			return fmt.Errorf("failed to read promoted pretable for %s: %w", day, err)
		}
		lines = append(lines, previous...)
	}

	deduped := dedupe(lines)
	sortByIP(deduped)

	if err := writeAtomic(sortedPath, deduped); err != nil {
		return fmt.Errorf("failed to write pretable for %s: %w", day, err)
	}

	log.Info().
		Str("day", day).
		Int("rows", len(deduped)).
		Str("path", sortedPath).
		Msg("Pretable promoted")

	return nil
}

// readRows returns the data rows of a pretable file, header excluded
func readRows(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []string
	first := true

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		if line := scanner.Text(); line != "" {
			rows = append(rows, line)
		}
	}

	return rows, scanner.Err()
}

func dedupe(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := lines[:0]

	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}

	return out
}

// sortByIP orders rows by the ip column interpreted as an address in
// ascending numeric order, not lexical. Rows with an unparseable
// address sort last; ties fall back to whole-line order so the result
// is total and run-to-run stable.
func sortByIP(rows []string) {
	sort.Slice(rows, func(i, j int) bool {
		ai, iOK := rowAddr(rows[i])
		aj, jOK := rowAddr(rows[j])

		switch {
		case iOK && !jOK:
			return true
		case !iOK && jOK:
			return false
		case iOK && jOK:
			if c := ai.Compare(aj); c != 0 {
				return c < 0
			}
		}
		return rows[i] < rows[j]
	})
}

func rowAddr(row string) (netip.Addr, bool) {
	cols := strings.Split(row, "\t")
	if len(cols) <= ipColumn {
		return netip.Addr{}, false
	}

	addr, err := netip.ParseAddr(cols[ipColumn])
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

// backup writes a timestamped gzip copy next to the artifact
func backup(path string) error {
	fin, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fin.Close()

	backupPath := fmt.Sprintf("%s.%d.gz", path, time.Now().Unix())
	fout, err := os.Create(backupPath)
	if err != nil {
		return err
	}

	gw := gzip.NewWriter(fout)
	if _, err := io.Copy(gw, fin); err != nil {
		gw.Close()
		fout.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		fout.Close()
		return err
	}

	log.Debug().Str("backup", backupPath).Msg("Previous pretable backed up")
	return fout.Close()
}

// writeAtomic writes header plus rows to a temp file and renames it
// over the target, so readers never observe a partial artifact.
func writeAtomic(path string, rows []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(tmp)
	if _, err := bw.WriteString(strings.Join(domain.PretableHeader, "\t") + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	for _, row := range rows {
		if _, err := bw.WriteString(row + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
