// Package ledger maintains the uid-ordered append-or-overwrite TSV tables.
//
// Each run rewrites a ledger as a read-merge-write transaction: prior rows
// below the processed range, then the freshly computed range, then prior
// rows above it. Exactly one process may target an output directory at a
// time; that is an operational precondition, not something enforced here.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Entry is one persisted ledger row: its uid and the verbatim line text
// (no trailing newline).
type Entry struct {
	UID  int
	Line string
}

// Ledger is an open read-merge-write transaction over one ledger file.
type Ledger struct {
	path string
	prev []Entry
	last int // highest uid emitted so far

	f *os.File
	w *bufio.Writer
}

// Open reads any prior ledger state at path, then reopens the file
// truncated for the rewrite. Prior rows are held in ascending uid order.
func Open(path string) (*Ledger, error) {
	prev, err := readEntries(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	return &Ledger{
		path: path,
		prev: prev,
		f:    f,
		w:    bufio.NewWriter(f),
	}, nil
}

// readEntries loads a prior ledger file. A missing file is an empty ledger.
func readEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		uidCol, _, _ := strings.Cut(line, "\t")
		uid, err := strconv.Atoi(uidCol)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: bad uid %q: %w", path, uidCol, err)
		}
		entries = append(entries, Entry{UID: uid, Line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UID < entries[j].UID
	})
	return entries, nil
}

// WriteHead carries over every prior row with uid below startID, in
// ascending order.
func (l *Ledger) WriteHead(startID int) error {
	for _, e := range l.prev {
		if e.UID >= startID {
			break
		}
		if err := l.emitOrdered(e.UID, e.Line); err != nil {
			return err
		}
	}
	return l.w.Flush()
}

// Write emits a freshly computed row and flushes it, so a crash mid-run
// loses at most the row being written, never a partial one.
func (l *Ledger) Write(uid int, line string) error {
	if err := l.emitOrdered(uid, line); err != nil {
		return err
	}
	return l.w.Flush()
}

// WriteTail carries over every prior row with uid above endID, in ascending
// order. Rows beyond the manifest's own range are preserved too.
func (l *Ledger) WriteTail(endID int) error {
	for _, e := range l.prev {
		if e.UID <= endID {
			continue
		}
		if err := l.emitOrdered(e.UID, e.Line); err != nil {
			return err
		}
	}
	return l.w.Flush()
}

// emitOrdered writes one row, enforcing the ledger invariant that uids are
// emitted strictly ascending with no duplicates.
func (l *Ledger) emitOrdered(uid int, line string) error {
	if uid <= l.last {
		return fmt.Errorf("ledger %s: uid %d written out of order (last %d)", l.path, uid, l.last)
	}
	l.last = uid
	return l.emit(line)
}

func (l *Ledger) emit(line string) error {
	if _, err := l.w.WriteString(line); err != nil {
		return fmt.Errorf("write ledger %s: %w", l.path, err)
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write ledger %s: %w", l.path, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Ledger) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
