package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLedger(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func row(uid int, payload string) string {
	return fmt.Sprintf("%d\t%s", uid, payload)
}

func TestMergePreservesOutOfRangeRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tsv")
	writeLedger(t, path, []string{
		row(1, "old-1"), row(2, "old-2"), row(3, "old-3"),
		row(4, "old-4"), row(5, "old-5"), row(6, "old-6"),
		row(7, "old-7"), row(8, "old-8"), row(9, "old-9"), row(10, "old-10"),
	})

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.WriteHead(4))
	for uid := 4; uid <= 6; uid++ {
		require.NoError(t, l.Write(uid, row(uid, "new")))
	}
	require.NoError(t, l.WriteTail(6))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 10)
	require.Equal(t, row(1, "old-1"), lines[0])
	require.Equal(t, row(3, "old-3"), lines[2])
	require.Equal(t, row(4, "new"), lines[3])
	require.Equal(t, row(6, "new"), lines[5])
	require.Equal(t, row(7, "old-7"), lines[6])
	require.Equal(t, row(10, "old-10"), lines[9])
}

func TestMergeAscendingNoDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tsv")
	// Prior file deliberately unsorted.
	writeLedger(t, path, []string{row(9, "old"), row(2, "old"), row(5, "old")})

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.WriteHead(4))
	require.NoError(t, l.Write(4, row(4, "new")))
	require.NoError(t, l.Write(5, row(5, "new")))
	require.NoError(t, l.WriteTail(5))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 4)

	seen := map[int]bool{}
	prev := 0
	for _, line := range lines {
		uidCol, _, ok := strings.Cut(line, "\t")
		require.True(t, ok)
		uid, err := strconv.Atoi(uidCol)
		require.NoError(t, err)
		require.Greater(t, uid, prev, "uids must ascend")
		require.False(t, seen[uid], "uid %d duplicated", uid)
		seen[uid] = true
		prev = uid
	}
	require.Equal(t, row(5, "new"), lines[2])
}

func TestMergeIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tsv")

	run := func() {
		l, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, l.WriteHead(1))
		for uid := 1; uid <= 5; uid++ {
			require.NoError(t, l.Write(uid, row(uid, "computed")))
		}
		require.NoError(t, l.WriteTail(5))
		require.NoError(t, l.Close())
	}

	run()
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	run()
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.tsv")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.WriteHead(1))
	require.NoError(t, l.Write(3, row(3, "fresh")))
	require.NoError(t, l.WriteTail(3))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Equal(t, []string{row(3, "fresh")}, lines)
}

func TestTailKeepsRowsBeyondManifestRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tsv")
	writeLedger(t, path, []string{row(2, "old"), row(42, "far-tail")})

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.WriteHead(2))
	require.NoError(t, l.Write(2, row(2, "new")))
	require.NoError(t, l.WriteTail(2))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Equal(t, []string{row(2, "new"), row(42, "far-tail")}, lines)
}

func TestWriteRejectsOutOfOrderUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tsv")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Write(5, row(5, "a")))
	require.Error(t, l.Write(5, row(5, "dup")))
	require.Error(t, l.Write(3, row(3, "backwards")))
}

func TestRejectsCorruptUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tsv")
	writeLedger(t, path, []string{"not-a-uid\tpayload"})

	_, err := Open(path)
	require.Error(t, err)
}
