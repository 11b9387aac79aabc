package IO

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExportReadShards(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "out", "train")
	windows := [][]int{{1, 2, 3}, {4, 5}, {6}, {7, 8, 9, 10}}
	if !ShardMissing(prefix) {
		t.Fatal("shards should be missing before export")
	}
	// 8 bytes per shard: rolls over after every window of >= 2 ids
	n, err := ExportShards(windows, prefix, 8)
	if err != nil {
		t.Fatalf("ExportShards: %v", err)
	}
	if n != 3 {
		t.Fatalf("shards = %d, want 3", n)
	}
	got, err := ReadShards(prefix)
	if err != nil {
		t.Fatalf("ReadShards: %v", err)
	}
	if !reflect.DeepEqual(got, windows) {
		t.Fatalf("got %v", got)
	}
}

func TestReadShardsMissing(t *testing.T) {
	if _, err := ReadShards(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadShardsCorruptIndex(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "val")
	if _, err := ExportShards([][]int{{1, 2}}, prefix, 1<<20); err != nil {
		t.Fatal(err)
	}
	entry := func(off, n uint64) []byte {
		b := binary.LittleEndian.AppendUint64(nil, off)
		return binary.LittleEndian.AppendUint64(b, n)
	}
	cases := map[string][]byte{
		"truncated":    {1, 2, 3},
		"huge length":  entry(0, 1<<62),
		"max length":   entry(4, ^uint64(0)),
		"offset past":  entry(64, 1),
		"unaligned":    entry(2, 1),
		"one too many": entry(0, 3),
	}
	for name, idx := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(prefix+"-000.idx", idx, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadShards(prefix); !errors.Is(err, ErrMalformedFile) {
				t.Fatalf("expected ErrMalformedFile, got %v", err)
			}
		})
	}
}

func TestExportRejectsNegativeID(t *testing.T) {
	_, err := ExportShards([][]int{{1, -1}}, filepath.Join(t.TempDir(), "x"), 1<<20)
	if !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("expected ErrMalformedFile, got %v", err)
	}
}
