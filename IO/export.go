package IO

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ExportShards writes windows to a binary data file plus an index:
//
//   - .bin = concatenated little-endian int32 token windows
//   - .idx = int64 (byte offset, length) per window
//
// A new shard is started once the current .bin reaches maxShardBytes.
// Returns the number of shards written.
func ExportShards(windows [][]int, outPrefix string, maxShardBytes int64) (int, error) {
	if maxShardBytes <= 0 {
		return 0, fmt.Errorf("max shard size must be > 0, got %d", maxShardBytes)
	}
	if err := os.MkdirAll(filepath.Dir(outPrefix), 0o755); err != nil {
		return 0, err
	}

	shard := 0
	var (
		dataF, idxF *os.File
		wData, wIdx *bufio.Writer
		cur         int64
	)
	closeShard := func() error {
		if dataF == nil {
			return nil
		}
		err := errors.Join(wData.Flush(), wIdx.Flush(), dataF.Close(), idxF.Close())
		dataF, idxF = nil, nil
		return err
	}
	openShard := func() error {
		if err := closeShard(); err != nil {
			return err
		}
		var err error
		dataF, err = os.Create(shardPath(outPrefix, shard, "bin"))
		if err != nil {
			return err
		}
		idxF, err = os.Create(shardPath(outPrefix, shard, "idx"))
		if err != nil {
			dataF.Close()
			return err
		}
		wData = bufio.NewWriter(dataF)
		wIdx = bufio.NewWriter(idxF)
		cur = 0
		shard++
		return nil
	}

	if err := openShard(); err != nil {
		return 0, err
	}
	buf4 := make([]byte, 4)
	buf8 := make([]byte, 8)
	for i, ids := range windows {
		// rollover if shard too big
		if cur >= maxShardBytes {
			if err := openShard(); err != nil {
				return 0, err
			}
		}
		binary.LittleEndian.PutUint64(buf8, uint64(cur))
		if _, err := wIdx.Write(buf8); err != nil {
			closeShard()
			return 0, err
		}
		binary.LittleEndian.PutUint64(buf8, uint64(len(ids)))
		if _, err := wIdx.Write(buf8); err != nil {
			closeShard()
			return 0, err
		}
		for _, id := range ids {
			if id < 0 || id > math.MaxInt32 {
				closeShard()
				return 0, fmt.Errorf("%w: window %d: id %d does not fit int32", ErrMalformedFile, i, id)
			}
			binary.LittleEndian.PutUint32(buf4, uint32(id))
			if _, err := wData.Write(buf4); err != nil {
				closeShard()
				return 0, err
			}
		}
		cur += int64(4 * len(ids))
	}
	if err := closeShard(); err != nil {
		return 0, err
	}
	return shard, nil
}

// ReadShards loads every shard written under outPrefix, in order.
func ReadShards(outPrefix string) ([][]int, error) {
	var out [][]int
	for shard := 0; fileExists(shardPath(outPrefix, shard, "idx")); shard++ {
		windows, err := readShard(outPrefix, shard)
		if err != nil {
			return nil, err
		}
		out = append(out, windows...)
	}
	if ShardMissing(outPrefix) {
		return nil, fmt.Errorf("no shards found at %s", shardPath(outPrefix, 0, "idx"))
	}
	return out, nil
}

func readShard(outPrefix string, shard int) ([][]int, error) {
	binPath := shardPath(outPrefix, shard, "bin")
	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, err
	}
	idxPath := shardPath(outPrefix, shard, "idx")
	idxF, err := os.Open(idxPath)
	if err != nil {
		return nil, err
	}
	defer idxF.Close()

	r := bufio.NewReader(idxF)
	var pair [2]uint64
	var out [][]int
	for {
		if err := binary.Read(r, binary.LittleEndian, &pair); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFile, idxPath, err)
		}
		off, n := pair[0], pair[1]
		if off%4 != 0 || off > uint64(len(data)) || n > (uint64(len(data))-off)/4 {
			return nil, fmt.Errorf("%w: %s: entry (%d,%d) outside %d bytes", ErrMalformedFile, idxPath, off, n, len(data))
		}
		ids := make([]int, n)
		for i := range ids {
			ids[i] = int(int32(binary.LittleEndian.Uint32(data[off+4*uint64(i):])))
		}
		out = append(out, ids)
	}
	return out, nil
}

func shardPath(prefix string, shard int, ext string) string {
	return fmt.Sprintf("%s-%03d.%s", prefix, shard, ext)
}

// ShardMissing = true if no shard files exist yet for prefix
func ShardMissing(prefix string) bool {
	return !fileExists(shardPath(prefix, 0, "bin"))
}
