package sharder

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"os"

	"LocalMR/internal/types"
)

// Shard is a contiguous, record-aligned byte range of the input,
// consumed by exactly one map task. The ordered shards of a job exactly
// cover the input with no gaps or overlaps.
type Shard struct {
	ID     int
	Offset int64
	Length int64
}

// Partition maps a key to a bucket in [0, r). It is FNV-1a (32 bit)
// over the key bytes modulo r. Every pair with the same key lands in
// the same partition, and the mapping is stable across runs with the
// same r. Changing this hash changes which partition each key's output
// lands in, so it must not change between versions.
func Partition(key string, r int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(r))
}

// Split divides the file at inputPath into shards of roughly
// targetShardBytes each, extending every boundary forward to the next
// record delimiter so that no record is split across shards. The last
// shard may be smaller than the target.
func Split(inputPath string, targetShardBytes int64, delim byte) ([]Shard, error) {
	if targetShardBytes <= 0 {
		return nil, &types.ShardingError{Input: inputPath, Cause: fmt.Errorf("target shard size must be positive, got %d", targetShardBytes)}
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, &types.ShardingError{Input: inputPath, Cause: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &types.ShardingError{Input: inputPath, Cause: err}
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	var shards []Shard
	var start int64
	for start < size {
		end := start + targetShardBytes
		if end >= size {
			end = size
		} else {
			end, err = nextBoundary(f, end, size, delim)
			if err != nil {
				return nil, &types.ShardingError{Input: inputPath, Cause: err}
			}
		}
		shards = append(shards, Shard{ID: len(shards), Offset: start, Length: end - start})
		start = end
	}
	return shards, nil
}

// nextBoundary scans forward from pos to the byte just past the next
// delimiter, or to EOF if none remains.
func nextBoundary(f *os.File, pos, size int64, delim byte) (int64, error) {
	buf := make([]byte, 64*1024)
	for pos < size {
		n, err := f.ReadAt(buf, pos)
		for i := 0; i < n; i++ {
			if buf[i] == delim {
				return pos + int64(i) + 1, nil
			}
		}
		pos += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return size, nil
}

// ReadRecords streams the records of one shard, invoking fn with each
// record (delimiter stripped) and its absolute byte offset in the
// input. A trailing record without a final delimiter is still yielded.
func ReadRecords(inputPath string, s Shard, delim byte, fn func(offset int64, record string) error) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(s.Offset, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReader(io.LimitReader(f, s.Length))
	offset := s.Offset
	for {
		rec, err := r.ReadString(delim)
		if len(rec) > 0 {
			trimmed := rec
			if trimmed[len(trimmed)-1] == delim {
				trimmed = trimmed[:len(trimmed)-1]
			}
			if ferr := fn(offset, trimmed); ferr != nil {
				return ferr
			}
			offset += int64(len(rec))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
