// Package runfile implements the on-disk encoding of sorted runs: a
// length-prefixed stream of intermediate pairs. Each pair is encoded as
//
//	u32 keyLen | key | u32 valueLen | value | u64 seq
//
// with big-endian prefixes. The emitting shard is part of the file path
// rather than the record, so it is supplied when opening a reader.
package runfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"LocalMR/internal/types"
)

// ErrTruncated reports a run file that ends mid-record.
var ErrTruncated = errors.New("runfile: truncated record")

// Writer appends pairs to a run file.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	records int
	bytes   int64
}

// Create opens a new run file for writing, retrying transient failures
// up to attempts times with linear backoff.
func Create(path string, attempts int, baseDelay time.Duration) (*Writer, error) {
	f, err := withRetry(attempts, baseDelay, func() (*os.File, error) {
		return os.Create(path)
	})
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one pair. The pair's Shard field is not persisted.
func (w *Writer) Append(p types.Pair) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(p.Key)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := w.w.WriteString(p.Key); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(prefix[:], uint32(len(p.Value)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := w.w.WriteString(p.Value); err != nil {
		return err
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], p.Seq)
	if _, err := w.w.Write(seq[:]); err != nil {
		return err
	}
	w.records++
	w.bytes += int64(16 + len(p.Key) + len(p.Value))
	return nil
}

// Stats returns how many records and bytes have been appended.
func (w *Writer) Stats() (records int, bytes int64) {
	return w.records, w.bytes
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader reads pairs back from a run file in write order.
type Reader struct {
	path  string
	shard int
	f     *os.File
	r     *bufio.Reader
}

// Open opens a run file for reading, retrying transient failures. All
// pairs read carry the given shard id.
func Open(path string, shard int, attempts int, baseDelay time.Duration) (*Reader, error) {
	f, err := withRetry(attempts, baseDelay, func() (*os.File, error) {
		return os.Open(path)
	})
	if err != nil {
		return nil, err
	}
	return &Reader{path: path, shard: shard, f: f, r: bufio.NewReader(f)}, nil
}

// Path returns the file path the reader was opened on.
func (r *Reader) Path() string { return r.path }

// Next returns the next pair. It returns io.EOF at a clean record
// boundary and ErrTruncated if the file ends inside a record.
func (r *Reader) Next() (types.Pair, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if err == io.EOF {
			return types.Pair{}, io.EOF
		}
		return types.Pair{}, fmt.Errorf("%w: %s", ErrTruncated, r.path)
	}
	key := make([]byte, binary.BigEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(r.r, key); err != nil {
		return types.Pair{}, fmt.Errorf("%w: %s", ErrTruncated, r.path)
	}
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		return types.Pair{}, fmt.Errorf("%w: %s", ErrTruncated, r.path)
	}
	value := make([]byte, binary.BigEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(r.r, value); err != nil {
		return types.Pair{}, fmt.Errorf("%w: %s", ErrTruncated, r.path)
	}
	var seq [8]byte
	if _, err := io.ReadFull(r.r, seq[:]); err != nil {
		return types.Pair{}, fmt.Errorf("%w: %s", ErrTruncated, r.path)
	}
	return types.Pair{
		Key:   string(key),
		Value: string(value),
		Shard: r.shard,
		Seq:   binary.BigEndian.Uint64(seq[:]),
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// withRetry runs open until it succeeds or attempts are exhausted,
// sleeping baseDelay*n between tries. Only transient I/O is retried
// this way; user-function errors never are.
func withRetry(attempts int, baseDelay time.Duration, open func() (*os.File, error)) (*os.File, error) {
	if attempts < 1 {
		attempts = 1
	}
	var f *os.File
	var err error
	for i := 0; i < attempts; i++ {
		f, err = open()
		if err == nil {
			return f, nil
		}
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, err
		}
		if i < attempts-1 {
			time.Sleep(baseDelay * time.Duration(i+1))
		}
	}
	return nil, err
}
