// Package merge turns the sorted runs of one partition into a single
// fully sorted, grouped stream of pairs. It is a k-way merge: one
// buffered reader per run, a min-heap ordered by (key, shard, seq)
// holding each reader's head, repeatedly extracting the minimum. The
// stream is single-pass and non-restartable.
package merge

import (
	"container/heap"
	"io"
	"os"
	"time"

	"LocalMR/internal/runfile"
	"LocalMR/internal/spill"
	"LocalMR/internal/types"
)

type source struct {
	r    *runfile.Reader
	head types.Pair
}

type sourceHeap []*source

func (h sourceHeap) Len() int            { return len(h) }
func (h sourceHeap) Less(i, j int) bool  { return h[i].head.Less(h[j].head) }
func (h sourceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sourceHeap) Push(x interface{}) { *h = append(*h, x.(*source)) }
func (h *sourceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Config for opening a merge stream.
type Config struct {
	Partition int
	Runs      []spill.Run // every run produced for this partition
	Attempts  int         // run-file open attempts (transient I/O retry)
	BaseDelay time.Duration
	Retain    bool // keep consumed run files instead of deleting them
}

// Stream is the merged, grouped view of one partition.
type Stream struct {
	cfg Config
	h   sourceHeap
	cur *Group
	err error
}

// Open opens a reader over every run of the partition and primes the
// heap. All runs must exist before Open is called; merging an
// incomplete set would silently drop records, which is why the
// controller only reaches this point after the map barrier.
func Open(cfg Config) (*Stream, error) {
	s := &Stream{cfg: cfg}
	for _, run := range cfg.Runs {
		r, err := runfile.Open(run.Path, run.Shard, cfg.Attempts, cfg.BaseDelay)
		if err != nil {
			s.Close()
			return nil, &types.MergeError{Partition: cfg.Partition, Run: run.Path, Cause: err}
		}
		src := &source{r: r}
		ok, err := s.advance(src)
		if err != nil {
			s.Close()
			return nil, err
		}
		if ok {
			s.h = append(s.h, src)
		}
	}
	heap.Init(&s.h)
	return s, nil
}

// advance reads the next head for src. It returns false after retiring
// the reader at end of file, deleting the consumed run unless retention
// is configured.
func (s *Stream) advance(src *source) (bool, error) {
	p, err := src.r.Next()
	if err == io.EOF {
		path := src.r.Path()
		if cerr := src.r.Close(); cerr != nil {
			return false, &types.MergeError{Partition: s.cfg.Partition, Run: path, Cause: cerr}
		}
		if !s.cfg.Retain {
			os.Remove(path)
		}
		return false, nil
	}
	if err != nil {
		return false, &types.MergeError{Partition: s.cfg.Partition, Run: src.r.Path(), Cause: err}
	}
	src.head = p
	return true, nil
}

// pop removes and returns the minimum pair, re-inserting the source's
// next head (or retiring the source at EOF).
func (s *Stream) pop() (types.Pair, bool) {
	if s.err != nil || s.h.Len() == 0 {
		return types.Pair{}, false
	}
	src := heap.Pop(&s.h).(*source)
	p := src.head
	ok, err := s.advance(src)
	if err != nil {
		s.err = err
		return types.Pair{}, false
	}
	if ok {
		heap.Push(&s.h, src)
	}
	return p, true
}

// peekKey returns the key at the head of the heap.
func (s *Stream) peekKey() (string, bool) {
	if s.err != nil || s.h.Len() == 0 {
		return "", false
	}
	return s.h[0].head.Key, true
}

// Group is the maximal run of equal-key pairs at the current position
// of the stream. Values are yielded lazily, one at a time; the group is
// invalidated by the next NextGroup call.
type Group struct {
	Key    string
	stream *Stream
	first  *string
	done   bool
}

// Next implements types.ValueIter.
func (g *Group) Next() (string, bool) {
	if g.done {
		return "", false
	}
	if g.first != nil {
		v := *g.first
		g.first = nil
		return v, true
	}
	k, ok := g.stream.peekKey()
	if !ok || k != g.Key {
		g.done = true
		return "", false
	}
	p, ok := g.stream.pop()
	if !ok {
		g.done = true
		return "", false
	}
	return p.Value, true
}

// NextGroup drains whatever remains of the current group and returns
// the next one. It returns io.EOF when the partition is exhausted and
// the stream's first error otherwise.
func (s *Stream) NextGroup() (*Group, error) {
	if s.cur != nil {
		for {
			if _, ok := s.cur.Next(); !ok {
				break
			}
		}
		s.cur = nil
	}
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.pop()
	if !ok {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	v := p.Value
	s.cur = &Group{Key: p.Key, stream: s, first: &v}
	return s.cur, nil
}

// Err returns the first error the stream encountered, if any. Callers
// must check it after a group's iterator stops early.
func (s *Stream) Err() error { return s.err }

// Close closes any remaining readers without deleting their files.
func (s *Stream) Close() {
	for _, src := range s.h {
		src.r.Close()
	}
	s.h = nil
}
