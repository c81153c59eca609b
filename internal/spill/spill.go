// Package spill buffers the pairs emitted by one map task, partitions
// them, and writes each partition out as sorted run files. The in-memory
// footprint of a task is bounded by the sort budget regardless of how
// much intermediate data the shard produces.
package spill

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"LocalMR/internal/runfile"
	"LocalMR/internal/sharder"
	"LocalMR/internal/types"
)

// pairOverhead approximates the bookkeeping cost of one buffered pair
// when accounting against the sort budget.
const pairOverhead = 16

// Run describes one sorted run file on disk.
type Run struct {
	Path      string
	Shard     int
	Partition int
}

// Config for a Spiller. One Spiller serves exactly one map task.
type Config struct {
	WorkDir    string
	Shard      int
	Partitions int
	Budget     int64 // summed estimated pair size that triggers a spill
	Attempts   int   // run-file create attempts (transient I/O retry)
	BaseDelay  time.Duration
}

// Spiller routes emitted pairs into per-partition buffers and spills
// them as sorted runs when the budget is exceeded.
type Spiller struct {
	cfg      Config
	buckets  [][]types.Pair
	buffered int64
	seq      uint64
	spills   []int
	runs     []Run
}

// New creates a Spiller for one map task.
func New(cfg Config) *Spiller {
	if cfg.Budget <= 0 {
		cfg.Budget = 64 * 1024 * 1024
	}
	return &Spiller{
		cfg:     cfg,
		buckets: make([][]types.Pair, cfg.Partitions),
		spills:  make([]int, cfg.Partitions),
	}
}

// Emit accepts one pair from the mapper, assigns its emission sequence
// number, and spills all buffers if the budget is now exceeded.
func (s *Spiller) Emit(key, value string) error {
	p := sharder.Partition(key, s.cfg.Partitions)
	s.buckets[p] = append(s.buckets[p], types.Pair{
		Key:   key,
		Value: value,
		Shard: s.cfg.Shard,
		Seq:   s.seq,
	})
	s.seq++
	s.buffered += int64(len(key) + len(value) + pairOverhead)
	if s.buffered >= s.cfg.Budget {
		return s.flushAll()
	}
	return nil
}

// Finish spills whatever remains buffered and returns every run this
// task produced, in creation order.
func (s *Spiller) Finish() ([]Run, error) {
	if err := s.flushAll(); err != nil {
		return nil, err
	}
	return s.runs, nil
}

// Emitted returns how many pairs have passed through the spiller.
func (s *Spiller) Emitted() uint64 { return s.seq }

func (s *Spiller) flushAll() error {
	for p := range s.buckets {
		if len(s.buckets[p]) == 0 {
			continue
		}
		if err := s.flushBucket(p); err != nil {
			return err
		}
	}
	s.buffered = 0
	return nil
}

// flushBucket sorts one partition's buffer and writes it as a new run.
// The sort is stable, so equal keys keep emission order, which together
// with the persisted seq gives the merge its deterministic tie-break.
func (s *Spiller) flushBucket(p int) error {
	bucket := s.buckets[p]
	sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Key < bucket[j].Key })

	dir := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("shard-%d", s.cfg.Shard))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &types.SortSpillError{Shard: s.cfg.Shard, Partition: p, Cause: err}
	}
	path := filepath.Join(dir, fmt.Sprintf("partition-%d.%d.run", p, s.spills[p]))

	w, err := runfile.Create(path, s.cfg.Attempts, s.cfg.BaseDelay)
	if err != nil {
		return &types.SortSpillError{Shard: s.cfg.Shard, Partition: p, Cause: err}
	}
	for _, pair := range bucket {
		if err := w.Append(pair); err != nil {
			w.Close()
			return &types.SortSpillError{Shard: s.cfg.Shard, Partition: p, Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return &types.SortSpillError{Shard: s.cfg.Shard, Partition: p, Cause: err}
	}

	s.spills[p]++
	s.runs = append(s.runs, Run{Path: path, Shard: s.cfg.Shard, Partition: p})
	s.buckets[p] = nil
	return nil
}
