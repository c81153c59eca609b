// Package controller owns the job: it drives the phase state machine,
// wires the sharder, spill, merge, and worker pool together, and
// exposes a polling surface over the job's status.
package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"LocalMR/internal/logger"
	"LocalMR/internal/merge"
	"LocalMR/internal/pool"
	"LocalMR/internal/sharder"
	"LocalMR/internal/spill"
	"LocalMR/internal/types"
)

// Config enumerates everything a job needs. Zero values are filled with
// defaults by Submit; InputPath, Mapper, Reducer and WorkDir are
// required.
type Config struct {
	InputPath  string
	Delim      byte  // record delimiter, default '\n'
	Partitions int   // R, default 4
	Workers    int   // W, default number of CPUs
	SortBudget int64 // B, in-memory sort budget per map task, default 64 MiB
	ShardSize  int64 // target shard size in bytes, default 16 MiB
	Mapper     types.Mapper
	Reducer    types.Reducer
	WorkDir    string

	// CleanupOnFailure deletes partial artifacts when the job fails.
	// The default keeps them for post-mortem inspection.
	CleanupOnFailure bool
	// RetainRunFiles keeps consumed run files instead of deleting them
	// as the merge drains each one.
	RetainRunFiles bool

	// Transient I/O retry policy for run-file open/create. User-function
	// errors are never retried.
	MaxRetries     int           // default 3
	RetryBaseDelay time.Duration // default 50ms

	LogLevel string // default INFO
}

func (c *Config) applyDefaults() error {
	if c.InputPath == "" {
		return fmt.Errorf("InputPath is required")
	}
	if c.Mapper == nil || c.Reducer == nil {
		return fmt.Errorf("Mapper and Reducer are required")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("WorkDir is required")
	}
	if c.Delim == 0 {
		c.Delim = '\n'
	}
	if c.Partitions <= 0 {
		c.Partitions = 4
	}
	if c.SortBudget <= 0 {
		c.SortBudget = 64 * 1024 * 1024
	}
	if c.ShardSize <= 0 {
		c.ShardSize = 16 * 1024 * 1024
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 50 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	return nil
}

// Job is one execution instance. All status mutation happens on the
// job's own goroutines through setState; pollers get snapshots.
type Job struct {
	id   string
	cfg  Config
	log  *logger.Logger
	pool *pool.Pool

	cancelFn context.CancelFunc
	done     chan struct{}

	mu            sync.RWMutex
	state         types.JobState
	err           error
	stats         types.Stats
	outputs       []string
	startedAt     time.Time
	userCancelled bool

	runsMu sync.Mutex
	runs   [][]spill.Run // indexed by partition
}

// JobHandle is the caller's view of a submitted job.
type JobHandle struct {
	job *Job
}

// Submit validates the config, creates the work directory, and starts
// the job in the background.
func Submit(cfg Config) (*JobHandle, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		id:        "job-" + uuid.New().String()[:8],
		cfg:       cfg,
		log:       logger.New(cfg.LogLevel),
		pool:      pool.New(cfg.Workers),
		cancelFn:  cancel,
		done:      make(chan struct{}),
		state:     types.StatePending,
		startedAt: time.Now(),
		runs:      make([][]spill.Run, cfg.Partitions),
		outputs:   make([]string, cfg.Partitions),
	}

	j.log.Info("job %s submitted: input=%s partitions=%d workers=%d budget=%d",
		j.id, cfg.InputPath, cfg.Partitions, j.pool.Workers(), cfg.SortBudget)

	go j.run(ctx)
	return &JobHandle{job: j}, nil
}

// ID returns the job's identifier.
func (h *JobHandle) ID() string { return h.job.id }

// Status returns a read-only snapshot of the job.
func (h *JobHandle) Status() types.Status {
	return h.job.snapshot()
}

// Cancel requests cooperative cancellation. Workers stop at their next
// record or group boundary; the job reaches Cancelled once all of them
// have stopped. Cancelling a terminal job is a no-op.
func (h *JobHandle) Cancel() {
	j := h.job
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.userCancelled = true
	j.mu.Unlock()
	j.log.Info("job %s: cancellation requested", j.id)
	j.cancelFn()
}

// Err returns the error that moved the job to Failed, or nil. The
// string form is also carried in Status snapshots; this accessor keeps
// the type for errors.As classification.
func (h *JobHandle) Err() error {
	h.job.mu.RLock()
	defer h.job.mu.RUnlock()
	return h.job.err
}

// Wait blocks until the job reaches a terminal state.
func (h *JobHandle) Wait() types.Status {
	<-h.job.done
	return h.job.snapshot()
}

// Result returns the output file paths, in partition order. It fails
// unless the job has completed.
func (h *JobHandle) Result() ([]string, error) {
	j := h.job
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.state != types.StateCompleted {
		return nil, fmt.Errorf("job %s is %s, not completed", j.id, j.state)
	}
	out := make([]string, len(j.outputs))
	copy(out, j.outputs)
	return out, nil
}

func (j *Job) snapshot() types.Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	st := types.Status{
		JobID:     j.id,
		State:     j.state,
		Stats:     j.stats,
		StartedAt: j.startedAt,
	}
	if j.err != nil {
		st.Err = j.err.Error()
	}
	return st
}

func (j *Job) setState(s types.JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
	j.log.Debug("job %s: state -> %s", j.id, s)
}

// run drives Pending -> Sharding -> Mapping -> Barrier -> Reducing ->
// Completed, diverting to Failed or Cancelled.
func (j *Job) run(ctx context.Context) {
	defer close(j.done)
	defer j.cancelFn()

	j.setState(types.StateSharding)
	shards, err := sharder.Split(j.cfg.InputPath, j.cfg.ShardSize, j.cfg.Delim)
	if err != nil {
		j.finish(err)
		return
	}
	j.mu.Lock()
	j.stats.Shards = len(shards)
	j.mu.Unlock()
	j.log.Info("job %s: split input into %d shards", j.id, len(shards))

	j.setState(types.StateMapping)
	mapTasks := make([]pool.Task, len(shards))
	for i, s := range shards {
		shard := s
		mapTasks[i] = func(ctx context.Context) error {
			return j.runMapTask(ctx, shard)
		}
	}
	if err := j.pool.Run(ctx, mapTasks); err != nil {
		j.finish(err)
		return
	}

	// Every map task has finished; all runs for every partition exist.
	// Merging before this point would silently produce incomplete
	// output rather than an error.
	j.setState(types.StateBarrier)

	j.setState(types.StateReducing)
	reduceTasks := make([]pool.Task, j.cfg.Partitions)
	for p := 0; p < j.cfg.Partitions; p++ {
		partition := p
		reduceTasks[p] = func(ctx context.Context) error {
			return j.runReduceTask(ctx, partition)
		}
	}
	if err := j.pool.Run(ctx, reduceTasks); err != nil {
		j.finish(err)
		return
	}

	j.mu.Lock()
	j.state = types.StateCompleted
	j.mu.Unlock()
	j.log.Info("job %s: completed, %d outputs", j.id, j.cfg.Partitions)
}

// finish moves the job to Cancelled or Failed. Partial artifacts are
// kept for post-mortem inspection unless cleanup-on-failure is set.
func (j *Job) finish(err error) {
	j.mu.Lock()
	cancelled := j.userCancelled && errors.Is(err, context.Canceled)
	if cancelled {
		j.state = types.StateCancelled
	} else {
		j.state = types.StateFailed
		j.err = err
	}
	j.mu.Unlock()

	if cancelled {
		j.log.Info("job %s: cancelled", j.id)
		return
	}
	j.log.Error("job %s: failed: %v", j.id, err)
	if j.cfg.CleanupOnFailure {
		j.cleanupArtifacts()
	}
}

func (j *Job) cleanupArtifacts() {
	entries, err := os.ReadDir(j.cfg.WorkDir)
	if err != nil {
		j.log.Warn("job %s: cleanup failed to read work dir: %v", j.id, err)
		return
	}
	for _, e := range entries {
		os.RemoveAll(filepath.Join(j.cfg.WorkDir, e.Name()))
	}
}

// runMapTask reads one shard, invokes the mapper per record, and routes
// emitted pairs through the spill engine. The cancellation checkpoint
// is the record boundary.
func (j *Job) runMapTask(ctx context.Context, shard sharder.Shard) error {
	sp := spill.New(spill.Config{
		WorkDir:    j.cfg.WorkDir,
		Shard:      shard.ID,
		Partitions: j.cfg.Partitions,
		Budget:     j.cfg.SortBudget,
		Attempts:   j.cfg.MaxRetries,
		BaseDelay:  j.cfg.RetryBaseDelay,
	})

	var spillErr error
	emit := func(k, v string) {
		if spillErr == nil {
			spillErr = sp.Emit(k, v)
		}
	}

	err := sharder.ReadRecords(j.cfg.InputPath, shard, j.cfg.Delim, func(offset int64, record string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if merr := j.cfg.Mapper.Map(record, emit); merr != nil {
			return &types.MapperError{Shard: shard.ID, Offset: offset, Cause: merr}
		}
		return spillErr
	})
	if err != nil {
		return err
	}

	runs, err := sp.Finish()
	if err != nil {
		return err
	}

	j.runsMu.Lock()
	for _, r := range runs {
		j.runs[r.Partition] = append(j.runs[r.Partition], r)
	}
	j.runsMu.Unlock()

	j.mu.Lock()
	j.stats.PairsEmitted += sp.Emitted()
	j.stats.RunsWritten += len(runs)
	j.mu.Unlock()

	j.log.Debug("job %s: map task %d done, %d pairs, %d runs", j.id, shard.ID, sp.Emitted(), len(runs))
	return nil
}

// runReduceTask merges one partition's runs and invokes the reducer per
// group, writing output records in key order. The cancellation
// checkpoint is the group boundary.
func (j *Job) runReduceTask(ctx context.Context, partition int) error {
	j.runsMu.Lock()
	runs := j.runs[partition]
	j.runsMu.Unlock()

	stream, err := merge.Open(merge.Config{
		Partition: partition,
		Runs:      runs,
		Attempts:  j.cfg.MaxRetries,
		BaseDelay: j.cfg.RetryBaseDelay,
		Retain:    j.cfg.RetainRunFiles,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	outDir := filepath.Join(j.cfg.WorkDir, "output")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("partition-%d.out", partition))
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	w := bufio.NewWriter(f)

	var groups uint64
	for {
		if ctx.Err() != nil {
			f.Close()
			return ctx.Err()
		}
		group, err := stream.NextGroup()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return err
		}

		var writeErr error
		emit := func(v string) {
			if writeErr == nil {
				_, writeErr = w.WriteString(v + "\n")
			}
		}
		if rerr := j.cfg.Reducer.Reduce(group.Key, group, emit); rerr != nil {
			f.Close()
			return &types.ReducerError{Partition: partition, Key: group.Key, Cause: rerr}
		}
		if writeErr != nil {
			f.Close()
			return fmt.Errorf("failed to write output for partition %d: %w", partition, writeErr)
		}
		if serr := stream.Err(); serr != nil {
			f.Close()
			return serr
		}
		groups++
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush output for partition %d: %w", partition, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output for partition %d: %w", partition, err)
	}

	j.mu.Lock()
	j.outputs[partition] = outPath
	j.stats.GroupsReduced += groups
	j.mu.Unlock()

	j.log.Debug("job %s: reduce task %d done, %d groups", j.id, partition, groups)
	return nil
}
