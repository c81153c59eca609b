package types

import "fmt"

// ShardingError indicates the input could not be split into shards.
type ShardingError struct {
	Input string
	Cause error
}

func (e *ShardingError) Error() string {
	return fmt.Sprintf("sharding %s failed: %v", e.Input, e.Cause)
}

func (e *ShardingError) Unwrap() error { return e.Cause }

// MapperError indicates a user Map function failed on a record. Offset
// is the byte offset of the record within the input.
type MapperError struct {
	Shard  int
	Offset int64
	Cause  error
}

func (e *MapperError) Error() string {
	return fmt.Sprintf("mapper failed on shard %d at offset %d: %v", e.Shard, e.Offset, e.Cause)
}

func (e *MapperError) Unwrap() error { return e.Cause }

// SortSpillError indicates a sorted run could not be written.
type SortSpillError struct {
	Shard     int
	Partition int
	Cause     error
}

func (e *SortSpillError) Error() string {
	return fmt.Sprintf("spill failed for shard %d partition %d: %v", e.Shard, e.Partition, e.Cause)
}

func (e *SortSpillError) Unwrap() error { return e.Cause }

// MergeError indicates a run file could not be read back during the
// merge for one partition.
type MergeError struct {
	Partition int
	Run       string
	Cause     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed for partition %d run %s: %v", e.Partition, e.Run, e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

// ReducerError indicates a user Reduce function failed on a key.
type ReducerError struct {
	Partition int
	Key       string
	Cause     error
}

func (e *ReducerError) Error() string {
	return fmt.Sprintf("reducer failed for partition %d key %q: %v", e.Partition, e.Key, e.Cause)
}

func (e *ReducerError) Unwrap() error { return e.Cause }
