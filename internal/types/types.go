package types

// KeyValue is the intermediate key-value pair produced by mappers.
type KeyValue struct {
	Key   string
	Value string
}

// Pair is a KeyValue tagged with its provenance: the shard that emitted
// it and the emission sequence number within that shard's map task.
// (Key, Shard, Seq) is the total order the merge phase relies on, which
// is what makes the reduce input deterministic across runs.
type Pair struct {
	Key   string
	Value string
	Shard int
	Seq   uint64
}

// Less reports whether p sorts before q under the engine's total order:
// key first, then emitting shard, then emission sequence.
func (p Pair) Less(q Pair) bool {
	if p.Key != q.Key {
		return p.Key < q.Key
	}
	if p.Shard != q.Shard {
		return p.Shard < q.Shard
	}
	return p.Seq < q.Seq
}

// Emitter receives key-value pairs emitted by a Mapper invocation.
type Emitter func(key, value string)

// Mapper is the user-supplied map transform. Map is invoked once per
// input record and may emit zero, one, or many pairs. Implementations
// must not share mutable state across invocations; map tasks run in
// parallel.
type Mapper interface {
	Map(record string, emit Emitter) error
}

// ValueIter is a lazy, single-pass sequence of values for one key.
// A second traversal yields nothing.
type ValueIter interface {
	Next() (string, bool)
}

// Reducer is the user-supplied aggregation. Reduce is invoked exactly
// once per distinct key per partition, in ascending key order within
// that partition, and may emit zero or more output records.
type Reducer interface {
	Reduce(key string, values ValueIter, emit func(value string)) error
}
