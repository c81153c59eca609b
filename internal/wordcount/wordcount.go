// Package wordcount is the packaged demo workload: a Mapper/Reducer
// pair that counts word occurrences across the input.
package wordcount

import (
	"fmt"
	"strconv"
	"strings"

	"LocalMR/internal/types"
)

// WordCount implements both the Mapper and Reducer contracts.
type WordCount struct{}

// New creates a WordCount workload.
func New() *WordCount {
	return &WordCount{}
}

// Map emits (word, "1") for every whitespace-separated token in the
// record.
func (wc *WordCount) Map(record string, emit types.Emitter) error {
	for _, word := range strings.Fields(record) {
		emit(word, "1")
	}
	return nil
}

// Reduce sums the counts for one word and emits "word\tcount".
func (wc *WordCount) Reduce(key string, values types.ValueIter, emit func(string)) error {
	total := 0
	for {
		v, ok := values.Next()
		if !ok {
			break
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("malformed count %q for word %q: %w", v, key, err)
		}
		total += n
	}
	emit(fmt.Sprintf("%s\t%d", key, total))
	return nil
}
