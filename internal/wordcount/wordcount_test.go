package wordcount

import (
	"testing"

	"LocalMR/internal/types"
)

type sliceIter struct {
	values []string
	i      int
}

func (s *sliceIter) Next() (string, bool) {
	if s.i >= len(s.values) {
		return "", false
	}
	v := s.values[s.i]
	s.i++
	return v, true
}

func TestMapEmitsOnePairPerToken(t *testing.T) {
	wc := New()
	var got []types.KeyValue
	err := wc.Map("cat  dog\tcat", func(k, v string) {
		got = append(got, types.KeyValue{Key: k, Value: v})
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	want := []types.KeyValue{{Key: "cat", Value: "1"}, {Key: "dog", Value: "1"}, {Key: "cat", Value: "1"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMapEmptyRecord(t *testing.T) {
	wc := New()
	err := wc.Map("   ", func(k, v string) {
		t.Errorf("unexpected emission (%q, %q)", k, v)
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
}

func TestReduceSumsCounts(t *testing.T) {
	wc := New()
	var out []string
	err := wc.Reduce("cat", &sliceIter{values: []string{"1", "1", "3"}}, func(v string) {
		out = append(out, v)
	})
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if len(out) != 1 || out[0] != "cat\t5" {
		t.Errorf("got %v, want [cat\\t5]", out)
	}
}

func TestReduceRejectsMalformedCount(t *testing.T) {
	wc := New()
	err := wc.Reduce("cat", &sliceIter{values: []string{"not-a-number"}}, func(string) {})
	if err == nil {
		t.Error("expected error for malformed count")
	}
}
