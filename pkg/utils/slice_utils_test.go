package utils

import "testing"

func TestChunkPartitionsWithRemainder(t *testing.T) {
	items := make([]int, 0, 7)
	for i := 0; i < 7; i++ {
		items = append(items, i)
	}

	chunks := Chunk(items, 3)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 3 || len(chunks[1]) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunks[2][0] != 6 {
		t.Errorf("expected last chunk to hold 6, got %d", chunks[2][0])
	}
}

func TestChunkSharesBackingArray(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	chunks := Chunk(items, 2)

	chunks[1][0] = "x"
	if items[2] != "x" {
		t.Errorf("expected mutation through chunk to reach the source slice, got %q", items[2])
	}
}

func TestChunkEdgeCases(t *testing.T) {
	if got := Chunk([]int{}, 3); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := Chunk([]int{1, 2}, 0); len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("expected a single chunk for non-positive size, got %v", got)
	}
}
