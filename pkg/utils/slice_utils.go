package utils

// Chunk 按固定大小切分切片，返回的子切片共享原切片的底层数组。
// size 小于等于 0 时整个切片作为唯一一块返回；空切片返回 nil。
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
