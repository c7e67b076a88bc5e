package digest

const defaultBatchSize = 500

// splitBatches slices ids into consecutive batches of at most size elements.
// It produces ceil(len(ids)/size) batches whose concatenation equals ids in
// order; no batch is empty. The slices alias ids.
func splitBatches(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = defaultBatchSize
	}
	if len(ids) == 0 {
		return nil
	}
	out := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
