package digest

import "testing"

func TestSplitBatches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		n         int
		size      int
		wantCount int
		wantLast  int
	}{
		{name: "empty", n: 0, size: 500, wantCount: 0},
		{name: "single short", n: 3, size: 500, wantCount: 1, wantLast: 3},
		{name: "exact multiple", n: 1000, size: 500, wantCount: 2, wantLast: 500},
		{name: "remainder", n: 1201, size: 500, wantCount: 3, wantLast: 201},
		{name: "size one", n: 4, size: 1, wantCount: 4, wantLast: 1},
		{name: "zero size falls back to default", n: 501, size: 0, wantCount: 2, wantLast: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]int64, tt.n)
			for i := range ids {
				ids[i] = int64(i)
			}
			batches := splitBatches(ids, tt.size)
			if len(batches) != tt.wantCount {
				t.Fatalf("batch count = %d, want %d", len(batches), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got := len(batches[len(batches)-1]); got != tt.wantLast {
				t.Fatalf("last batch len = %d, want %d", got, tt.wantLast)
			}

			// Concatenation reproduces the input exactly, in order, with no
			// empty batch.
			var next int64
			for _, b := range batches {
				if len(b) == 0 {
					t.Fatalf("empty batch produced")
				}
				for _, id := range b {
					if id != next {
						t.Fatalf("id = %d, want %d", id, next)
					}
					next++
				}
			}
			if int(next) != tt.n {
				t.Fatalf("concatenated %d ids, want %d", next, tt.n)
			}
		})
	}
}
