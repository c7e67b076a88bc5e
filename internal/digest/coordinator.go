package digest

import (
	"context"
	"sync"

	logx "kursbot/pkg/logx"
)

// runBatch dispatches the executor concurrently for every recipient in the
// batch (concurrency = batch size; the shared pacer bounds the actual send
// rate), waits for all outcomes, and tallies them. One recipient's failure
// never aborts the batch.
func (s *Service) runBatch(ctx context.Context, p pacer, batch []int64, content Content) BatchResult {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res BatchResult
	)

	wg.Add(len(batch))
	for _, recipient := range batch {
		recipient := recipient
		go func() {
			defer wg.Done()
			r := s.sendOne(ctx, p, recipient, content)
			mu.Lock()
			switch r.Outcome {
			case OutcomeSent:
				res.Sent++
			case OutcomeBlocked:
				res.Blocked++
				res.BlockedIDs = append(res.BlockedIDs, r.Recipient)
			default:
				res.Failed++
			}
			mu.Unlock()
			if r.Err != nil && r.Outcome == OutcomeFailed {
				s.log.Warn("digest send failed",
					logx.Int64("recipient", r.Recipient), logx.Bool("retried", r.Retried), logx.Err(r.Err))
			}
		}()
	}
	wg.Wait()
	return res
}
