package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartValidationJob periodically cross-checks the book's redundant
// structures. Corruption is unrecoverable: the process halts so the
// operator restarts from the last snapshot.
func (e *Engine) StartValidationJob(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := e.Validate(); err != nil {
					e.log.Fatal("book state corrupt", zap.Error(err))
				}
			}
		}
	}()
}
