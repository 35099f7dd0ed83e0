package auditlog

import (
	"context"
	"log/slog"
	"sync"
)

// Worker writes entries in the background so request handlers never block
// on the audit trail. Entries are dropped, with a warning, if the buffer
// fills up.
type Worker struct {
	entryCh chan Entry
	logger  Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorker(logger Logger, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		entryCh: make(chan Entry, bufferSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining audit entries before shutdown", "remaining", len(w.entryCh))
				for len(w.entryCh) > 0 {
					entry := <-w.entryCh
					if err := w.logger.Save(context.Background(), entry); err != nil {
						slog.Error("failed to save audit entry during shutdown", "error", err, "action", entry.Action)
					}
				}
				return
			case entry := <-w.entryCh:
				if err := w.logger.Save(w.ctx, entry); err != nil {
					slog.Error("failed to save audit entry", "error", err, "action", entry.Action)
				}
			}
		}
	}()
}

func (w *Worker) Record(entry Entry) {
	select {
	case w.entryCh <- entry:
	default:
		slog.Warn("audit channel full, dropping entry", "action", entry.Action)
	}
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
	close(w.entryCh)
}
