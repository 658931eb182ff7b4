package oplog

import (
	"context"
	"log/slog"

	"github.com/cairnhealth/cairn/internal/model"
)

// Applier replays one recorded operation against the hub.
type Applier interface {
	Apply(ctx context.Context, op model.PendingOperation) error
}

// Result summarizes one synchronization pass.
type Result struct {
	Synced int
	Failed int
	Pruned int64
}

// Syncer replays unsynced operations in enqueue order. A failed operation is
// marked failed and the pass continues with the next one; failed operations
// are retried on every subsequent pass. Replay is at-least-once: an
// operation that reached the hub but whose response was lost will be applied
// again.
//
// Synchronize is not safe for concurrent calls; callers serialize passes.
type Syncer struct {
	store   *Store
	applier Applier
	logger  *slog.Logger
}

func NewSyncer(store *Store, applier Applier, logger *slog.Logger) *Syncer {
	return &Syncer{store: store, applier: applier, logger: logger}
}

// Synchronize replays the queue once and prunes old synced operations.
func (s *Syncer) Synchronize(ctx context.Context) (Result, error) {
	ops, err := s.store.ListUnsynced()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.applier.Apply(ctx, op); err != nil {
			s.logger.Warn("replay failed",
				"op_id", op.ID, "entity", op.EntityType, "operation", op.Operation, "error", err)
			if markErr := s.store.MarkFailed(op.ID, err.Error()); markErr != nil {
				return res, markErr
			}
			res.Failed++
			continue
		}

		if err := s.store.MarkSynced(op.ID); err != nil {
			return res, err
		}
		res.Synced++
	}

	pruned, err := s.store.PruneSynced()
	if err != nil {
		return res, err
	}
	res.Pruned = pruned

	if res.Synced > 0 || res.Failed > 0 {
		s.logger.Info("synchronization pass complete",
			"synced", res.Synced, "failed", res.Failed, "pruned", res.Pruned)
	}
	return res, nil
}
