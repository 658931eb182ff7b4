package oplog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cairnhealth/cairn/internal/model"
)

type fakeApplier struct {
	applied []string // operation ids in apply order
	errs    map[string]error
}

func (f *fakeApplier) Apply(_ context.Context, op model.PendingOperation) error {
	f.applied = append(f.applied, op.ID)
	return f.errs[op.ID]
}

func setupSyncer(t *testing.T) (*Syncer, *Store, *fakeApplier) {
	t.Helper()
	store := setupStore(t)
	applier := &fakeApplier{errs: map[string]error{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSyncer(store, applier, logger), store, applier
}

func TestSynchronizeReplaysInOrder(t *testing.T) {
	syncer, store, applier := setupSyncer(t)

	a, _ := store.Enqueue(model.EntitySafeZone, model.OpCreate, map[string]string{"name": "Home"})
	b, _ := store.Enqueue(model.EntitySafeZone, model.OpUpdate, map[string]string{"name": "Home 2"})
	c, _ := store.Enqueue(model.EntityAlert, model.OpUpdate, map[string]string{"status": "acknowledged"})

	res, err := syncer.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	if res.Synced != 3 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	want := []string{a.ID, b.ID, c.ID}
	if len(applier.applied) != 3 {
		t.Fatalf("applied %d ops, want 3", len(applier.applied))
	}
	for i, id := range want {
		if applier.applied[i] != id {
			t.Errorf("applied[%d] = %s, want %s", i, applier.applied[i], id)
		}
	}

	ops, _ := store.ListUnsynced()
	if len(ops) != 0 {
		t.Errorf("%d ops still unsynced", len(ops))
	}
}

func TestSynchronizeContinuesPastFailures(t *testing.T) {
	syncer, store, applier := setupSyncer(t)

	bad, _ := store.Enqueue(model.EntityPerson, model.OpCreate, map[string]string{})
	store.Enqueue(model.EntitySafeZone, model.OpCreate, map[string]string{})
	applier.errs[bad.ID] = errors.New("remote rejected")

	res, err := syncer.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	if res.Synced != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}

	ops, _ := store.ListUnsynced()
	if len(ops) != 1 || ops[0].ID != bad.ID || ops[0].SyncStatus != model.SyncFailed {
		t.Fatalf("unsynced = %+v, want only the failed op", ops)
	}
	if ops[0].LastError != "remote rejected" {
		t.Errorf("last error = %q", ops[0].LastError)
	}
}

func TestSynchronizeRetriesFailedOps(t *testing.T) {
	syncer, store, applier := setupSyncer(t)

	op, _ := store.Enqueue(model.EntityAlert, model.OpUpdate, map[string]string{})
	applier.errs[op.ID] = errors.New("transient")

	if _, err := syncer.Synchronize(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	delete(applier.errs, op.ID)
	res, err := syncer.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.Synced != 1 {
		t.Fatalf("result = %+v, want retried op synced", res)
	}
	if len(applier.applied) != 2 {
		t.Errorf("applied %d times, want 2", len(applier.applied))
	}
}

func TestSynchronizeStopsOnContextCancel(t *testing.T) {
	syncer, store, _ := setupSyncer(t)

	store.Enqueue(model.EntityAlert, model.OpCreate, map[string]string{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := syncer.Synchronize(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
