package companion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cairnhealth/cairn/internal/model"
)

// Applier replays recorded operations against the hub. Replay is
// at-least-once; entities created offline get fresh hub-side ids and no
// reconciliation with their provisional mirror ids is attempted.
type Applier struct {
	remote *Client
}

func NewApplier(remote *Client) *Applier {
	return &Applier{remote: remote}
}

func (a *Applier) Apply(ctx context.Context, op model.PendingOperation) error {
	switch op.EntityType {
	case model.EntitySafeZone:
		return a.applySafeZone(ctx, op)
	case model.EntityAlert:
		return a.applyAlert(ctx, op)
	case model.EntityPerson:
		return a.applyPerson(ctx, op)
	}
	return fmt.Errorf("unknown entity type %q", op.EntityType)
}

func (a *Applier) applySafeZone(ctx context.Context, op model.PendingOperation) error {
	switch op.Operation {
	case model.OpCreate:
		var req ZoneRequest
		if err := json.Unmarshal(op.Payload, &req); err != nil {
			return fmt.Errorf("decode zone create: %w", err)
		}
		_, err := a.remote.CreateSafeZone(ctx, req)
		return err
	case model.OpUpdate:
		var upd zoneUpdateOp
		if err := json.Unmarshal(op.Payload, &upd); err != nil {
			return fmt.Errorf("decode zone update: %w", err)
		}
		_, err := a.remote.UpdateSafeZone(ctx, upd.ID, upd.ZoneRequest)
		return err
	case model.OpDelete:
		var del zoneDeleteOp
		if err := json.Unmarshal(op.Payload, &del); err != nil {
			return fmt.Errorf("decode zone delete: %w", err)
		}
		return a.remote.DeleteSafeZone(ctx, del.ID)
	}
	return fmt.Errorf("unknown operation %q", op.Operation)
}

func (a *Applier) applyAlert(ctx context.Context, op model.PendingOperation) error {
	switch op.Operation {
	case model.OpCreate:
		var req AlertRequest
		if err := json.Unmarshal(op.Payload, &req); err != nil {
			return fmt.Errorf("decode alert create: %w", err)
		}
		_, err := a.remote.CreateAlert(ctx, req)
		return err
	case model.OpUpdate:
		var upd alertStatusOp
		if err := json.Unmarshal(op.Payload, &upd); err != nil {
			return fmt.Errorf("decode alert update: %w", err)
		}
		_, err := a.remote.UpdateAlertStatus(ctx, upd.ID, upd.Status, upd.ResolutionNotes)
		return err
	}
	return fmt.Errorf("unknown operation %q", op.Operation)
}

func (a *Applier) applyPerson(ctx context.Context, op model.PendingOperation) error {
	if op.Operation != model.OpCreate {
		return fmt.Errorf("unknown operation %q", op.Operation)
	}
	var req PersonRequest
	if err := json.Unmarshal(op.Payload, &req); err != nil {
		return fmt.Errorf("decode person create: %w", err)
	}
	_, err := a.remote.CreatePerson(ctx, req)
	return err
}
