package service

import (
	"context"
	"strings"

	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository"
)

// InspectionService 检验服务
type InspectionService struct {
	*base
}

// SubmitInput 检验报告
type SubmitInput struct {
	ComponentID string  `json:"component_id"`
	Status      string  `json:"status"`
	DefectType  *string `json:"defect_type"`
	Comments    *string `json:"comments"`
}

// Submit appends an inspection and applies its effect in one transaction.
// Repeated submissions are all recorded.
func (s *InspectionService) Submit(ctx context.Context, actor authz.Actor, in SubmitInput) (*entity.Inspection, error) {
	if err := s.gate.Authorize(actor, authz.OpInspect, authz.Target{}); err != nil {
		return nil, err
	}
	if err := ValidateRef(strings.TrimSpace(in.ComponentID)); err != nil {
		return nil, err
	}
	outcome, err := lifecycle.ParseOutcome(in.Status)
	if err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, in.ComponentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inspection := &entity.Inspection{
		ID:          repository.NewID(),
		ComponentID: c.ID,
		Outcome:     outcome,
		DefectType:  trimmed(in.DefectType),
		Comments:    trimmed(in.Comments),
		InspectedBy: actor.ID,
		InspectedAt: now,
	}

	effect := lifecycle.EffectOf(outcome)
	actorID := actor.ID
	qc := effect.QCStatus
	patch := entity.ComponentPatch{
		QCStatus:    &qc,
		QCDate:      &now,
		InspectorID: &actorID,
		UpdatedAt:   now,
	}
	toStatus := c.Status
	if effect.Status != "" {
		st := effect.Status
		patch.Status = &st
		toStatus = st
	}
	action := entity.ActionInspectOK
	if outcome == lifecycle.OutcomeDefected {
		action = entity.ActionInspectDefected
	}

	var applied bool
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.InsertInspection(ctx, inspection); err != nil {
			return err
		}
		ok, err := tx.UpdateComponentIf(ctx, c.ID, entity.ComponentCondition{QCStatuses: effect.AllowedQC}, patch)
		if err != nil {
			return err
		}
		applied = ok
		content := string(outcome)
		if !ok {
			// 已判定缺陷的部件不会被 OK 覆盖
			content += " (state unchanged, component already failed)"
			toStatus = c.Status
		}
		return tx.InsertActivity(ctx, activity(c, action, string(c.Status), string(toStatus), content, actor, now))
	})
	if err != nil {
		return nil, storeError(err, "submit inspection for %s", c.ComponentID)
	}

	if applied {
		patch.Apply(c)
	} else if fresh, err := s.store.FindComponent(ctx, c.ID); err == nil {
		c = fresh
	}
	s.publish(ctx, events.ComponentInspected, c, actor)
	return inspection, nil
}

// History lists inspections of a component, newest first.
func (s *InspectionService) History(ctx context.Context, actor authz.Actor, ref string) ([]entity.Inspection, error) {
	if err := s.gate.Authorize(actor, authz.OpView, authz.Target{}); err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListInspectionsByComponent(ctx, c.ID)
	if err != nil {
		return nil, storeError(err, "list inspections of %s", c.ComponentID)
	}
	if items == nil {
		items = []entity.Inspection{}
	}
	return items, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
