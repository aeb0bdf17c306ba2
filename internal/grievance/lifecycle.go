package grievance

import (
	"context"
	"fmt"
	"strings"

	"grievance/backend/internal/config"
	"grievance/backend/internal/models"
	"grievance/backend/internal/notify"
	"grievance/backend/internal/storage"
	"grievance/backend/internal/triage"

	"go.uber.org/zap"
)

// StatusChange is an admin or system request to move a grievance to another stage.
type StatusChange struct {
	GrievanceID string
	Status      string
	Note        string
	// AdminID is nil for system-originated changes.
	AdminID *uint
}

// StatusResult reports the transition and the notification outcome.
type StatusResult struct {
	Grievance    *models.Grievance
	OldStatus    string
	NewStatus    string
	Notification notify.Result
}

// Message is the human-readable transition, e.g. "Pending → In Process".
func (r *StatusResult) Message() string {
	return fmt.Sprintf("%s → %s", r.OldStatus, r.NewStatus)
}

// UpdateStatus validates the stage, applies the transition policy, writes the change with
// its history entry and notifies the citizen. Notification failure never undoes the write.
func (s *Service) UpdateStatus(ctx context.Context, req StatusChange) (*StatusResult, error) {
	if !models.IsStatus(req.Status) {
		return nil, storage.ErrInvalidStatus
	}

	g, err := s.Storage.GetGrievanceByID(ctx, req.GrievanceID)
	if err != nil {
		return nil, err
	}
	if !s.allowed(g.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s → %s", ErrTransitionNotAllowed, g.Status, req.Status)
	}

	actor := models.ActorSystem
	if req.AdminID != nil {
		actor = models.ActorAdmin
	}
	note := strings.TrimSpace(req.Note)

	tr, err := s.Storage.UpdateGrievanceStatus(ctx, storage.StatusUpdate{
		GrievanceID: g.GrievanceID,
		NewStatus:   req.Status,
		Note:        note,
		ActorID:     req.AdminID,
		ActorKind:   actor,
	})
	if err != nil {
		return nil, err
	}
	g.Status = tr.NewStatus
	if note != "" {
		g.ResolutionNote = note
	}

	s.log.Info("Grievance status updated",
		zap.String("grievance_id", g.GrievanceID),
		zap.String("old_status", tr.OldStatus),
		zap.String("new_status", tr.NewStatus),
		zap.String("actor", actor))

	res := &StatusResult{Grievance: g, OldStatus: tr.OldStatus, NewStatus: tr.NewStatus}
	if s.notifier != nil {
		res.Notification = s.notifier.NotifyStatusChange(ctx, g, tr.OldStatus, tr.NewStatus, note)
	}
	s.publishTransition(ctx, g, tr.OldStatus)
	return res, nil
}

// allowed applies the configured transition policy. The open policy permits any stage change.
func (s *Service) allowed(from, to string) bool {
	if s.policy != config.TransitionForward {
		return true
	}
	return models.StageIndex(to) >= models.StageIndex(from)
}

func (s *Service) publishTransition(ctx context.Context, g *models.Grievance, oldStatus string) {
	s.publish(ctx, models.FeedEvent{
		Type:        models.EventGrievanceStatusChanged,
		GrievanceID: g.GrievanceID,
		Department:  g.Department,
		Priority:    g.Priority,
		OldStatus:   oldStatus,
		NewStatus:   g.Status,
	})
}

// ClosureRequest asks to close a grievance with the given resolution note.
type ClosureRequest struct {
	GrievanceID string
	Note        string
	AdminID     *uint
}

// ClosureResult carries the verdict. Transition.Changed is false when the closure was rejected.
type ClosureResult struct {
	Grievance    *models.Grievance
	Verdict      triage.Verdict
	Transition   *storage.Transition
	Notification notify.Result
}

// CloseWithVerification checks the resolution note before closing. A rejected note is still
// recorded together with the reason so admins can see why.
func (s *Service) CloseWithVerification(ctx context.Context, req ClosureRequest) (*ClosureResult, error) {
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, ErrEmptyNote
	}

	g, err := s.Storage.GetGrievanceByID(ctx, req.GrievanceID)
	if err != nil {
		return nil, err
	}

	verdict := s.triage.VerifyClosure(ctx, g.OriginalText, note, g.Location())

	tr, err := s.Storage.RecordClosure(ctx, storage.ClosureRecord{
		GrievanceID: g.GrievanceID,
		Note:        note,
		Reason:      verdict.Reason,
		Approved:    verdict.Approved,
		ActorID:     req.AdminID,
	})
	if err != nil {
		return nil, err
	}

	approved := verdict.Approved
	g.ClosureNote = note
	g.ClosureReason = verdict.Reason
	g.ClosureApproved = &approved
	g.Status = tr.NewStatus

	s.log.Info("Closure verified",
		zap.String("grievance_id", g.GrievanceID),
		zap.Bool("approved", verdict.Approved),
		zap.String("source", verdict.Source))

	res := &ClosureResult{Grievance: g, Verdict: verdict, Transition: tr}
	if tr.Changed {
		if s.notifier != nil {
			res.Notification = s.notifier.NotifyStatusChange(ctx, g, tr.OldStatus, tr.NewStatus, note)
		}
		s.publishTransition(ctx, g, tr.OldStatus)
	}
	return res, nil
}
