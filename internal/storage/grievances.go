package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"grievance/backend/internal/config"
	"grievance/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const initialHistoryNote = "Grievance submitted"

// SaveGrievance вставляє скаргу та початковий запис історії в одній транзакції.
func (s *Service) SaveGrievance(ctx context.Context, g *models.Grievance) error {
	if g.GrievanceID == "" {
		g.GrievanceID = models.NewGrievanceID(time.Now())
	}
	if g.Status == "" {
		g.Status = models.InitialStatus
	}
	if !models.IsStatus(g.Status) {
		return ErrInvalidStatus
	}
	g.Priority = strings.ToLower(g.Priority)
	if !models.IsPriority(g.Priority) {
		return ErrInvalidPriority
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Департамент має бути в каталозі
		if err := departmentExists(tx, g.Department); err != nil {
			return err
		}

		// 2. Ідентифікатор не може повторюватися
		var n int64
		if err := tx.Model(&models.Grievance{}).Where("grievance_id = ?", g.GrievanceID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateGrievanceID
		}

		if err := tx.Omit(clause.Associations).Create(g).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateGrievanceID
			}
			return translate(err)
		}

		// 3. Початковий запис історії (old = NULL, actor = system)
		entry := models.StatusHistory{
			GrievanceID: g.GrievanceID,
			NewStatus:   g.Status,
			Note:        initialHistoryNote,
			ActorKind:   models.ActorSystem,
		}
		return tx.Create(&entry).Error
	})
}

// UpdateGrievanceStatus переводить скаргу в новий етап і дописує запис в історію.
// Порядок етапів тут не перевіряється.
func (s *Service) UpdateGrievanceStatus(ctx context.Context, upd StatusUpdate) (*Transition, error) {
	if !models.IsStatus(upd.NewStatus) {
		return nil, ErrInvalidStatus
	}
	kind := actorKind(upd.ActorKind, upd.ActorID)

	var tr *Transition
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := findGrievance(tx, upd.GrievanceID)
		if err != nil {
			return err
		}

		now := time.Now()
		changes := map[string]interface{}{
			"status":     upd.NewStatus,
			"updated_at": now,
		}
		if upd.Note != "" {
			changes["resolution_note"] = upd.Note
		}
		if upd.NewStatus == models.StatusClosed {
			changes["closed_at"] = now
		}
		if err := tx.Model(&models.Grievance{}).Where("id = ?", g.ID).Updates(changes).Error; err != nil {
			return err
		}

		old := g.Status
		entry := models.StatusHistory{
			GrievanceID: g.GrievanceID,
			OldStatus:   &old,
			NewStatus:   upd.NewStatus,
			Note:        upd.Note,
			ActorID:     upd.ActorID,
			ActorKind:   kind,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		tr = &Transition{GrievanceID: g.GrievanceID, OldStatus: old, NewStatus: upd.NewStatus, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// RecordClosure stores a closure verdict. An approved verdict moves the grievance to Closed
// and appends history; a rejected one only records the note and reason on the row.
func (s *Service) RecordClosure(ctx context.Context, rec ClosureRecord) (*Transition, error) {
	var tr *Transition
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := findGrievance(tx, rec.GrievanceID)
		if err != nil {
			return err
		}

		now := time.Now()
		changes := map[string]interface{}{
			"closure_note":     rec.Note,
			"closure_reason":   rec.Reason,
			"closure_approved": rec.Approved,
			"updated_at":       now,
		}
		tr = &Transition{GrievanceID: g.GrievanceID, OldStatus: g.Status, NewStatus: g.Status}

		if rec.Approved {
			changes["status"] = models.StatusClosed
			changes["resolution_note"] = rec.Note
			changes["closed_at"] = now
			tr.NewStatus = models.StatusClosed
			tr.Changed = true
		}
		if err := tx.Model(&models.Grievance{}).Where("id = ?", g.ID).Updates(changes).Error; err != nil {
			return err
		}
		if !rec.Approved {
			return nil
		}

		old := g.Status
		entry := models.StatusHistory{
			GrievanceID: g.GrievanceID,
			OldStatus:   &old,
			NewStatus:   models.StatusClosed,
			Note:        rec.Note,
			ActorID:     rec.ActorID,
			ActorKind:   actorKind("", rec.ActorID),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// MarkNotificationSent ставить прапорець notification_sent.
func (s *Service) MarkNotificationSent(ctx context.Context, grievanceID string) error {
	res := s.DB.WithContext(ctx).Model(&models.Grievance{}).
		Where("grievance_id = ?", grievanceID).
		Update("notification_sent", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetGrievanceByID returns the grievance joined with its submitter's display fields.
func (s *Service) GetGrievanceByID(ctx context.Context, grievanceID string) (*models.Grievance, error) {
	var g models.Grievance
	err := s.withSubmitter(ctx).
		Where("grievances.grievance_id = ?", grievanceID).
		Take(&g).Error
	if err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *Service) ListGrievancesByUser(ctx context.Context, userID uint) ([]models.Grievance, error) {
	var list []models.Grievance
	err := s.withSubmitter(ctx).
		Where("grievances.user_id = ?", userID).
		Order("grievances.created_at DESC, grievances.id DESC").
		Find(&list).Error
	return list, err
}

// ListGrievancesByDepartment orders by priority rank (high first), then newest first.
func (s *Service) ListGrievancesByDepartment(ctx context.Context, department string) ([]models.Grievance, error) {
	var list []models.Grievance
	err := s.withSubmitter(ctx).
		Where("grievances.department = ?", department).
		Order(priorityOrderSQL()).
		Order("grievances.created_at DESC, grievances.id DESC").
		Find(&list).Error
	return list, err
}

func (s *Service) ListAllGrievances(ctx context.Context) ([]models.Grievance, error) {
	var list []models.Grievance
	err := s.withSubmitter(ctx).
		Order("grievances.created_at DESC, grievances.id DESC").
		Find(&list).Error
	return list, err
}

// GetStatusHistory повертає історію від найновішого запису.
func (s *Service) GetStatusHistory(ctx context.Context, grievanceID string) ([]models.StatusHistory, error) {
	db := s.DB.WithContext(ctx)
	if _, err := findGrievance(db, grievanceID); err != nil {
		return nil, err
	}

	var entries []models.StatusHistory
	err := db.Model(&models.StatusHistory{}).
		Select("status_history.*, admins.name AS admin_name").
		Joins("LEFT JOIN admins ON admins.id = status_history.actor_id AND status_history.actor_kind = ?", models.ActorAdmin).
		Where("status_history.grievance_id = ?", grievanceID).
		Order("status_history.created_at DESC, status_history.id DESC").
		Find(&entries).Error
	return entries, err
}

// ContactPhone returns the grievance's phone, falling back to the submitter account's phone.
func (s *Service) ContactPhone(ctx context.Context, grievanceID string) (string, error) {
	var row struct {
		Phone     string
		UserPhone *string
	}
	err := s.DB.WithContext(ctx).Model(&models.Grievance{}).
		Select("grievances.phone AS phone, users.phone AS user_phone").
		Joins("LEFT JOIN users ON users.id = grievances.user_id").
		Where("grievances.grievance_id = ?", grievanceID).
		Take(&row).Error
	if err != nil {
		return "", translate(err)
	}
	if row.Phone != "" {
		return row.Phone, nil
	}
	if row.UserPhone != nil {
		return *row.UserPhone, nil
	}
	return "", nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var list []models.Department
	err := s.DB.WithContext(ctx).Order("id").Find(&list).Error
	return list, err
}

func (s *Service) GetDepartment(ctx context.Context, name string) (*models.Department, error) {
	var d models.Department
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// DashboardCounts groups the department's grievances by priority and status,
// and all grievances by department.
func (s *Service) DashboardCounts(ctx context.Context, department string) (*Counts, error) {
	db := s.DB.WithContext(ctx)
	c := &Counts{
		ByPriority:   make(map[string]int64),
		ByStatus:     make(map[string]int64),
		ByDepartment: make(map[string]int64),
	}

	type bucket struct {
		Label string
		N     int64
	}
	group := func(column string, scoped bool, into map[string]int64) error {
		var rows []bucket
		q := db.Model(&models.Grievance{}).Select(column + " AS label, COUNT(*) AS n")
		if scoped {
			q = q.Where("department = ?", department)
		}
		if err := q.Group(column).Scan(&rows).Error; err != nil {
			return fmt.Errorf("count by %s: %w", column, err)
		}
		for _, r := range rows {
			into[r.Label] = r.N
		}
		return nil
	}

	if err := group("priority", true, c.ByPriority); err != nil {
		return nil, err
	}
	if err := group("status", true, c.ByStatus); err != nil {
		return nil, err
	}
	if err := group("department", false, c.ByDepartment); err != nil {
		return nil, err
	}
	for _, n := range c.ByPriority {
		c.Total += n
	}
	return c, nil
}

func (s *Service) withSubmitter(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&models.Grievance{}).
		Select("grievances.*, users.name AS submitter_name, users.email AS submitter_email").
		Joins("LEFT JOIN users ON users.id = grievances.user_id")
}

func findGrievance(tx *gorm.DB, grievanceID string) (*models.Grievance, error) {
	var g models.Grievance
	if err := tx.Where("grievance_id = ?", grievanceID).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func departmentExists(tx *gorm.DB, name string) error {
	var n int64
	if err := tx.Model(&models.Department{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownDepartment, name)
	}
	return nil
}

func actorKind(kind string, actorID *uint) string {
	if kind != "" {
		return kind
	}
	if actorID != nil {
		return models.ActorAdmin
	}
	return models.ActorSystem
}

// priorityOrderSQL builds the CASE expression from config.PriorityRanks.
func priorityOrderSQL() string {
	labels := make([]string, 0, len(config.PriorityRanks))
	for p := range config.PriorityRanks {
		labels = append(labels, p)
	}
	sort.Slice(labels, func(i, j int) bool {
		return config.PriorityRanks[labels[i]] < config.PriorityRanks[labels[j]]
	})

	var b strings.Builder
	b.WriteString("CASE grievances.priority")
	for _, p := range labels {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, config.PriorityRanks[p])
	}
	fmt.Fprintf(&b, " ELSE %d END", len(labels))
	return b.String()
}
