package storage

import (
	"context"
	"errors"

	"grievance/backend/internal/config"
	"grievance/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrDuplicateGrievanceID = errors.New("grievance id already exists")
	ErrUnknownDepartment    = errors.New("unknown department")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

// Storage is the persistence contract used by the orchestrator and HTTP layer.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User, password string) error
	CreateAdmin(ctx context.Context, admin *models.Admin, password string) error
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
	AuthenticateAdmin(ctx context.Context, email, password string) (*models.Admin, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetAdminByID(ctx context.Context, id uint) (*models.Admin, error)

	SaveGrievance(ctx context.Context, g *models.Grievance) error
	UpdateGrievanceStatus(ctx context.Context, upd StatusUpdate) (*Transition, error)
	RecordClosure(ctx context.Context, rec ClosureRecord) (*Transition, error)
	MarkNotificationSent(ctx context.Context, grievanceID string) error

	GetGrievanceByID(ctx context.Context, grievanceID string) (*models.Grievance, error)
	ListGrievancesByUser(ctx context.Context, userID uint) ([]models.Grievance, error)
	ListGrievancesByDepartment(ctx context.Context, department string) ([]models.Grievance, error)
	ListAllGrievances(ctx context.Context) ([]models.Grievance, error)
	GetStatusHistory(ctx context.Context, grievanceID string) ([]models.StatusHistory, error)
	ContactPhone(ctx context.Context, grievanceID string) (string, error)

	ListDepartments(ctx context.Context) ([]models.Department, error)
	GetDepartment(ctx context.Context, name string) (*models.Department, error)
	DashboardCounts(ctx context.Context, department string) (*Counts, error)
}

// StatusUpdate describes one requested stage transition.
type StatusUpdate struct {
	GrievanceID string
	NewStatus   string
	Note        string
	ActorID     *uint
	ActorKind   string
}

// ClosureRecord is the outcome of a closure verification.
type ClosureRecord struct {
	GrievanceID string
	Note        string
	Reason      string
	Approved    bool
	ActorID     *uint
}

// Transition reports what a status write changed. Changed is false when the row kept its status.
type Transition struct {
	GrievanceID string
	OldStatus   string
	NewStatus   string
	Changed     bool
}

// Counts are the grouped counters behind the admin dashboard.
type Counts struct {
	Total        int64
	ByPriority   map[string]int64
	ByStatus     map[string]int64
	ByDepartment map[string]int64
}

// Service реалізує Storage поверх GORM.
type Service struct {
	DB *gorm.DB
	// HashCost is the bcrypt cost used for new credentials.
	HashCost int
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db, HashCost: config.BcryptCost}
}

var _ Storage = (*Service)(nil)

// translate maps gorm errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrUnknownDepartment
	}
	return err
}
