package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Grievance is the central aggregate: one citizen complaint and its current stage.
// GrievanceID is the human-readable external identifier and never changes after creation.
type Grievance struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	GrievanceID string `gorm:"uniqueIndex;not null;size:64" json:"grievance_id"`
	// UserID is nil for guest and messaging-channel submissions.
	UserID *uint  `gorm:"index" json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	// Source is the transport the grievance arrived through (web, whatsapp, telegram).
	Source         string `gorm:"default:web" json:"source"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`

	OriginalText   string `gorm:"type:text;not null" json:"original_text"`
	StructuredText string `gorm:"type:text" json:"structured_text"`
	Department     string `gorm:"not null;index" json:"department"`
	Priority       string `gorm:"not null;default:medium" json:"priority"`
	Status         string `gorm:"not null;index" json:"status"`
	ResolutionNote string `gorm:"type:text" json:"resolution_note"`

	City             string `json:"city"`
	State            string `json:"state"`
	Area             string `json:"area"`
	Place            string `json:"place"`
	Pincode          string `json:"pincode"`
	SpecificLocation string `json:"specific_location"`

	ImagePath     string         `json:"image_path,omitempty"`
	ImageAnalysis datatypes.JSON `json:"image_analysis,omitempty"`

	NotificationSent bool `json:"notification_sent"`

	// Closure verification outcome. ClosureApproved is nil until verification ran.
	ClosureNote     string     `gorm:"type:text" json:"closure_note,omitempty"`
	ClosureReason   string     `gorm:"type:text" json:"closure_reason,omitempty"`
	ClosureApproved *bool      `json:"closure_approved,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Submitter fields are filled by joined reads only.
	SubmitterName  string `gorm:"->;-:migration" json:"user_name,omitempty"`
	SubmitterEmail string `gorm:"->;-:migration" json:"user_email,omitempty"`

	Dept    Department      `gorm:"foreignKey:Department;references:Name" json:"-"`
	History []StatusHistory `gorm:"foreignKey:GrievanceID;references:GrievanceID;constraint:OnDelete:CASCADE" json:"-"`
}

// Location is the optional structured location hint attached to a submission.
type Location struct {
	City             string `json:"city"`
	State            string `json:"state"`
	Area             string `json:"area"`
	Place            string `json:"place"`
	Pincode          string `json:"pincode"`
	SpecificLocation string `json:"specific_location"`
}

// IsEmpty reports whether no location field is set.
func (l Location) IsEmpty() bool {
	return l == Location{}
}

// Location returns the grievance's location fields as a Location.
func (g *Grievance) Location() Location {
	return Location{
		City:             g.City,
		State:            g.State,
		Area:             g.Area,
		Place:            g.Place,
		Pincode:          g.Pincode,
		SpecificLocation: g.SpecificLocation,
	}
}

// SetLocation copies loc into the grievance row.
func (g *Grievance) SetLocation(loc Location) {
	g.City = loc.City
	g.State = loc.State
	g.Area = loc.Area
	g.Place = loc.Place
	g.Pincode = loc.Pincode
	g.SpecificLocation = loc.SpecificLocation
}

// BeforeCreate: хук GORM. Генерує GrievanceID та початковий статус, якщо їх ще не встановлено.
func (g *Grievance) BeforeCreate(tx *gorm.DB) (err error) {
	if g.GrievanceID == "" {
		g.GrievanceID = NewGrievanceID(time.Now())
	}
	if g.Status == "" {
		g.Status = InitialStatus
	}
	return
}

// NewGrievanceID returns an identifier of the form GRV-YYYYMMDD-XXXXXXXX.
func NewGrievanceID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("GRV-%s-%s", now.Format("20060102"), suffix)
}

// StatusHistory is one immutable stage transition. OldStatus is nil for the creation entry,
// ActorID is nil for system-originated transitions.
type StatusHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GrievanceID string    `gorm:"not null;index;size:64" json:"grievance_id"`
	OldStatus   *string   `json:"old_status"`
	NewStatus   string    `gorm:"not null" json:"new_status"`
	Note        string    `gorm:"type:text" json:"note"`
	ActorID     *uint     `json:"actor_id"`
	ActorKind   string    `gorm:"not null;default:system" json:"actor_kind"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	// AdminName is filled by joined reads only.
	AdminName string `gorm:"->;-:migration" json:"admin_name,omitempty"`
}

// TableName keeps the audit table singular.
func (StatusHistory) TableName() string {
	return "status_history"
}
