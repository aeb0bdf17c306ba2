package models

import "strings"

// Department names form the closed vocabulary every grievance is routed into.
const (
	DeptPublicHealth   = "Public Health Department"
	DeptEducation      = "Education Department"
	DeptRoads          = "Roads & Infrastructure Department"
	DeptPolice         = "Police & Public Safety Department"
	DeptWater          = "Water Supply & Sanitation Department"
	DeptElectricity    = "Electricity Department"
	DeptMunicipalAdmin = "Municipal Administration Department"
	DeptOther          = "Other"
)

// DefaultDepartment отримує скарги, які не вдалося класифікувати.
const DefaultDepartment = DeptOther

// DepartmentCatalog is the seed data for the departments table, in display order.
var DepartmentCatalog = []Department{
	{Name: DeptPublicHealth, Description: "Hospitals, clinics, disease control, food safety and sanitation inspections"},
	{Name: DeptEducation, Description: "Government schools, teachers, scholarships and mid-day meals"},
	{Name: DeptRoads, Description: "Roads, potholes, bridges, footpaths, street lights and public buildings"},
	{Name: DeptPolice, Description: "Law and order, theft, harassment, traffic and public safety"},
	{Name: DeptWater, Description: "Drinking water supply, drainage, sewage and garbage collection"},
	{Name: DeptElectricity, Description: "Power cuts, transformers, meters and electricity billing"},
	{Name: DeptMunicipalAdmin, Description: "Certificates, property tax, licences and general civic services"},
	{Name: DeptOther, Description: "Grievances that do not fit any other department"},
}

// DepartmentNames повертає назви департаментів у порядку каталогу.
func DepartmentNames() []string {
	names := make([]string, 0, len(DepartmentCatalog))
	for _, d := range DepartmentCatalog {
		names = append(names, d.Name)
	}
	return names
}

// IsDepartment reports whether name is an exact member of the department vocabulary.
func IsDepartment(name string) bool {
	for _, d := range DepartmentCatalog {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Status stages in lifecycle order.
const (
	StatusPending     = "Pending"
	StatusUnderReview = "Under Review"
	StatusInProcess   = "In Process"
	StatusOnHold      = "On Hold"
	StatusResolved    = "Resolved"
	StatusClosed      = "Closed"
)

// StatusStages is the fixed ordered stage list. The first entry is the initial stage.
var StatusStages = []string{
	StatusPending,
	StatusUnderReview,
	StatusInProcess,
	StatusOnHold,
	StatusResolved,
	StatusClosed,
}

// InitialStatus is assigned to every new grievance.
var InitialStatus = StatusStages[0]

// IsStatus перевіряє, чи належить статус до фіксованого списку етапів.
func IsStatus(status string) bool {
	return StageIndex(status) >= 0
}

// StageIndex returns the position of status in StatusStages, or -1.
func StageIndex(status string) int {
	for i, s := range StatusStages {
		if s == status {
			return i
		}
	}
	return -1
}

// Priority labels.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Priorities in rank order, most urgent first.
var Priorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

// IsPriority reports whether p is one of the three priority labels.
func IsPriority(p string) bool {
	switch strings.ToLower(p) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Actor kinds for status history entries.
const (
	ActorSystem = "system"
	ActorAdmin  = "admin"
)

// Submission sources.
const (
	SourceWeb      = "web"
	SourceWhatsApp = "whatsapp"
	SourceTelegram = "telegram"
)
