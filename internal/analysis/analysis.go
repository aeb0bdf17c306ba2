// Package analysis builds the admin dashboard from grouped counters and grievance lists.
// Everything here is pure so that it can be tested without a database.
package analysis

import (
	"strings"
	"time"

	"grievance/backend/internal/config"
	"grievance/backend/internal/models"
	"grievance/backend/internal/storage"
)

// PriorityRank returns the sort rank of a priority (high first).
// Unknown priorities sort after every known one.
func PriorityRank(priority string) int {
	if rank, ok := config.PriorityRanks[strings.ToLower(priority)]; ok {
		return rank
	}
	return len(config.PriorityRanks)
}

// NameValue is one slice of the priority pie chart.
type NameValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// DeptCount is one bar of the department chart.
type DeptCount struct {
	Dept  string `json:"dept"`
	Count int64  `json:"count"`
}

// DayCount is one point of the weekly trend line.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Dashboard is the payload of the admin dashboard stats endpoint.
type Dashboard struct {
	Department   string             `json:"department"`
	Total        int64              `json:"total"`
	PriorityData []NameValue        `json:"priorityData"`
	DeptData     []DeptCount        `json:"deptData"`
	TrendData    []DayCount         `json:"trendData"`
	StatusCounts map[string]int64   `json:"statusCounts"`
	Grievances   []models.Grievance `json:"grievances"`
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// BuildDashboard assembles the dashboard for one department. The trend covers grievances
// created in the seven days up to now, bucketed by weekday Mon..Sun.
func BuildDashboard(department string, counts *storage.Counts, grievances []models.Grievance, now time.Time) Dashboard {
	d := Dashboard{
		Department:   department,
		StatusCounts: make(map[string]int64, len(models.StatusStages)),
		Grievances:   grievances,
	}
	if d.Grievances == nil {
		d.Grievances = []models.Grievance{}
	}

	// 1. Пріоритети у фіксованому порядку, включно з нулями
	for _, p := range models.Priorities {
		var n int64
		if counts != nil {
			n = counts.ByPriority[p]
		}
		d.PriorityData = append(d.PriorityData, NameValue{Name: strings.ToUpper(p[:1]) + p[1:], Value: n})
	}

	// 2. Департаменти в порядку каталогу
	for _, name := range models.DepartmentNames() {
		var n int64
		if counts != nil {
			n = counts.ByDepartment[name]
		}
		d.DeptData = append(d.DeptData, DeptCount{Dept: name, Count: n})
	}

	// 3. Статуси
	for _, s := range models.StatusStages {
		var n int64
		if counts != nil {
			n = counts.ByStatus[s]
		}
		d.StatusCounts[s] = n
	}
	if counts != nil {
		d.Total = counts.Total
	}

	d.TrendData = WeeklyTrend(grievances, now)
	return d
}

// WeeklyTrend counts grievances created in the seven calendar days ending today
// (midnight six days back in now's location) by weekday.
func WeeklyTrend(grievances []models.Grievance, now time.Time) []DayCount {
	byDay := make(map[time.Weekday]int64, 7)
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -6)
	for _, g := range grievances {
		if g.CreatedAt.Before(start) || g.CreatedAt.After(now) {
			continue
		}
		byDay[g.CreatedAt.In(now.Location()).Weekday()]++
	}

	out := make([]DayCount, 0, len(weekdays))
	for _, wd := range weekdays {
		out = append(out, DayCount{Day: wd.String()[:3], Count: byDay[wd]})
	}
	return out
}
