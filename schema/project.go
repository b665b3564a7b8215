package schema

// Project is one project dimension row, imported from the roster workbook.
type Project struct {
	ProjectID   string
	ProjectName string
	ProjectType string
	Status      string
}

// ProjectPersonRole assigns a person to a project for a date range.
// Allocation is the FTE fraction, 1.0 when the import left it blank.
type ProjectPersonRole struct {
	ProjectID   string
	EmployeeID  string
	ProjectRole string
	Allocation  float64
	StartAt     string // YYYY-MM-DD
	EndAt       string // YYYY-MM-DD, blank for open-ended
}

// ProjectRepo binds a repository to a project for a date range.
type ProjectRepo struct {
	ProjectID string
	RepoID    string
	StartAt   string
	EndAt     string
}

// ActiveIn reports whether a (StartAt, EndAt) range overlaps the window
// ending today: started by today and not ended before the window opened.
func rangeActive(startAt, endAt, today, since string) bool {
	if startAt > today {
		return false
	}
	return endAt == "" || endAt >= since
}

// ActiveIn reports whether the assignment is live for the given window.
func (r ProjectPersonRole) ActiveIn(today, since string) bool {
	return rangeActive(r.StartAt, r.EndAt, today, since)
}

// ActiveIn reports whether the binding is live for the given window.
func (r ProjectRepo) ActiveIn(today, since string) bool {
	return rangeActive(r.StartAt, r.EndAt, today, since)
}
