package schema

// EnrichmentRow is one HR-imported attribute row keyed by member_key.
// Several rows may describe the same person (one per hosting identity).
type EnrichmentRow struct {
	MemberKey            string
	Username             string
	Email                string
	FullName             string
	EmployeeID           string
	Role                 string
	EmployeeType         string
	Position             string
	InDate               string
	Gender               string
	Age                  float64
	YearsOfService       float64
	JobSequence          string
	JobRank              string
	LineManager          string
	EducationLevel       string
	College              string
	Major                string
	DepartmentLevel1Name string
	DepartmentLevel2ID   string
	DepartmentLevel2Name string
	DepartmentLevel3ID   string
	DepartmentLevel3Name string
}

// Employee is one roster row: an enrichment row that has both a full name
// and an employee id, with the cross-identity keys resolved.
type Employee struct {
	EnrichmentRow

	// PersonID is the canonical analytics key: employee_id when present,
	// otherwise the member_key.
	PersonID string

	// OneID groups identities that belong to one person before an
	// employee_id is known: employee_id, else uid:<user_id>, else
	// mk:<member_key>.
	OneID string
}

// Identity binds one normalized (kind, value) identity to an employee id.
// A normalized value maps to at most one employee id; conflicting imports
// are rejected.
type Identity struct {
	Kind       string // "email" or "username"
	Value      string // normalized (lowercased) identity value
	EmployeeID string
}

// Identity kinds.
const (
	IdentityKindEmail    = "email"
	IdentityKindUsername = "username"
)

// PersonAggregate holds the per-person window aggregates that feed both the
// suspicion scorer and the composite score engine. Ratio pointers are nil
// when the denominator was zero.
type PersonAggregate struct {
	PersonID             string
	EmployeeID           string
	FullName             string
	DepartmentLevel2Name string
	DepartmentLevel3Name string
	Role                 string
	LineManager          string

	CommitCount               int64
	RepoCount                 int64
	TotalChangedLines         int64
	TotalWeightedChangedLines float64

	ChangedLinesPerCommit         float64
	WeightedChangedLinesPerCommit float64
	MedianChangedLines            float64
	MedianWeightedChangedLines    float64

	AfterHoursCommitCount int64
	AfterHoursRatio       float64

	P0Zero       float64
	P2Tiny       float64
	P10Small     float64
	PBalanceHigh float64

	Top1RepoID          string
	Top1RepoShare       float64
	Top1RepoPersonCnt   int64
	Top1RepoCommitTotal int64
	Top1RepoIsCore      bool

	MaxCommits10m int64
	MaxCommits1h  int64

	MsgTotal            int64
	MsgUnique           int64
	MsgTop1Cnt          int64
	MessageUniqueRatio  *float64
	Top1MessageShare    *float64
	ShortMessageRatio   float64
	GenericMessageRatio float64

	MedianInterCommitSeconds *float64
}
