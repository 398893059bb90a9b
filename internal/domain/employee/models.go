package employee

import "time"

const (
	CollectionActive  = "employees"
	CollectionDeleted = "deletedEmployees"
)

// ValidCollection reports whether name is one of the two employee collections.
func ValidCollection(name string) bool {
	return name == CollectionActive || name == CollectionDeleted
}

type Schedule struct {
	Monday    string `json:"monday"`
	Tuesday   string `json:"tuesday"`
	Wednesday string `json:"wednesday"`
	Thursday  string `json:"thursday"`
	Friday    string `json:"friday"`
	Saturday  string `json:"saturday"`
	Sunday    string `json:"sunday"`
}

type Employee struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	LatinName    string   `json:"latinName"`
	Gender       string   `json:"gender"`
	DateOfBirth  string   `json:"dateOfBirth"`
	PlaceOfBirth string   `json:"placeOfBirth"`
	StudentID    string   `json:"studentId"`
	AcademicYear string   `json:"academicYear"`
	Generation   string   `json:"generation"`
	Group        string   `json:"group"`
	Class        string   `json:"class"`
	Skill        string   `json:"skill"`
	Section      string   `json:"section"`
	Position     string   `json:"position"`
	Telegram     string   `json:"telegram"`
	Image        string   `json:"image"`
	Schedule     Schedule `json:"schedule"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	DeletedAt    string   `json:"deletedAt,omitempty"`

	// OriginalData is the stored document the record was projected from.
	// It is shared with the snapshot and must not be modified.
	OriginalData map[string]any `json:"-"`
}

// Field returns the value of a local attribute, or "" for unknown names.
func (e Employee) Field(name string) string {
	if name == "id" {
		return e.ID
	}
	f, ok := fieldIndex[name]
	if !ok {
		return ""
	}
	return *f.ref(&e)
}

// DeletedTime parses DeletedAt; the zero time is returned when it is unset
// or malformed.
func (e Employee) DeletedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.DeletedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Snapshot is a projected copy of one employee collection. Digest identifies
// the stored contents across processes.
type Snapshot struct {
	Collection string     `json:"collection"`
	Version    uint64     `json:"version"`
	Digest     string     `json:"-"`
	Employees  []Employee `json:"employees"`
}
