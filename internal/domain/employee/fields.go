package employee

// Kind decides how a field is compared and validated.
type Kind int

const (
	KindText Kind = iota
	KindIdentifier
	KindName
	KindEnum
	KindOption
)

// Field maps one local attribute to its place in the stored document.
type Field struct {
	Name     string
	Wire     string
	Label    string
	Kind     Kind
	Category string
	Values   []string
	ref      func(*Employee) *string
}

// Days lists the weekday schedule slots in display order.
var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

const scheduleKey = "schedule"

var Fields = []Field{
	{Name: "name", Wire: "name", Label: "Name", Kind: KindName, ref: func(e *Employee) *string { return &e.Name }},
	{Name: "latinName", Wire: "nameLatin", Label: "Latin Name", Kind: KindName, ref: func(e *Employee) *string { return &e.LatinName }},
	{Name: "gender", Wire: "gender", Label: "Gender", Kind: KindEnum, Values: []string{"Male", "Female"}, ref: func(e *Employee) *string { return &e.Gender }},
	{Name: "dateOfBirth", Wire: "dob", Label: "Date of Birth", ref: func(e *Employee) *string { return &e.DateOfBirth }},
	{Name: "placeOfBirth", Wire: "pob", Label: "Place of Birth", ref: func(e *Employee) *string { return &e.PlaceOfBirth }},
	{Name: "studentId", Wire: "studentId", Label: "Student ID", Kind: KindIdentifier, ref: func(e *Employee) *string { return &e.StudentID }},
	{Name: "academicYear", Wire: "academicYear", Label: "Academic Year", Kind: KindEnum, ref: func(e *Employee) *string { return &e.AcademicYear }},
	{Name: "generation", Wire: "generation", Label: "Generation", Kind: KindEnum, ref: func(e *Employee) *string { return &e.Generation }},
	{Name: "group", Wire: "group", Label: "Group", Kind: KindOption, Category: "groups", ref: func(e *Employee) *string { return &e.Group }},
	{Name: "class", Wire: "class", Label: "Class", Kind: KindOption, Category: "classes", ref: func(e *Employee) *string { return &e.Class }},
	{Name: "skill", Wire: "skill", Label: "Skill", Kind: KindOption, Category: "skills", ref: func(e *Employee) *string { return &e.Skill }},
	{Name: "section", Wire: "section", Label: "Section", Kind: KindOption, Category: "sections", ref: func(e *Employee) *string { return &e.Section }},
	{Name: "position", Wire: "position", Label: "Position", Kind: KindOption, Category: "positions", ref: func(e *Employee) *string { return &e.Position }},
	{Name: "telegram", Wire: "telegram", Label: "Telegram", ref: func(e *Employee) *string { return &e.Telegram }},
	{Name: "image", Wire: "imageUrl", Label: "Image", ref: func(e *Employee) *string { return &e.Image }},
	{Name: "monday", Wire: "monday", Label: "Monday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Monday }},
	{Name: "tuesday", Wire: "tuesday", Label: "Tuesday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Tuesday }},
	{Name: "wednesday", Wire: "wednesday", Label: "Wednesday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Wednesday }},
	{Name: "thursday", Wire: "thursday", Label: "Thursday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Thursday }},
	{Name: "friday", Wire: "friday", Label: "Friday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Friday }},
	{Name: "saturday", Wire: "saturday", Label: "Saturday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Saturday }},
	{Name: "sunday", Wire: "sunday", Label: "Sunday", Kind: KindOption, Category: "schedules", ref: func(e *Employee) *string { return &e.Schedule.Sunday }},
}

var fieldIndex = func() map[string]Field {
	index := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		index[f.Name] = f
	}
	return index
}()

// Lookup finds an editable field by its local name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// KindOf reports the comparison kind of a field, including the read-only id.
func KindOf(name string) Kind {
	if name == "id" {
		return KindIdentifier
	}
	if f, ok := fieldIndex[name]; ok {
		return f.Kind
	}
	return KindText
}

// IsDay reports whether the field is a weekday schedule slot.
func (f Field) IsDay() bool {
	return f.Kind == KindOption && f.Category == "schedules"
}

// WirePath is the slash separated location of the field inside a document.
func (f Field) WirePath() string {
	if f.IsDay() {
		return scheduleKey + "/" + f.Wire
	}
	return f.Wire
}
