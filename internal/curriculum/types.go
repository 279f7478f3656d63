// Package curriculum holds the curriculum domain model and the pure
// eligibility/progress computation engine.
package curriculum

// Course is a single course within a template.
type Course struct {
	ID            string   `json:"id" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	Units         int      `json:"units" yaml:"units"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Corequisites  []string `json:"corequisites,omitempty" yaml:"corequisites,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty"`
	Semester      int      `json:"semester,omitempty" yaml:"semester,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// CourseGroup is an ordered collection of courses with a unit requirement.
// Units earned beyond RequiredUnits may be credited to another group via
// OverflowTargetGroupID.
type CourseGroup struct {
	ID                    string   `json:"id" yaml:"id"`
	Title                 string   `json:"title" yaml:"title"`
	RequiredUnits         int      `json:"requiredUnits" yaml:"requiredUnits"`
	OverflowTargetGroupID string   `json:"overflowTargetGroupId,omitempty" yaml:"overflowTargetGroupId,omitempty"`
	Courses               []Course `json:"courses" yaml:"courses"`
}

// Template is the catalog definition of a curriculum, independent of any
// student's progress. Templates are immutable; edits produce a new version.
type Template struct {
	ID                 string        `json:"id" yaml:"id"`
	Title              string        `json:"title" yaml:"title"`
	University         string        `json:"university" yaml:"university"`
	TotalUnitsRequired int           `json:"totalUnitsRequired" yaml:"totalUnitsRequired"`
	Groups             []CourseGroup `json:"groups" yaml:"groups"`
}

// Courses returns all courses across all groups, in group order.
func (t *Template) Courses() []Course {
	if t == nil {
		return nil
	}
	var courses []Course
	for _, g := range t.Groups {
		courses = append(courses, g.Courses...)
	}
	return courses
}

// FindGroup returns the group with the given id.
func (t *Template) FindGroup(id string) (CourseGroup, bool) {
	if t == nil {
		return CourseGroup{}, false
	}
	for _, g := range t.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return CourseGroup{}, false
}

// FindCourse returns the course with the given id from any group.
func (t *Template) FindCourse(id string) (Course, bool) {
	if t == nil {
		return Course{}, false
	}
	for _, g := range t.Groups {
		for _, c := range g.Courses {
			if c.ID == id {
				return c, true
			}
		}
	}
	return Course{}, false
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	out.Groups = make([]CourseGroup, len(t.Groups))
	for i, g := range t.Groups {
		cg := g
		cg.Courses = make([]Course, len(g.Courses))
		for j, c := range g.Courses {
			cc := c
			cc.Prerequisites = append([]string(nil), c.Prerequisites...)
			cc.Corequisites = append([]string(nil), c.Corequisites...)
			cg.Courses[j] = cc
		}
		out.Groups[i] = cg
	}
	return &out
}

// PassedCourse records that a course was passed in a given term. At most
// one entry exists per course id within a Progress.
type PassedCourse struct {
	CourseID string  `json:"courseId"`
	Term     int     `json:"term"`
	Grade    float64 `json:"grade,omitempty"`
}

// Progress is a student's progress against one template. TemplateID is a
// weak reference; it is never validated against a loaded template here.
type Progress struct {
	TemplateID    string         `json:"templateId"`
	PassedCourses []PassedCourse `json:"passedCourses"`
}

// PassedIDs returns the set of passed course ids.
func (p Progress) PassedIDs() map[string]bool {
	ids := make(map[string]bool, len(p.PassedCourses))
	for _, pc := range p.PassedCourses {
		ids[pc.CourseID] = true
	}
	return ids
}

// Clone returns a deep copy of the progress.
func (p Progress) Clone() Progress {
	out := p
	out.PassedCourses = append([]PassedCourse(nil), p.PassedCourses...)
	if out.PassedCourses == nil {
		out.PassedCourses = []PassedCourse{}
	}
	return out
}

// AvailableCourse is a course annotated with availability information for
// a "what's blocking me" view.
type AvailableCourse struct {
	Course
	Reason               string   `json:"reason"`
	MissingPrerequisites []string `json:"missingPrerequisites,omitempty"`
}

// GroupProgress is the unit progress of one group. Passed includes
// single-hop overflow credited from other groups; Overflow is the excess
// earned directly in this group only.
type GroupProgress struct {
	Passed   int `json:"passed"`
	Required int `json:"required"`
	Overflow int `json:"overflow"`
}
