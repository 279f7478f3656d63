package curriculum

import "fmt"

// PrerequisitesMet reports whether every prerequisite of the course is in
// the passed-id set. A course with no prerequisites is always met.
// Corequisites never gate availability; they are informational only.
func PrerequisitesMet(c Course, passedIDs map[string]bool) bool {
	for _, id := range c.Prerequisites {
		if !passedIDs[id] {
			return false
		}
	}
	return true
}

// FullyAvailableCourses returns the courses the student can take now:
// not yet passed and all prerequisites satisfied. Input order is kept.
func FullyAvailableCourses(all []Course, passed []PassedCourse) []Course {
	passedIDs := Progress{PassedCourses: passed}.PassedIDs()

	var out []Course
	for _, c := range all {
		if passedIDs[c.ID] {
			continue
		}
		if PrerequisitesMet(c, passedIDs) {
			out = append(out, c)
		}
	}
	return out
}

// AvailableCourses returns every not-yet-passed course annotated with a
// human-readable reason and, when blocked, the prerequisite ids still
// missing. Input order is kept.
func AvailableCourses(all []Course, passed []PassedCourse) []AvailableCourse {
	passedIDs := Progress{PassedCourses: passed}.PassedIDs()

	var out []AvailableCourse
	for _, c := range all {
		if passedIDs[c.ID] {
			continue
		}

		var missing []string
		for _, id := range c.Prerequisites {
			if !passedIDs[id] {
				missing = append(missing, id)
			}
		}

		ac := AvailableCourse{Course: c}
		if len(missing) == 0 {
			ac.Reason = "all prerequisites passed"
		} else {
			ac.Reason = fmt.Sprintf("missing %d prerequisite(s)", len(missing))
			ac.MissingPrerequisites = missing
		}
		out = append(out, ac)
	}
	return out
}

// UnitsCompleted sums the units of courses whose id is in the passed set.
// Passed entries referencing unknown course ids contribute nothing.
func UnitsCompleted(courses []Course, passed []PassedCourse) int {
	passedIDs := Progress{PassedCourses: passed}.PassedIDs()

	total := 0
	for _, c := range courses {
		if passedIDs[c.ID] {
			total += c.Units
		}
	}
	return total
}

// UnitsByCategory sums passed units per course category. Categories with
// no passed units are absent from the result; callers default to zero.
func UnitsByCategory(courses []Course, passed []PassedCourse) map[string]int {
	passedIDs := Progress{PassedCourses: passed}.PassedIDs()

	units := make(map[string]int)
	for _, c := range courses {
		if passedIDs[c.ID] {
			units[c.Category] += c.Units
		}
	}
	return units
}

// ComputeGroupProgress returns the unit progress for one group. Passed is
// the group's own passed units plus overflow credited from every group
// whose overflow target is this group. Overflow redistribution is
// single-hop: a group can only pass on units earned directly within it,
// never units it received from elsewhere. An unknown group id yields the
// zero value.
func ComputeGroupProgress(t *Template, p Progress, groupID string) GroupProgress {
	group, ok := t.FindGroup(groupID)
	if !ok {
		return GroupProgress{}
	}

	passedIDs := p.PassedIDs()
	own := groupPassedUnits(group, passedIDs)

	incoming := 0
	for _, other := range t.Groups {
		if other.ID == groupID || other.OverflowTargetGroupID != groupID {
			continue
		}
		otherOwn := groupPassedUnits(other, passedIDs)
		if otherOwn > other.RequiredUnits {
			incoming += otherOwn - other.RequiredUnits
		}
	}

	gp := GroupProgress{
		Passed:   own + incoming,
		Required: group.RequiredUnits,
	}
	if own > group.RequiredUnits {
		gp.Overflow = own - group.RequiredUnits
	}
	return gp
}

func groupPassedUnits(g CourseGroup, passedIDs map[string]bool) int {
	units := 0
	for _, c := range g.Courses {
		if passedIDs[c.ID] {
			units += c.Units
		}
	}
	return units
}

// CompletionPercent converts passed/required units to a percentage
// clamped to [0, 100]. A zero requirement counts as complete once any
// units are passed.
func CompletionPercent(passed, required int) int {
	if required <= 0 {
		if passed > 0 {
			return 100
		}
		return 0
	}
	pct := passed * 100 / required
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
