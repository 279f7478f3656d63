package curriculum

import (
	"fmt"

	"golang.org/x/text/cases"
)

// ValidateTemplate checks the structural invariants a template must hold
// before it may be saved or imported: non-empty ids, positive units, no
// duplicate course ids or titles across groups, no self-referential
// prerequisites/corequisites, and overflow targets that resolve to a
// different existing group. Prerequisite ids referencing courses absent
// from the template are tolerated; they only lose their display name.
func ValidateTemplate(t *Template) error {
	if t == nil {
		return fmt.Errorf("template is nil")
	}
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("template title is required")
	}

	groupIDs := make(map[string]bool, len(t.Groups))
	for _, g := range t.Groups {
		if g.ID == "" {
			return fmt.Errorf("group id is required")
		}
		if groupIDs[g.ID] {
			return fmt.Errorf("duplicate group id: %s", g.ID)
		}
		groupIDs[g.ID] = true
		if g.RequiredUnits < 0 {
			return fmt.Errorf("group %s: required units must not be negative", g.ID)
		}
	}

	for _, g := range t.Groups {
		if g.OverflowTargetGroupID == "" {
			continue
		}
		if g.OverflowTargetGroupID == g.ID {
			return fmt.Errorf("group %s: overflow target must be another group", g.ID)
		}
		if !groupIDs[g.OverflowTargetGroupID] {
			return fmt.Errorf("group %s: unknown overflow target group: %s", g.ID, g.OverflowTargetGroupID)
		}
	}

	// Course titles are folded so ids that differ only in letter case are
	// still treated as the same course.
	fold := cases.Fold()
	courseIDs := make(map[string]bool)
	courseTitles := make(map[string]string)
	for _, g := range t.Groups {
		for _, c := range g.Courses {
			if c.ID == "" {
				return fmt.Errorf("group %s: course id is required", g.ID)
			}
			if courseIDs[c.ID] {
				return fmt.Errorf("duplicate course id: %s", c.ID)
			}
			courseIDs[c.ID] = true

			if c.Title != "" {
				key := fold.String(c.Title)
				if prev, ok := courseTitles[key]; ok {
					return fmt.Errorf("duplicate course title: %q (also used by %s)", c.Title, prev)
				}
				courseTitles[key] = c.ID
			}

			if c.Units <= 0 {
				return fmt.Errorf("course %s: units must be positive", c.ID)
			}
			for _, id := range c.Prerequisites {
				if id == c.ID {
					return fmt.Errorf("course %s: cannot be its own prerequisite", c.ID)
				}
			}
			for _, id := range c.Corequisites {
				if id == c.ID {
					return fmt.Errorf("course %s: cannot be its own corequisite", c.ID)
				}
			}
		}
	}

	return nil
}
