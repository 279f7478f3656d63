package curriculum_test

import (
	"testing"

	"github.com/unichart/unichart/internal/curriculum"
)

func TestValidateTemplate_OK(t *testing.T) {
	if err := curriculum.ValidateTemplate(testTemplate()); err != nil {
		t.Errorf("ValidateTemplate() error = %v, want nil", err)
	}
}

func TestValidateTemplate_ToleratesDanglingPrerequisite(t *testing.T) {
	tmpl := testTemplate()
	tmpl.Groups[0].Courses[0].Prerequisites = []string{"not-in-template"}

	if err := curriculum.ValidateTemplate(tmpl); err != nil {
		t.Errorf("ValidateTemplate() error = %v, want nil for dangling prerequisite", err)
	}
}

func TestValidateTemplate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*curriculum.Template)
	}{
		{"nil id", func(tmpl *curriculum.Template) { tmpl.ID = "" }},
		{"empty title", func(tmpl *curriculum.Template) { tmpl.Title = "" }},
		{"duplicate group id", func(tmpl *curriculum.Template) { tmpl.Groups[1].ID = "core" }},
		{"duplicate course id across groups", func(tmpl *curriculum.Template) {
			tmpl.Groups[1].Courses[0].ID = "A"
		}},
		{"duplicate course title case-folded", func(tmpl *curriculum.Template) {
			tmpl.Groups[1].Courses[0].Title = "ALGORITHMS"
		}},
		{"self prerequisite", func(tmpl *curriculum.Template) {
			tmpl.Groups[0].Courses[0].Prerequisites = []string{"A"}
		}},
		{"self corequisite", func(tmpl *curriculum.Template) {
			tmpl.Groups[0].Courses[0].Corequisites = []string{"A"}
		}},
		{"zero units", func(tmpl *curriculum.Template) { tmpl.Groups[0].Courses[0].Units = 0 }},
		{"negative required units", func(tmpl *curriculum.Template) { tmpl.Groups[0].RequiredUnits = -1 }},
		{"overflow target is self", func(tmpl *curriculum.Template) {
			tmpl.Groups[0].OverflowTargetGroupID = "core"
		}},
		{"overflow target unknown", func(tmpl *curriculum.Template) {
			tmpl.Groups[1].OverflowTargetGroupID = "missing"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := testTemplate()
			tt.mutate(tmpl)
			if err := curriculum.ValidateTemplate(tmpl); err == nil {
				t.Error("ValidateTemplate() error = nil, want error")
			}
		})
	}
}
