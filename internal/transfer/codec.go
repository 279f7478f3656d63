package transfer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/unichart/unichart/internal/curriculum"
)

// DecodeTemplate parses and validates a user-supplied template file.
// Nothing is returned on failure, so a bad file can never half-apply.
func DecodeTemplate(data []byte) (*curriculum.Template, error) {
	if err := validate(templateSchema, data); err != nil {
		return nil, err
	}

	var tmpl curriculum.Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &tmpl, nil
}

// DecodeProgress parses and validates a user-supplied progress file and
// checks it targets the given template id. ErrTemplateMismatch is
// returned (wrapped) when it does not.
func DecodeProgress(data []byte, wantTemplateID string) (*curriculum.Progress, error) {
	if err := validate(progressSchema, data); err != nil {
		return nil, err
	}

	var p curriculum.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}

	if p.TemplateID != wantTemplateID {
		return nil, fmt.Errorf("%w: file has %q, current template is %q",
			ErrTemplateMismatch, p.TemplateID, wantTemplateID)
	}
	return &p, nil
}

// EncodeTemplate serializes a template as indented JSON for download.
func EncodeTemplate(t *curriculum.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// EncodeProgress serializes progress as indented JSON for download.
func EncodeProgress(p curriculum.Progress) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// TemplateFilename returns the deterministic download name for a
// template, stamped with its id.
func TemplateFilename(t *curriculum.Template) string {
	return t.ID + ".json"
}

// ProgressFilename returns the deterministic download name for a
// progress export, stamped with the date.
func ProgressFilename(now time.Time) string {
	return "unichart-progress-" + now.Format("2006-01-02") + ".json"
}

// WorkbookFilename returns the download name for the spreadsheet export.
func WorkbookFilename(now time.Time) string {
	return "unichart-progress-" + now.Format("2006-01-02") + ".xlsx"
}
