package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/unichart/unichart/internal/catalog"
	"github.com/unichart/unichart/internal/curriculum"
	"github.com/unichart/unichart/internal/tracker"
)

func testTemplate() *curriculum.Template {
	return &curriculum.Template{
		ID:                 "cs",
		Title:              "Computer Science",
		University:         "Test University",
		TotalUnitsRequired: 18,
		Groups: []curriculum.CourseGroup{
			{
				ID:            "core",
				Title:         "Core",
				RequiredUnits: 12,
				Courses: []curriculum.Course{
					{ID: "A", Title: "Algorithms", Units: 4},
					{ID: "B", Title: "Databases", Units: 4, Prerequisites: []string{"A"}},
				},
			},
			{
				ID:                    "elective",
				Title:                 "Electives",
				RequiredUnits:         6,
				OverflowTargetGroupID: "core",
				Courses: []curriculum.Course{
					{ID: "D", Title: "Graphics", Units: 4},
					{ID: "E", Title: "Robotics", Units: 4},
				},
			},
		},
	}
}

type stubCatalog struct {
	templates map[string]*curriculum.Template
}

func (s *stubCatalog) Template(ctx context.Context, id string) (*curriculum.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (s *stubCatalog) Registry(ctx context.Context) ([]catalog.RegistryEntry, error) {
	var reg []catalog.RegistryEntry
	for _, t := range s.templates {
		reg = append(reg, catalog.RegistryEntry{ID: t.ID, Title: t.Title, University: t.University})
	}
	return reg, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := &stubCatalog{templates: map[string]*curriculum.Template{"cs": testTemplate()}}
	store := tracker.NewStore(t.Context(), tracker.Config{
		Source: cat,
		State:  tracker.NewMemoryStateStore(),
	})

	srv := httptest.NewServer(newAPI(store, cat, slog.Default()).routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s response: %v", url, err)
		}
	}
	return resp
}

func loadTemplate(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/template/load", fmt.Sprintf(`{"id":%q}`, id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("template load status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestLoadTemplate_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/template/load", `{"id":"missing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProgressFlow(t *testing.T) {
	srv := newTestServer(t)
	loadTemplate(t, srv, "cs")

	// Pass both electives: 8 units against a requirement of 6.
	for _, id := range []string{"D", "E"} {
		resp := postJSON(t, srv.URL+"/api/course/"+id+"/toggle", `{"term":1}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("toggle status = %d, want 200", resp.StatusCode)
		}
	}

	var view struct {
		UnitsCompleted int `json:"unitsCompleted"`
		Groups         []struct {
			ID       string `json:"id"`
			Passed   int    `json:"passed"`
			Required int    `json:"required"`
			Overflow int    `json:"overflow"`
		} `json:"groups"`
		AvailableCourses []struct {
			ID string `json:"id"`
		} `json:"availableCourses"`
	}
	getJSON(t, srv.URL+"/api/progress", &view)

	if view.UnitsCompleted != 8 {
		t.Errorf("unitsCompleted = %d, want 8", view.UnitsCompleted)
	}
	for _, g := range view.Groups {
		switch g.ID {
		case "elective":
			if g.Passed != 8 || g.Overflow != 2 {
				t.Errorf("elective = %+v, want passed 8 overflow 2", g)
			}
		case "core":
			if g.Passed != 2 || g.Overflow != 0 {
				t.Errorf("core = %+v, want passed 2 overflow 0", g)
			}
		}
	}

	// Reset keeps the template but clears progress.
	resp := postJSON(t, srv.URL+"/api/progress/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", resp.StatusCode)
	}
	getJSON(t, srv.URL+"/api/progress", &view)
	if view.UnitsCompleted != 0 {
		t.Errorf("unitsCompleted after reset = %d, want 0", view.UnitsCompleted)
	}
}

func TestProgress_NoTemplate(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/progress", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSaveTemplate(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(testTemplate())
	if err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, srv.URL+"/api/template/save", string(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save status = %d, want 201", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID != "cs.v1" {
		t.Errorf("created id = %q, want cs.v1", created.ID)
	}
}

func TestSaveTemplate_DuplicateTitleRejected(t *testing.T) {
	srv := newTestServer(t)

	tmpl := testTemplate()
	tmpl.Groups[1].Courses[0].Title = "Algorithms" // collides with core group
	body, err := json.Marshal(tmpl)
	if err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, srv.URL+"/api/template/save", string(body))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("save status = %d, want 422", resp.StatusCode)
	}

	// Rejected before any mutation: no custom template was created.
	var snap tracker.Snapshot
	getJSON(t, srv.URL+"/api/snapshot", &snap)
	if len(snap.CustomTemplates) != 0 {
		t.Errorf("custom templates = %d, want 0 after rejected save", len(snap.CustomTemplates))
	}
}

func TestImportTemplate_Malformed(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/template/import", `{"title":"no id"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestImportProgress(t *testing.T) {
	srv := newTestServer(t)
	loadTemplate(t, srv, "cs")

	resp := postJSON(t, srv.URL+"/api/progress/import",
		`{"templateId":"cs","passedCourses":[{"courseId":"A","term":1}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d, want 200", resp.StatusCode)
	}

	var view struct {
		UnitsCompleted int `json:"unitsCompleted"`
	}
	getJSON(t, srv.URL+"/api/progress", &view)
	if view.UnitsCompleted != 4 {
		t.Errorf("unitsCompleted = %d, want 4", view.UnitsCompleted)
	}
}

func TestImportProgress_TemplateMismatch(t *testing.T) {
	srv := newTestServer(t)
	loadTemplate(t, srv, "cs")

	resp := postJSON(t, srv.URL+"/api/course/A/toggle", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatal("toggle failed")
	}

	resp = postJSON(t, srv.URL+"/api/progress/import", `{"templateId":"ee","passedCourses":[]}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}

	// State untouched by the rejected import.
	var snap tracker.Snapshot
	getJSON(t, srv.URL+"/api/snapshot", &snap)
	if len(snap.Progress.PassedCourses) != 1 {
		t.Errorf("passed courses = %d, want 1", len(snap.Progress.PassedCourses))
	}
}

func TestExports(t *testing.T) {
	srv := newTestServer(t)
	loadTemplate(t, srv, "cs")

	resp := getJSON(t, srv.URL+"/api/export/template", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("template export status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "cs.json") {
		t.Errorf("Content-Disposition = %q, want id-stamped filename", cd)
	}

	resp = getJSON(t, srv.URL+"/api/export/progress", nil)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "unichart-progress-") {
		t.Errorf("Content-Disposition = %q, want date-stamped filename", cd)
	}

	resp = getJSON(t, srv.URL+"/api/export/progress.xlsx", nil)
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want xlsx", ct)
	}
}

func TestWebsocketStream(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.CloseNow()

	// Initial snapshot arrives on connect.
	var snap tracker.Snapshot
	if err := wsjson.Read(ctx, conn, &snap); err != nil {
		t.Fatalf("reading initial snapshot: %v", err)
	}
	if snap.Template != nil {
		t.Error("initial snapshot should have no template")
	}

	loadTemplate(t, srv, "cs")

	// The load emits snapshots; drain until the template shows up.
	for snap.Template == nil {
		if err := wsjson.Read(ctx, conn, &snap); err != nil {
			t.Fatalf("reading snapshot: %v", err)
		}
	}
	if snap.Template.ID != "cs" {
		t.Errorf("streamed template = %q, want cs", snap.Template.ID)
	}
}
