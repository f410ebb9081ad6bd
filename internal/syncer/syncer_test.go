package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/confluence"
	"github.com/starford/ansuz/internal/testutil"
)

type call struct {
	method string
	args   []string
}

// fakeAPI serves pages from in-memory maps and records every call so tests
// can assert on the exact remote traffic. The mutex covers watcher tests,
// which publish from a separate goroutine while the test polls.
type fakeAPI struct {
	mu      sync.Mutex
	byID    map[string]*confluence.Page
	byTitle map[string]*confluence.Page
	calls   []call
	nextID  int

	findErr   error
	updateErr error
	uploadErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		byID:    map[string]*confluence.Page{},
		byTitle: map[string]*confluence.Page{},
		nextID:  100,
	}
}

func (f *fakeAPI) GetPage(_ context.Context, pageID string) (*confluence.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "GetPage", args: []string{pageID}})
	page, ok := f.byID[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, apperr.ErrNotFound)
	}
	return page, nil
}

func (f *fakeAPI) FindPageByTitle(_ context.Context, spaceKey, title string) (*confluence.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "FindPageByTitle", args: []string{spaceKey, title}})
	if f.findErr != nil {
		return nil, f.findErr
	}
	page, ok := f.byTitle[title]
	if !ok {
		return nil, fmt.Errorf("page %q: %w", title, apperr.ErrNotFound)
	}
	return page, nil
}

func (f *fakeAPI) CreatePage(_ context.Context, spaceKey, title, storageValue, parentID string) (*confluence.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "CreatePage", args: []string{spaceKey, title, storageValue, parentID}})
	f.nextID++
	page := &confluence.Page{
		ID:      fmt.Sprintf("%d", f.nextID),
		Title:   title,
		Version: &confluence.Version{Number: 1},
	}
	f.byID[page.ID] = page
	f.byTitle[title] = page
	return page, nil
}

func (f *fakeAPI) UpdatePage(_ context.Context, pageID, title, storageValue string, currentVersion int) (*confluence.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "UpdatePage", args: []string{pageID, title, storageValue, fmt.Sprintf("%d", currentVersion)}})
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &confluence.Page{
		ID:      pageID,
		Title:   title,
		Version: &confluence.Version{Number: currentVersion + 1},
	}, nil
}

func (f *fakeAPI) UploadAttachment(_ context.Context, pageID, filePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "UploadAttachment", args: []string{pageID, filePath}})
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return filePath, nil
}

func (f *fakeAPI) calledMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		names = append(names, c.method)
	}
	return names
}

func (f *fakeAPI) countCalls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSyncer(t *testing.T, api API) (*Syncer, string) {
	t.Helper()
	docsDir, store := testutil.TestDocs(t)
	s := New(store, api, Defaults{SpaceKey: "DOCS", ParentID: "777"}, testLogger())
	return s, docsDir
}

func TestSyncFile_CreatesNewPage(t *testing.T) {
	api := newFakeAPI()
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "intro.md", "---\nconfluence_title: \"Intro\"\n---\n# Hello\n\nWorld\n")

	res := s.SyncFile(context.Background(), "intro.md")
	if res.Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
	}
	if res.Title != "Intro" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Version != 1 {
		t.Errorf("version = %d, want 1", res.Version)
	}

	want := []string{"FindPageByTitle", "CreatePage"}
	if got := api.calledMethods(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	created := api.calls[1]
	if created.args[0] != "DOCS" || created.args[3] != "777" {
		t.Errorf("create args = %v, want default space and parent", created.args)
	}
	if created.args[2] != "<h1>Hello</h1>\n<p>World</p>" {
		t.Errorf("storage value = %q", created.args[2])
	}
}

func TestSyncFile_FrontmatterOverridesDefaults(t *testing.T) {
	api := newFakeAPI()
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "ops.md",
		"---\nconfluence_title: \"Runbook\"\nconfluence_space_key: OPS\nconfluence_parent_id: \"42\"\n---\nbody\n")

	res := s.SyncFile(context.Background(), "ops.md")
	if res.Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
	}
	created := api.calls[1]
	if created.args[0] != "OPS" || created.args[3] != "42" {
		t.Errorf("create args = %v, want overridden space and parent", created.args)
	}
}

func TestSyncFile_TitleFallsBackToFilename(t *testing.T) {
	api := newFakeAPI()
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "release-notes.md", "no front matter here\n")

	res := s.SyncFile(context.Background(), "release-notes.md")
	if res.Title != "release-notes" {
		t.Errorf("title = %q, want filename stem", res.Title)
	}
}

func TestSyncFile_UpdatesOnTitleMatch(t *testing.T) {
	api := newFakeAPI()
	api.byTitle["Intro"] = &confluence.Page{
		ID:      "42",
		Title:   "Intro",
		Version: &confluence.Version{Number: 3},
	}
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "intro.md", "---\nconfluence_title: \"Intro\"\n---\nbody\n")

	res := s.SyncFile(context.Background(), "intro.md")
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
	}
	if res.PageID != "42" || res.Version != 4 {
		t.Errorf("page %s v%d, want 42 v4", res.PageID, res.Version)
	}

	want := []string{"FindPageByTitle", "UpdatePage"}
	if got := api.calledMethods(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if sent := api.calls[1].args[3]; sent != "3" {
		t.Errorf("current version sent = %s, want 3", sent)
	}
}

func TestSyncFile_ExplicitIDUpdates(t *testing.T) {
	api := newFakeAPI()
	api.byID["9000"] = &confluence.Page{
		ID:      "9000",
		Title:   "Old Title",
		Version: &confluence.Version{Number: 11},
	}
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "pinned.md",
		"---\nconfluence_page_id: \"9000\"\nconfluence_title: \"Pinned\"\n---\nbody\n")

	res := s.SyncFile(context.Background(), "pinned.md")
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
	}
	if res.Version != 12 {
		t.Errorf("version = %d, want 12", res.Version)
	}

	want := []string{"GetPage", "UpdatePage"}
	if got := api.calledMethods(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestSyncFile_ExplicitIDNotFoundSkipsWithoutCreating(t *testing.T) {
	api := newFakeAPI()
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "gone.md",
		"---\nconfluence_page_id: \"404404\"\n---\nbody\n")

	res := s.SyncFile(context.Background(), "gone.md")
	if res.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", res.Outcome)
	}
	for _, c := range api.calls {
		if c.method == "CreatePage" {
			t.Error("a stale page id must never fall back to create")
		}
	}
}

func TestSyncFile_CreateWithImagesUploadsThenRepublishes(t *testing.T) {
	api := newFakeAPI()
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "images/shot.png", "png-bytes")
	testutil.WriteDoc(t, docsDir, "guide.md",
		"---\nconfluence_title: \"Guide\"\n---\n![screen](images/shot.png)\n")

	res := s.SyncFile(context.Background(), "guide.md")
	if res.Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
	}
	if res.Version != 2 {
		t.Errorf("version = %d, want 2 after the republish", res.Version)
	}

	want := []string{"FindPageByTitle", "CreatePage", "UploadAttachment", "UpdatePage"}
	if got := api.calledMethods(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestSyncFile_UploadFailureMarksFailed(t *testing.T) {
	api := newFakeAPI()
	api.uploadErr = errors.New("attachment rejected")
	api.byTitle["Guide"] = &confluence.Page{
		ID:      "7",
		Title:   "Guide",
		Version: &confluence.Version{Number: 1},
	}
	s, docsDir := newTestSyncer(t, api)
	testutil.WriteDoc(t, docsDir, "images/shot.png", "png-bytes")
	testutil.WriteDoc(t, docsDir, "guide.md",
		"---\nconfluence_title: \"Guide\"\n---\n![screen](images/shot.png)\n")

	res := s.SyncFile(context.Background(), "guide.md")
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
	if res.Err == nil {
		t.Error("expected the upload error on the result")
	}
}

func TestRun_FailureDoesNotStopRun(t *testing.T) {
	api := newFakeAPI()
	api.findErr = errors.New("search unavailable")
	docsDir, store := testutil.TestDocs(t)
	testutil.WriteDoc(t, docsDir, "a.md", "first\n")
	testutil.WriteDoc(t, docsDir, "b.md", "second\n")
	s := New(store, api, Defaults{SpaceKey: "DOCS"}, testLogger())

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 2 || summary.Total() != 2 {
		t.Errorf("summary = %+v, want both documents failed", summary)
	}
	if summary.OK() {
		t.Error("a run with failures must not report OK")
	}
}

func TestRun_EmptyDirIsOK(t *testing.T) {
	api := newFakeAPI()
	_, store := testutil.TestDocs(t)
	s := New(store, api, Defaults{SpaceKey: "DOCS"}, testLogger())

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total() != 0 || !summary.OK() {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_RecordsJournal(t *testing.T) {
	api := newFakeAPI()
	docsDir, store := testutil.TestDocs(t)
	testutil.WriteDoc(t, docsDir, "intro.md", "---\nconfluence_title: \"Intro\"\n---\nbody\n")
	db := testutil.TestJournal(t)
	s := New(store, api, Defaults{SpaceKey: "DOCS"}, testLogger())
	s.AttachJournal(db)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := db.RecentRuns(5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Created != 1 || runs[0].Failed != 0 {
		t.Errorf("run = %+v", runs[0])
	}

	records, err := db.RunResults(runs[0].ID)
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(records) != 1 || records[0].Path != "intro.md" || records[0].Outcome != "created" {
		t.Errorf("records = %+v", records)
	}
}

func TestContentChanged(t *testing.T) {
	cs, changed := contentChanged("", []byte("hello"))
	if !changed || cs == "" {
		t.Errorf("first sight should report a change, got %q %v", cs, changed)
	}
	if _, changed := contentChanged(cs, []byte("hello")); changed {
		t.Error("identical content should not report a change")
	}
	if _, changed := contentChanged(cs, []byte("hello!")); !changed {
		t.Error("modified content should report a change")
	}
}

func TestSummary_OutcomeCounting(t *testing.T) {
	s := &Summary{}
	s.add(Result{Outcome: OutcomeCreated})
	s.add(Result{Outcome: OutcomeUpdated})
	s.add(Result{Outcome: OutcomeSkipped})
	s.add(Result{Outcome: OutcomeFailed, Err: errors.New("x")})

	if s.Created != 1 || s.Updated != 1 || s.Skipped != 1 || s.Failed != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Total() != 4 {
		t.Errorf("total = %d", s.Total())
	}
	if s.OK() {
		t.Error("skipped or failed documents must fail the run")
	}
}
