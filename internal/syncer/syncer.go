// Package syncer reconciles local Markdown documents against remote wiki
// pages: it resolves whether a page already exists, creates or updates it,
// and uploads referenced images as attachments.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/confluence"
	"github.com/starford/ansuz/internal/converter"
	"github.com/starford/ansuz/internal/journal"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Outcome classifies what happened to one document during a run.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// API is the remote surface the syncer needs. *confluence.Client satisfies it;
// tests substitute fakes.
type API interface {
	GetPage(ctx context.Context, pageID string) (*confluence.Page, error)
	FindPageByTitle(ctx context.Context, spaceKey, title string) (*confluence.Page, error)
	CreatePage(ctx context.Context, spaceKey, title, storageValue, parentID string) (*confluence.Page, error)
	UpdatePage(ctx context.Context, pageID, title, storageValue string, currentVersion int) (*confluence.Page, error)
	UploadAttachment(ctx context.Context, pageID, filePath string) (string, error)
}

var _ API = (*confluence.Client)(nil)

// Defaults are the publishing targets used when a document's front-matter
// does not override them.
type Defaults struct {
	SpaceKey string
	ParentID string
}

// Result is the reconciliation outcome for one document.
type Result struct {
	Path    string
	Title   string
	Outcome Outcome
	PageID  string
	Version int
	WebURL  string
	Err     error
}

// Summary aggregates the results of one run.
type Summary struct {
	Created int
	Updated int
	Skipped int
	Failed  int
	Results []Result
}

// Total returns the number of documents processed.
func (s *Summary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Failed
}

// OK reports whether the run had no skipped or failed documents. Skips count
// against the run: an explicit page ID that did not resolve is not a success.
func (s *Summary) OK() bool {
	return s.Skipped == 0 && s.Failed == 0
}

func (s *Summary) add(r Result) {
	switch r.Outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// Syncer publishes documents from a storage provider to the remote wiki.
type Syncer struct {
	store    storage.Provider
	api      API
	defaults Defaults
	logger   *slog.Logger
	journal  *journal.DB // nil when the journal is disabled
}

// New creates a Syncer.
func New(store storage.Provider, api API, defaults Defaults, logger *slog.Logger) *Syncer {
	return &Syncer{store: store, api: api, defaults: defaults, logger: logger}
}

// AttachJournal enables audit logging of runs to the given journal.
func (s *Syncer) AttachJournal(db *journal.DB) {
	s.journal = db
}

// Run processes every Markdown file under the docs root, one document at a
// time, and returns the aggregated summary. Remote failures never stop the
// run; they mark the document failed and processing continues.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	if len(metas) == 0 {
		s.logger.Warn("no markdown files found", slog.String("root", s.store.Root()))
		return summary, nil
	}
	s.logger.Info("sync started", slog.Int("files", len(metas)), slog.String("root", s.store.Root()))

	var runID int64
	if s.journal != nil {
		if runID, err = s.journal.BeginRun(); err != nil {
			s.logger.Warn("journal unavailable", slog.String("error", err.Error()))
			s.journal = nil
		}
	}

	for _, meta := range metas {
		res := s.SyncFile(ctx, meta.Path)
		summary.add(res)
		s.logResult(res)
		if s.journal != nil {
			rec := journal.Record{
				Path:     res.Path,
				Title:    res.Title,
				Outcome:  string(res.Outcome),
				PageID:   res.PageID,
				Version:  res.Version,
				Checksum: meta.Checksum,
			}
			if res.Err != nil {
				rec.Error = res.Err.Error()
			}
			if jErr := s.journal.RecordResult(runID, rec); jErr != nil {
				s.logger.Warn("journal write failed", slog.String("error", jErr.Error()))
			}
		}
	}

	if s.journal != nil {
		if jErr := s.journal.FinishRun(runID, summary.Created, summary.Updated, summary.Skipped, summary.Failed); jErr != nil {
			s.logger.Warn("journal write failed", slog.String("error", jErr.Error()))
		}
	}

	return summary, nil
}

// SyncFile reconciles a single document (path relative to the docs root).
func (s *Syncer) SyncFile(ctx context.Context, path string) Result {
	res := Result{Path: path}

	data, err := s.store.Read(path)
	if err != nil {
		return res.failed(err)
	}

	doc := parser.Parse(data)
	res.Title = doc.Title
	if res.Title == "" {
		res.Title = strings.TrimSuffix(filepath.Base(path), ".md")
	}

	abs, err := s.store.Abs(path)
	if err != nil {
		return res.failed(err)
	}
	conv := converter.Render(doc.Body, filepath.Dir(abs))
	for _, missed := range conv.Missing {
		s.logger.Warn("image not found",
			slog.String("path", path),
			slog.String("image", missed))
	}

	if doc.PageID != "" {
		return s.updateByID(ctx, res, doc.PageID, conv)
	}

	spaceKey := doc.SpaceKey
	if spaceKey == "" {
		spaceKey = s.defaults.SpaceKey
	}
	parentID := doc.ParentID
	if parentID == "" {
		parentID = s.defaults.ParentID
	}
	return s.reconcileByTitle(ctx, res, spaceKey, parentID, conv)
}

// updateByID handles documents with an explicit page identifier. The
// identifier is authoritative: when it does not resolve the document is
// skipped, never created under a fresh identifier.
func (s *Syncer) updateByID(ctx context.Context, res Result, pageID string, conv converter.Result) Result {
	page, err := s.api.GetPage(ctx, pageID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("page id not found, skipping",
			slog.String("path", res.Path),
			slog.String("page_id", pageID))
		res.Outcome = OutcomeSkipped
		res.Err = err
		return res
	}
	if err != nil {
		return res.failed(err)
	}
	return s.update(ctx, res, page, conv)
}

// reconcileByTitle resolves by exact title match in the space: hit updates,
// miss creates under the parent.
func (s *Syncer) reconcileByTitle(ctx context.Context, res Result, spaceKey, parentID string, conv converter.Result) Result {
	page, err := s.api.FindPageByTitle(ctx, spaceKey, res.Title)
	if err == nil {
		s.logger.Info("found existing page by title",
			slog.String("path", res.Path),
			slog.String("page_id", page.ID))
		return s.update(ctx, res, page, conv)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return res.failed(err)
	}
	return s.create(ctx, res, spaceKey, parentID, conv)
}

func (s *Syncer) update(ctx context.Context, res Result, page *confluence.Page, conv converter.Result) Result {
	updated, err := s.api.UpdatePage(ctx, page.ID, res.Title, conv.Markup, page.VersionNumber())
	if err != nil {
		return res.failed(err)
	}
	if err := s.uploadImages(ctx, page.ID, conv.Images); err != nil {
		return res.failed(err)
	}
	res.Outcome = OutcomeUpdated
	res.PageID = page.ID
	res.Version = page.VersionNumber() + 1
	res.WebURL = updated.WebUI()
	return res
}

// create makes the page, uploads its images, and then writes the body a
// second time so attachment references resolve against the new page.
func (s *Syncer) create(ctx context.Context, res Result, spaceKey, parentID string, conv converter.Result) Result {
	created, err := s.api.CreatePage(ctx, spaceKey, res.Title, conv.Markup, parentID)
	if err != nil {
		return res.failed(err)
	}
	res.Outcome = OutcomeCreated
	res.PageID = created.ID
	res.Version = created.VersionNumber()
	res.WebURL = created.WebUI()

	if len(conv.Images) > 0 {
		if err := s.uploadImages(ctx, created.ID, conv.Images); err != nil {
			return res.failed(err)
		}
		if _, err := s.api.UpdatePage(ctx, created.ID, res.Title, conv.Markup, created.VersionNumber()); err != nil {
			return res.failed(err)
		}
		res.Version = created.VersionNumber() + 1
	}
	return res
}

func (s *Syncer) uploadImages(ctx context.Context, pageID string, images []converter.ImageRef) error {
	for _, img := range images {
		if _, err := s.api.UploadAttachment(ctx, pageID, img.Path); err != nil {
			return err
		}
		s.logger.Info("uploaded attachment",
			slog.String("page_id", pageID),
			slog.String("filename", img.Filename()))
	}
	return nil
}

func (s *Syncer) logResult(r Result) {
	attrs := []any{
		slog.String("path", r.Path),
		slog.String("title", r.Title),
		slog.String("outcome", string(r.Outcome)),
	}
	if r.PageID != "" {
		attrs = append(attrs, slog.String("page_id", r.PageID))
	}
	if r.Version > 0 {
		attrs = append(attrs, slog.Int("version", r.Version))
	}
	switch r.Outcome {
	case OutcomeCreated, OutcomeUpdated:
		s.logger.Info("document published", attrs...)
	case OutcomeSkipped:
		s.logger.Warn("document skipped", attrs...)
	default:
		attrs = append(attrs, slog.String("error", r.Err.Error()))
		s.logger.Error("document failed", attrs...)
	}
}

func (r Result) failed(err error) Result {
	r.Outcome = OutcomeFailed
	r.Err = err
	return r
}

// contentChanged reports whether data differs from the previously seen
// checksum. Used by watch mode to suppress duplicate publishes.
func contentChanged(prev string, data []byte) (string, bool) {
	cs := checksum.Sum(data)
	return cs, cs != prev
}
