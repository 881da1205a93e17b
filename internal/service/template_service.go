package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/generator"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/scanner"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/schema"
)

// ─────────────────────────────────────────────────────────────
// Template Service: scan, store and generate page templates
// ─────────────────────────────────────────────────────────────

// DefaultSession is the generation session used when none is named.
const DefaultSession = "default"

// TemplateService ties the scanner and generator to a template store.
// Generations are serialized per session; each session keeps its own
// upload cache until ClearUploadCache.
type TemplateService struct {
	store    domain.TemplateStore
	host     canvas.Host
	uploader canvas.Uploader
	scanner  *scanner.Scanner
	genOpts  []generator.Option
	emitter  EventEmitter
	logger   *slog.Logger
	queue    sessionQueue

	mu         sync.Mutex
	generators map[string]*generator.Generator
}

// NewTemplateService creates a TemplateService. genOpts configure every
// session's generator (pacing, sleeper).
func NewTemplateService(
	store domain.TemplateStore,
	host canvas.Host,
	uploader canvas.Uploader,
	emitter EventEmitter,
	genOpts ...generator.Option,
) *TemplateService {
	logger := log.WithComponent("templates")
	return &TemplateService{
		store:      store,
		host:       host,
		uploader:   uploader,
		scanner:    scanner.New(host, log.WithComponent("scanner")),
		genOpts:    genOpts,
		emitter:    emitter,
		logger:     logger,
		generators: make(map[string]*generator.Generator),
	}
}

// ── Scan ───────────────────────────────────────────────────

// ScanActivePage captures the page currently in front.
func (s *TemplateService) ScanActivePage(ctx context.Context) (*domain.PageConfig, error) {
	return s.scanner.Scan(ctx)
}

// ScanState reports the state of the last scan.
func (s *TemplateService) ScanState() scanner.State {
	return s.scanner.State()
}

// ── CRUD ───────────────────────────────────────────────────

type SaveTemplateInput struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	PreviewImageURL string             `json:"preview_image_url"`
	Config          *domain.PageConfig `json:"page_config,omitempty"`
}

// SaveTemplate stores a new template. Without a Config the active page is
// scanned first.
func (s *TemplateService) SaveTemplate(ctx context.Context, in SaveTemplateInput) (*domain.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	cfg := in.Config
	if cfg == nil {
		scanned, err := s.ScanActivePage(ctx)
		if err != nil {
			return nil, err
		}
		cfg = scanned
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page config: %w", err)
	}
	t := &domain.Template{
		Name:            name,
		Description:     in.Description,
		PreviewImageURL: in.PreviewImageURL,
		PageConfig:      *cfg,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	s.logger.Info("template saved", "id", t.ID, "name", t.Name, "elements", len(t.PageConfig.Elements))
	s.emitter.Emit(ctx, EventTemplateSaved, t)
	return t, nil
}

// UpdateTemplateInput changes only the fields that are set.
type UpdateTemplateInput struct {
	Name                 *string                      `json:"name,omitempty"`
	Description          *string                      `json:"description,omitempty"`
	PreviewImageURL      *string                      `json:"preview_image_url,omitempty"`
	Config               *domain.PageConfig           `json:"page_config,omitempty"`
	MissingTokenBehavior *domain.MissingTokenBehavior `json:"missingTokenBehavior,omitempty"`
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, in UpdateTemplateInput) (*domain.Template, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("template name is required")
		}
		t.Name = name
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.PreviewImageURL != nil {
		t.PreviewImageURL = *in.PreviewImageURL
	}
	if in.Config != nil {
		t.PageConfig = *in.Config
	}
	if in.MissingTokenBehavior != nil {
		if !in.MissingTokenBehavior.Valid() {
			return nil, fmt.Errorf("invalid missingTokenBehavior %q", *in.MissingTokenBehavior)
		}
		t.PageConfig.MissingTokenBehavior = *in.MissingTokenBehavior
	}
	return s.put(ctx, t)
}

// SetElementMode overrides the static/dynamic classification of one element
// of a stored template.
func (s *TemplateService) SetElementMode(ctx context.Context, templateID, elementID string, mode domain.ElementMode) (*domain.Template, error) {
	t, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := t.PageConfig.SetElementMode(elementID, mode); err != nil {
		return nil, err
	}
	return s.put(ctx, t)
}

func (s *TemplateService) put(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if err := t.PageConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page config: %w", err)
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	s.emitter.Emit(ctx, EventTemplateSaved, t)
	return t, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return s.store.List(ctx)
}

func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	return s.store.Get(ctx, id)
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventTemplateDeleted, id)
	return nil
}

// ── Import / export ────────────────────────────────────────

// ImportJSON validates a template document and upserts it: a document whose
// id exists in the store replaces it, anything else is created.
func (s *TemplateService) ImportJSON(ctx context.Context, data []byte) (*domain.Template, error) {
	if err := schema.Validate(data); err != nil {
		return nil, err
	}
	var t domain.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	if err := t.PageConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page config: %w", err)
	}

	if t.ID != "" {
		existing, err := s.store.Get(ctx, t.ID)
		switch {
		case err == nil:
			t.CreatedAt = existing.CreatedAt
			if err := s.store.Update(ctx, &t); err != nil {
				return nil, fmt.Errorf("update template: %w", err)
			}
			s.emitter.Emit(ctx, EventTemplateImport, &t)
			return &t, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	if err := s.store.Create(ctx, &t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	s.emitter.Emit(ctx, EventTemplateImport, &t)
	return &t, nil
}

// ImportFile imports the template document at path.
func (s *TemplateService) ImportFile(ctx context.Context, path string) (*domain.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	t, err := s.ImportJSON(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	s.logger.Info("template imported", "path", path, "id", t.ID)
	return t, nil
}

// ExportTemplate returns the template as an indented JSON document that
// ImportJSON accepts.
func (s *TemplateService) ExportTemplate(ctx context.Context, id string) ([]byte, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(t, "", "  ")
}

// ── Generate ───────────────────────────────────────────────

// Generate builds a new page from a stored template. A second call for the
// same session waits for the first to finish.
func (s *TemplateService) Generate(ctx context.Context, sessionID, templateID string, values domain.TokenValues) (*generator.Report, error) {
	t, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	report, err := s.GenerateFromConfig(ctx, sessionID, &t.PageConfig, values)
	if report != nil {
		s.emitter.Emit(ctx, EventPageGenerated, map[string]any{"templateId": t.ID, "report": report})
	}
	return report, err
}

// GenerateFromConfig builds a page from cfg directly.
func (s *TemplateService) GenerateFromConfig(ctx context.Context, sessionID string, cfg *domain.PageConfig, values domain.TokenValues) (*generator.Report, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	if err := s.queue.Acquire(ctx, sessionID); err != nil {
		return nil, err
	}
	defer s.queue.Release(sessionID)

	logger := s.logger.With("session", sessionID)
	logger.Info("generation started", "elements", len(cfg.Elements), "values", len(values))
	return s.sessionGenerator(sessionID).CreatePageFromTemplate(log.WithSession(ctx, sessionID), cfg, values)
}

func (s *TemplateService) sessionGenerator(sessionID string) *generator.Generator {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generators[sessionID]
	if !ok {
		opts := append([]generator.Option{generator.WithLogger(log.WithComponent("generator"))}, s.genOpts...)
		g = generator.New(s.host, s.uploader, opts...)
		s.generators[sessionID] = g
	}
	return g
}

// ClearUploadCache empties the upload cache of sessionID, or of every
// session when sessionID is empty. It returns the number of entries dropped.
func (s *TemplateService) ClearUploadCache(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, g := range s.generators {
		if sessionID == "" || id == sessionID {
			n += g.ClearCache()
		}
	}
	return n
}

// WaitIdle blocks until running generations finish. Used for graceful
// shutdown.
func (s *TemplateService) WaitIdle(ctx context.Context) error {
	return s.queue.WaitIdle(ctx)
}
