// Package scanner captures the currently open design page as a PageConfig.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/element"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/token"
)

// Placeholder dimensions. The read path cannot see the page's rendered size.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

var (
	// ErrScanUnsupported means the active page cannot enumerate its elements.
	ErrScanUnsupported = errors.New("active page does not support element scanning")

	ErrScanInProgress = errors.New("scan already in progress")
)

// ScanError is a fatal scan failure. No partial PageConfig accompanies it.
type ScanError struct {
	Op  string
	Err error
}

func (e *ScanError) Error() string { return fmt.Sprintf("scan %s: %v", e.Op, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

type State int

const (
	Idle State = iota
	Scanning
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Scanner reads the host's active page. It never navigates; the caller puts
// the desired page in front first.
type Scanner struct {
	host   canvas.Host
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

func New(host canvas.Host, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = log.WithComponent("scanner")
	}
	return &Scanner{host: host, logger: logger}
}

// State returns the state of the most recent scan.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Scan captures the active page. Elements that cannot be captured are
// dropped but still consume their id slot, so ids follow document position.
func (s *Scanner) Scan(ctx context.Context) (*domain.PageConfig, error) {
	s.mu.Lock()
	if s.state == Scanning {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.state = Scanning
	s.mu.Unlock()

	cfg, err := s.scan(ctx)
	if err != nil {
		s.setState(Failed)
		s.logger.Warn("scan failed", "err", err)
		return nil, err
	}
	s.setState(Done)
	s.logger.Info("scan complete", "elements", len(cfg.Elements), "tokens", len(cfg.TokenDefinitions))
	return cfg, nil
}

func (s *Scanner) scan(ctx context.Context) (*domain.PageConfig, error) {
	session, err := s.host.OpenCurrentPage(ctx)
	if err != nil {
		return nil, &ScanError{Op: "open", Err: err}
	}
	defer session.Close()

	items, err := session.Elements()
	if err != nil {
		if errors.Is(err, canvas.ErrNoElementList) {
			return nil, &ScanError{Op: "elements", Err: fmt.Errorf("%w: %w", ErrScanUnsupported, err)}
		}
		return nil, &ScanError{Op: "elements", Err: err}
	}

	cfg := &domain.PageConfig{
		Dimensions:           domain.Dimensions{Width: DefaultWidth, Height: DefaultHeight},
		Background:           session.Background(),
		Elements:             []domain.TemplateElement{},
		TokenDefinitions:     map[string]domain.TokenDefinition{},
		MissingTokenBehavior: domain.MissingTokenSkip,
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, &ScanError{Op: "elements", Err: err}
		}
		te, ok := element.ToTemplate(item, i)
		if !ok {
			s.logger.Debug("element skipped", "index", i, "type", item.Type())
			continue
		}
		cfg.Elements = append(cfg.Elements, *te)
		if te.IsDynamic() {
			mergeDefinitions(cfg.TokenDefinitions, te)
		}
	}
	return cfg, nil
}

// mergeDefinitions adds a definition for each token of te not seen before.
// The first occurrence of a name decides its type and label.
func mergeDefinitions(defs map[string]domain.TokenDefinition, te *domain.TemplateElement) {
	typ := element.TokenType(te)
	for _, name := range te.Tokens {
		if _, exists := defs[name]; exists {
			continue
		}
		defs[name] = domain.TokenDefinition{
			Type:  typ,
			Label: token.Label(name),
		}
	}
}
