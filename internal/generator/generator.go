// Package generator rebuilds a design page from a PageConfig and token
// values, inserting elements one at a time under a pacing policy.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/element"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/token"
)

// ErrMissingToken matches every *MissingTokenError.
var ErrMissingToken = errors.New("missing token values")

// MissingTokenError aborts a generation under the error policy.
type MissingTokenError struct {
	ElementID string
	Missing   []string
}

func (e *MissingTokenError) Error() string {
	return fmt.Sprintf("element %s: missing token values: %s", e.ElementID, strings.Join(e.Missing, ", "))
}

func (e *MissingTokenError) Is(target error) bool { return target == ErrMissingToken }

// Pacing is the backpressure policy for host insertions.
type Pacing struct {
	BatchSize    int
	ElementDelay time.Duration // after each successful insertion
	BatchDelay   time.Duration // between batches, never after the last
	SettleDelay  time.Duration // after page creation
}

func DefaultPacing() Pacing {
	return Pacing{
		BatchSize:    8,
		ElementDelay: 300 * time.Millisecond,
		BatchDelay:   3000 * time.Millisecond,
		SettleDelay:  1000 * time.Millisecond,
	}
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Option func(*Generator)

func WithPacing(p Pacing) Option {
	return func(g *Generator) {
		if p.BatchSize <= 0 {
			p.BatchSize = DefaultPacing().BatchSize
		}
		g.pacing = p
	}
}

func WithSleeper(s Sleeper) Option { return func(g *Generator) { g.sleep = s } }

func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// CacheEntry is one uploaded media reference.
type CacheEntry struct {
	Ref      string
	CachedAt time.Time
}

// Generator owns an upload cache keyed by resolved URL. The cache is only
// emptied by ClearCache; create one Generator per independent run to bound
// it. A Generator must not run two generations at once.
type Generator struct {
	host     canvas.Host
	uploader canvas.Uploader
	pacing   Pacing
	sleep    Sleeper
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]CacheEntry
}

func New(host canvas.Host, uploader canvas.Uploader, opts ...Option) *Generator {
	g := &Generator{
		host:     host,
		uploader: uploader,
		pacing:   DefaultPacing(),
		sleep:    sleep,
		cache:    make(map[string]CacheEntry),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.WithComponent("generator")
	}
	return g
}

// Report lists what happened to each element, by template element id.
type Report struct {
	PageID   string   `json:"pageId"`
	Inserted []string `json:"inserted"`
	Skipped  []string `json:"skipped,omitempty"`
	Failed   []string `json:"failed,omitempty"`
	Retried  []string `json:"retried,omitempty"`
}

// CreatePageFromTemplate creates a page and inserts cfg's elements in order.
// Element failures are logged and recorded in the report; they never abort
// the run. The returned error is non-nil only when the page could not be
// created, a MissingTokenError under the error policy, or ctx ended. The
// report is returned in every case where the page exists.
func (g *Generator) CreatePageFromTemplate(ctx context.Context, cfg *domain.PageConfig, values domain.TokenValues) (*Report, error) {
	logger := log.WithOperation(g.logger, "generate")

	page, err := g.host.CreatePage(ctx, cfg.Background)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	report := &Report{PageID: page.ID}
	logger.Info("page created", "page", page.ID, "elements", len(cfg.Elements))

	if err := g.sleep(ctx, g.pacing.SettleDelay); err != nil {
		return report, err
	}

	policy := cfg.Policy()
	size := g.pacing.BatchSize
	for start := 0; start < len(cfg.Elements); start += size {
		if start > 0 {
			if err := g.sleep(ctx, g.pacing.BatchDelay); err != nil {
				return report, err
			}
		}
		end := min(start+size, len(cfg.Elements))
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			te := &cfg.Elements[i]

			var vals map[string]any
			if te.IsDynamic() {
				if missing := token.Missing(te.Tokens, values); len(missing) > 0 {
					switch policy {
					case domain.MissingTokenError:
						return report, &MissingTokenError{ElementID: te.ID, Missing: missing}
					case domain.MissingTokenSkip:
						logger.Debug("element skipped", "element", te.ID, "missing", missing)
						report.Skipped = append(report.Skipped, te.ID)
						continue
					}
				}
				vals = values
			}

			retried, err := g.insert(ctx, page, te, vals)
			if retried {
				report.Retried = append(report.Retried, te.ID)
			}
			if err != nil {
				logger.Warn("element insert failed", "element", te.ID, "type", te.Type, "err", err)
				report.Failed = append(report.Failed, te.ID)
				continue
			}
			report.Inserted = append(report.Inserted, te.ID)
			if err := g.sleep(ctx, g.pacing.ElementDelay); err != nil {
				return report, err
			}
		}
	}

	logger.Info("generation complete", "page", page.ID,
		"inserted", len(report.Inserted), "skipped", len(report.Skipped), "failed", len(report.Failed))
	return report, nil
}

// insert places one element. A stale media reference is answered with one
// fresh upload of the element's URL and one more attempt.
func (g *Generator) insert(ctx context.Context, page canvas.PageHandle, te *domain.TemplateElement, values map[string]any) (bool, error) {
	ins, err := element.ToInsertion(ctx, te, values, element.ResolverFunc(g.resolve))
	if err != nil {
		return false, err
	}
	err = g.host.Insert(ctx, page, ins)
	if err == nil || !IsStaleMediaRef(err) {
		return false, err
	}

	media, ok := ins.(canvas.MediaInsertion)
	p, isMedia := te.Payload.(domain.MediaPayload)
	if !ok || !isMedia {
		return false, err
	}
	url := token.Substitute(p.URL, values)
	if url == "" || token.Has(url) {
		return false, fmt.Errorf("stale reference and no url to re-upload: %w", err)
	}
	g.forget(url)
	ref, uerr := g.resolve(ctx, media.MediaType, url)
	if uerr != nil {
		return true, fmt.Errorf("re-upload after %v: %w", err, uerr)
	}
	media.Ref = ref
	return true, g.host.Insert(ctx, page, media)
}

// IsStaleMediaRef reports whether err is the host rejecting a media
// reference. Hosts that do not return canvas.ErrInvalidMediaRef are matched
// on their message.
func IsStaleMediaRef(err error) bool {
	if errors.Is(err, canvas.ErrInvalidMediaRef) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid") && strings.Contains(msg, "ref")
}

func (g *Generator) resolve(ctx context.Context, mediaType, url string) (string, error) {
	g.mu.Lock()
	entry, ok := g.cache[url]
	g.mu.Unlock()
	if ok {
		return entry.Ref, nil
	}

	res, err := g.uploader.Upload(ctx, canvas.UploadRequest{Type: mediaType, URL: url, MimeType: MimeType(mediaType, url)})
	if err != nil {
		return "", err
	}
	if res.Ref == "" {
		return "", fmt.Errorf("upload %s: empty reference", url)
	}

	g.mu.Lock()
	g.cache[url] = CacheEntry{Ref: res.Ref, CachedAt: time.Now()}
	g.mu.Unlock()
	return res.Ref, nil
}

func (g *Generator) forget(url string) {
	g.mu.Lock()
	delete(g.cache, url)
	g.mu.Unlock()
}

// Cached returns the cache entry for a resolved URL.
func (g *Generator) Cached(url string) (CacheEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.cache[url]
	return e, ok
}

// ClearCache empties the upload cache and returns how many entries it held.
// Call it between independent runs, never during one.
func (g *Generator) ClearCache() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.cache)
	g.cache = make(map[string]CacheEntry)
	return n
}
