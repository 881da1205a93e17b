// Package canvastest provides in-memory fakes of the canvas host contract.
package canvastest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

// Session is a fixed page. A nil Items with NoList set reports
// canvas.ErrNoElementList.
type Session struct {
	Items  []canvas.Element
	BG     *domain.Background
	NoList bool
	Closed bool
}

func (s *Session) Elements() ([]canvas.Element, error) {
	if s.NoList {
		return nil, canvas.ErrNoElementList
	}
	return s.Items, nil
}

func (s *Session) Background() *domain.Background { return s.BG }

func (s *Session) Close() error {
	s.Closed = true
	return nil
}

// Call is one observed host mutation.
type Call struct {
	Op        string // "create_page" | "insert"
	Page      canvas.PageHandle
	Insertion canvas.Insertion
}

// Host records every call. FailInsert, when set, is consulted before each
// insert with the zero-based insert index; a non-nil result is returned to
// the caller and the insertion is not recorded as applied.
type Host struct {
	mu sync.Mutex

	Page       *Session
	OpenErr    error
	CreateErr  error
	FailInsert func(n int, ins canvas.Insertion) error

	Calls    []Call
	Inserted []canvas.Insertion
	attempts int
	pages    int
}

func (h *Host) OpenCurrentPage(ctx context.Context) (canvas.Session, error) {
	if h.OpenErr != nil {
		return nil, h.OpenErr
	}
	if h.Page == nil {
		return &Session{}, nil
	}
	return h.Page, nil
}

func (h *Host) CreatePage(ctx context.Context, bg *domain.Background) (canvas.PageHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.CreateErr != nil {
		return canvas.PageHandle{}, h.CreateErr
	}
	h.pages++
	page := canvas.PageHandle{ID: fmt.Sprintf("page_%d", h.pages)}
	h.Calls = append(h.Calls, Call{Op: "create_page", Page: page})
	return page, nil
}

func (h *Host) Insert(ctx context.Context, page canvas.PageHandle, ins canvas.Insertion) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.attempts
	h.attempts++
	h.Calls = append(h.Calls, Call{Op: "insert", Page: page, Insertion: ins})
	if h.FailInsert != nil {
		if err := h.FailInsert(n, ins); err != nil {
			return err
		}
	}
	h.Inserted = append(h.Inserted, ins)
	return nil
}

// Inserts returns the insert calls in order, failed attempts included.
func (h *Host) Inserts() []canvas.Insertion {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []canvas.Insertion
	for _, c := range h.Calls {
		if c.Op == "insert" {
			out = append(out, c.Insertion)
		}
	}
	return out
}

// Uploader hands out sequential refs and counts uploads per URL.
type Uploader struct {
	mu     sync.Mutex
	Err    error
	Counts map[string]int
	n      int
}

func (u *Uploader) Upload(ctx context.Context, req canvas.UploadRequest) (canvas.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Counts == nil {
		u.Counts = map[string]int{}
	}
	u.Counts[req.URL]++
	if u.Err != nil {
		return canvas.UploadResult{}, u.Err
	}
	u.n++
	return canvas.UploadResult{Ref: fmt.Sprintf("media_%d", u.n)}, nil
}

// Total returns the number of upload calls.
func (u *Uploader) Total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	total := 0
	for _, c := range u.Counts {
		total += c
	}
	return total
}

// Pause is one recorded sleep, tagged with how many inserts the host had
// seen when it happened.
type Pause struct {
	D           time.Duration
	AfterInsert int
}

// Sleeper records pauses without sleeping. Host, when set, is used to tag
// each pause with the current insert count.
type Sleeper struct {
	Host   *Host
	Pauses []Pause
}

func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	n := 0
	if s.Host != nil {
		n = len(s.Host.Inserts())
	}
	s.Pauses = append(s.Pauses, Pause{D: d, AfterInsert: n})
	return ctx.Err()
}

// Count returns how many pauses of exactly d were recorded.
func (s *Sleeper) Count(d time.Duration) int {
	n := 0
	for _, p := range s.Pauses {
		if p.D == d {
			n++
		}
	}
	return n
}
