package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

// CanvasStore implements domain.CanvasStore using SQLite.
type CanvasStore struct {
	db *DB
}

func NewCanvasStore(db *DB) *CanvasStore {
	return &CanvasStore{db: db}
}

func notFound(what, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// ── designs ──────────────────────────────────────────────────

func (s *CanvasStore) CreateDesign(d *domain.Design) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.db.Conn().Exec(
		`INSERT INTO designs (id, name, active_page_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.ActivePageID, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *CanvasStore) GetDesign(id string) (*domain.Design, error) {
	d := &domain.Design{}
	err := s.db.Conn().QueryRow(
		`SELECT id, name, active_page_id, created_at, updated_at FROM designs WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.ActivePageID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound("design", id, err)
	}
	return d, nil
}

func (s *CanvasStore) ListDesigns() ([]domain.Design, error) {
	rows, err := s.db.Conn().Query(`SELECT id, name, active_page_id, created_at, updated_at FROM designs ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var designs []domain.Design
	for rows.Next() {
		var d domain.Design
		if err := rows.Scan(&d.ID, &d.Name, &d.ActivePageID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}
	return designs, rows.Err()
}

func (s *CanvasStore) UpdateDesign(d *domain.Design) error {
	d.UpdatedAt = time.Now()
	_, err := s.db.Conn().Exec(
		`UPDATE designs SET name = ?, active_page_id = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.ActivePageID, d.UpdatedAt, d.ID,
	)
	return err
}

func (s *CanvasStore) DeleteDesign(id string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM designs WHERE id = ?`, id)
	return err
}

// ── pages ────────────────────────────────────────────────────

const pageColumns = `id, design_id, name, sort_order, width, height, background_color, background_image_ref, created_at, updated_at`

func scanPage(sc interface{ Scan(...any) error }, p *domain.Page) error {
	return sc.Scan(&p.ID, &p.DesignID, &p.Name, &p.Order, &p.Width, &p.Height,
		&p.BackgroundColor, &p.BackgroundImageRef, &p.CreatedAt, &p.UpdatedAt)
}

// CreatePage appends p to its design; Order is assigned as the next slot.
func (s *CanvasStore) CreatePage(p *domain.Page) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.db.Conn().QueryRow(
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM pages WHERE design_id = ?`, p.DesignID,
	).Scan(&p.Order); err != nil {
		return fmt.Errorf("next page order: %w", err)
	}
	_, err := s.db.Conn().Exec(
		`INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DesignID, p.Name, p.Order, p.Width, p.Height, p.BackgroundColor, p.BackgroundImageRef, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *CanvasStore) GetPage(id string) (*domain.Page, error) {
	p := &domain.Page{}
	if err := scanPage(s.db.Conn().QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id), p); err != nil {
		return nil, notFound("page", id, err)
	}
	return p, nil
}

func (s *CanvasStore) ListPages(designID string) ([]domain.Page, error) {
	rows, err := s.db.Conn().Query(`SELECT `+pageColumns+` FROM pages WHERE design_id = ? ORDER BY sort_order ASC`, designID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		if err := scanPage(rows, &p); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *CanvasStore) DeletePage(id string) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM elements WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return tx.Commit()
}

// ── elements ─────────────────────────────────────────────────

// AppendElement stores e on top of its page's stack. Seq is assigned.
func (s *CanvasStore) AppendElement(e *domain.CanvasElement) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode element data: %w", err)
	}
	e.CreatedAt = time.Now()

	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM elements WHERE page_id = ?`, e.PageID).Scan(&e.Seq); err != nil {
		return fmt.Errorf("next element seq: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO elements (id, page_id, seq, type, data_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.PageID, e.Seq, e.Type, string(data), e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert element: %w", err)
	}
	if _, err := tx.Exec(`UPDATE pages SET updated_at = ? WHERE id = ?`, e.CreatedAt, e.PageID); err != nil {
		return fmt.Errorf("touch page: %w", err)
	}
	return tx.Commit()
}

// ListElements returns the page's elements bottom to top.
func (s *CanvasStore) ListElements(pageID string) ([]domain.CanvasElement, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, page_id, seq, type, data_json, created_at FROM elements WHERE page_id = ? ORDER BY seq ASC`, pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []domain.CanvasElement
	for rows.Next() {
		var (
			e    domain.CanvasElement
			data string
		)
		if err := rows.Scan(&e.ID, &e.PageID, &e.Seq, &e.Type, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("decode element %s: %w", e.ID, err)
		}
		elements = append(elements, e)
	}
	return elements, rows.Err()
}

func (s *CanvasStore) DeleteElement(id string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM elements WHERE id = ?`, id)
	return err
}
