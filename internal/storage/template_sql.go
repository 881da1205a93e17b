package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Dialect names accepted by OpenSQLTemplateStore.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

var templateDDL = map[string]string{
	DialectSQLite: `CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		page_config TEXT NOT NULL,
		preview_image_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	DialectPostgres: `CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		page_config JSONB NOT NULL,
		preview_image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	DialectMySQL: `CREATE TABLE IF NOT EXISTS templates (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		page_config LONGTEXT NOT NULL,
		preview_image_url TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
}

// SQLTemplateStore implements domain.TemplateStore over database/sql. The
// page config is kept as a JSON document in one column.
type SQLTemplateStore struct {
	conn    *sql.DB
	dialect string
	owned   bool
}

// NewSQLiteTemplateStore keeps templates in the local database.
func NewSQLiteTemplateStore(db *DB) (*SQLTemplateStore, error) {
	s := &SQLTemplateStore{conn: db.Conn(), dialect: DialectSQLite}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLTemplateStore connects to a postgres or mysql server.
// MySQL DSNs need parseTime=true; it is added when missing.
func OpenSQLTemplateStore(ctx context.Context, dialect, dsn string) (*SQLTemplateStore, error) {
	if _, ok := templateDDL[dialect]; !ok || dialect == DialectSQLite {
		return nil, fmt.Errorf("unsupported template store dialect %q", dialect)
	}
	if dialect == DialectMySQL && !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}
	conn, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	s := &SQLTemplateStore{conn: conn, dialect: dialect, owned: true}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLTemplateStore) migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, templateDDL[s.dialect]); err != nil {
		return fmt.Errorf("create templates table: %w", err)
	}
	return nil
}

// Close releases the connection when the store opened it.
func (s *SQLTemplateStore) Close() error {
	if s.owned {
		return s.conn.Close()
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLTemplateStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func backendError(op string, err error) error {
	return &domain.StoreError{Code: domain.StoreCodeBackend, Message: fmt.Sprintf("%s: %v", op, err)}
}

const templateColumns = `id, name, description, page_config, preview_image_url, created_at, updated_at`

func scanTemplate(sc interface{ Scan(...any) error }) (*domain.Template, error) {
	var (
		t   domain.Template
		cfg string
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Description, &cfg, &t.PreviewImageURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &t.PageConfig); err != nil {
		return nil, fmt.Errorf("decode page_config of %s: %w", t.ID, err)
	}
	return &t, nil
}

func (s *SQLTemplateStore) List(ctx context.Context) ([]domain.Template, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY updated_at DESC`)
	if err != nil {
		return nil, backendError("list templates", err)
	}
	defer rows.Close()

	templates := []domain.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, backendError("list templates", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError("list templates", err)
	}
	return templates, nil
}

func (s *SQLTemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	t, err := scanTemplate(s.conn.QueryRowContext(ctx, s.rebind(`SELECT `+templateColumns+` FROM templates WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(id)
	}
	if err != nil {
		return nil, backendError("get template", err)
	}
	return t, nil
}

// Create inserts t, assigning an id when empty and both timestamps.
func (s *SQLTemplateStore) Create(ctx context.Context, t *domain.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	cfg, err := json.Marshal(t.PageConfig)
	if err != nil {
		return &domain.StoreError{Code: domain.StoreCodeInvalid, Message: err.Error()}
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err = s.conn.ExecContext(ctx,
		s.rebind(`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Name, t.Description, string(cfg), t.PreviewImageURL, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return backendError("create template", err)
	}
	return nil
}

func (s *SQLTemplateStore) Update(ctx context.Context, t *domain.Template) error {
	cfg, err := json.Marshal(t.PageConfig)
	if err != nil {
		return &domain.StoreError{Code: domain.StoreCodeInvalid, Message: err.Error()}
	}
	t.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		s.rebind(`UPDATE templates SET name = ?, description = ?, page_config = ?, preview_image_url = ?, updated_at = ? WHERE id = ?`),
		t.Name, t.Description, string(cfg), t.PreviewImageURL, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return backendError("update template", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound(t.ID)
	}
	return nil
}

func (s *SQLTemplateStore) Delete(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, s.rebind(`DELETE FROM templates WHERE id = ?`), id)
	if err != nil {
		return backendError("delete template", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound(id)
	}
	return nil
}
