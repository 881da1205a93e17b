package storage

import (
	"time"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

// MediaStore implements domain.MediaStore using SQLite.
type MediaStore struct {
	db *DB
}

func NewMediaStore(db *DB) *MediaStore {
	return &MediaStore{db: db}
}

func (s *MediaStore) CreateMedia(m *domain.Media) error {
	m.CreatedAt = time.Now()
	_, err := s.db.Conn().Exec(
		`INSERT INTO media (ref, type, url, mime_type, file_path, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.Ref, m.Type, m.URL, m.MimeType, m.FilePath, m.CreatedAt,
	)
	return err
}

func (s *MediaStore) GetMedia(ref string) (*domain.Media, error) {
	m := &domain.Media{}
	err := s.db.Conn().QueryRow(
		`SELECT ref, type, url, mime_type, file_path, created_at FROM media WHERE ref = ?`, ref,
	).Scan(&m.Ref, &m.Type, &m.URL, &m.MimeType, &m.FilePath, &m.CreatedAt)
	if err != nil {
		return nil, notFound("media", ref, err)
	}
	return m, nil
}
