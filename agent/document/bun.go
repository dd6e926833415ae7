package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

type documentModel struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID         string    `bun:"id,pk"`
	Name       string    `bun:"name,notnull"`
	Kind       string    `bun:"kind,notnull"`
	LoadID     string    `bun:"load_id"`
	Content    []byte    `bun:"content"`
	Status     string    `bun:"status,notnull"`
	UploadedAt time.Time `bun:"uploaded_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (m documentModel) toDocument() contractx.Document {
	return contractx.Document{
		ID:         m.ID,
		Name:       m.Name,
		Kind:       m.Kind,
		LoadID:     m.LoadID,
		Content:    m.Content,
		Status:     contractx.DocumentStatus(m.Status),
		UploadedAt: m.UploadedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// OpenPostgres opens a bun handle over pgdriver. The connection is lazy; call Check
// to verify it.
func OpenPostgres(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	)
	return bun.NewDB(sql.OpenDB(connector), pgdialect.New()), nil
}

// BunStore keeps documents in the "documents" table.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

var (
	_ contractx.DocumentStore = (*BunStore)(nil)
	_ contractx.HealthChecker = (*BunStore)(nil)
)

func NewBunStore(db *bun.DB) (*BunStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &BunStore{db: db, now: time.Now}, nil
}

func (s *BunStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*documentModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *BunStore) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: postgres ping: %v", contractx.ErrInitialization, err)
	}
	return nil
}

func (s *BunStore) Upload(ctx context.Context, doc contractx.Document) (string, error) {
	doc, err := prepare(doc, s.now().UTC())
	if err != nil {
		return "", err
	}
	model := &documentModel{
		ID:         doc.ID,
		Name:       doc.Name,
		Kind:       doc.Kind,
		LoadID:     doc.LoadID,
		Content:    doc.Content,
		Status:     string(doc.Status),
		UploadedAt: doc.UploadedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return doc.ID, nil
}

func (s *BunStore) Get(ctx context.Context, id string) (contractx.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return contractx.Document{}, fmt.Errorf("%w: document id is required", contractx.ErrInvalidInput)
	}

	var model documentModel
	err := s.db.NewSelect().
		Model(&model).
		Where("d.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Document{}, fmt.Errorf("%w: %s", contractx.ErrDocumentNotFound, id)
	}
	if err != nil {
		return contractx.Document{}, fmt.Errorf("select document: %w", err)
	}
	return model.toDocument(), nil
}

func (s *BunStore) SetStatus(ctx context.Context, id string, status contractx.DocumentStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	res, err := s.db.NewUpdate().
		Model((*documentModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", s.now().UTC()).
		Where("d.id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", contractx.ErrDocumentNotFound, id)
	}
	return nil
}
