package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/philippzhuravlev/DTUEvent/secrets"
	"github.com/uptrace/bun"
)

// SecretBackend keeps versioned page secrets in page_secrets and page_secret_versions.
type SecretBackend struct {
	db   *bun.DB
	repo repository.Repository[*secretVersionRecord]
	now  func() time.Time
}

func NewSecretBackend(db *bun.DB) (*SecretBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*secretVersionRecord](db, secretVersionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid secret repository wiring: %w", err)
		}
	}
	return &SecretBackend{db: db, repo: repo, now: time.Now}, nil
}

// maxVersionAttempts bounds how often AddVersion retries after losing a
// version number to a concurrent writer.
const maxVersionAttempts = 5

func (s *SecretBackend) CreateSecret(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: secret backend is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("sqlstore: secret name is required")
	}
	res, err := s.db.NewInsert().
		Model(&secretRecord{Name: name, CreatedAt: s.now().UTC()}).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return secrets.ErrSecretExists
	}
	return nil
}

// AddVersion appends payload as MAX(version)+1. The (secret_name, version)
// unique key rejects a concurrent writer that read the same maximum; that
// writer retries with a fresh read.
func (s *SecretBackend) AddVersion(ctx context.Context, name string, payload []byte) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: secret backend is not configured")
	}
	name = strings.TrimSpace(name)
	var err error
	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return s.addVersionTx(ctx, tx, name, payload)
		})
		if !repository.IsDuplicatedKey(err) {
			return err
		}
	}
	return fmt.Errorf("sqlstore: add version to %s: %w", name, err)
}

func (s *SecretBackend) addVersionTx(ctx context.Context, tx bun.Tx, name string, payload []byte) error {
	exists, err := tx.NewSelect().
		Model((*secretRecord)(nil)).
		Where("?TableAlias.name = ?", name).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("sqlstore: secret %s does not exist", name)
	}
	latest, err := latestSecretVersionTx(ctx, tx, name)
	if err != nil {
		return err
	}
	record := &secretVersionRecord{
		ID:         uuid.NewString(),
		SecretName: name,
		Version:    latest + 1,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  s.now().UTC(),
	}
	_, err = s.repo.CreateTx(ctx, tx, record)
	return err
}

func (s *SecretBackend) AccessLatest(ctx context.Context, name string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: secret backend is not configured")
	}
	record := &secretVersionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.secret_name = ?", strings.TrimSpace(name)).
		OrderExpr("?TableAlias.version DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, secrets.ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.Payload, nil
}

func (s *SecretBackend) VersionCount(ctx context.Context, name string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: secret backend is not configured")
	}
	count, err := s.db.NewSelect().
		Model((*secretVersionRecord)(nil)).
		Where("?TableAlias.secret_name = ?", strings.TrimSpace(name)).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func latestSecretVersionTx(ctx context.Context, tx bun.Tx, name string) (int, error) {
	var latest int
	if err := tx.NewSelect().
		Model((*secretVersionRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version), 0)").
		Where("?TableAlias.secret_name = ?", name).
		Scan(ctx, &latest); err != nil {
		return 0, err
	}
	return latest, nil
}
