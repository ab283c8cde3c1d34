package modelstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// PostgresStore reads descriptors from the translation_models table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]models.ModelDescriptor, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, provider, model_api_name, COALESCE(credential, ''), COALESCE(endpoint, '')
		 FROM translation_models ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var list []models.ModelDescriptor
	for rows.Next() {
		var d models.ModelDescriptor
		var provider string
		if err := rows.Scan(&d.ID, &d.Name, &provider, &d.ModelAPIName, &d.Credential, &d.Endpoint); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		d.Provider = models.ProviderKind(provider)
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return list, nil
}
