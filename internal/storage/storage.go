package storage

import (
	"fmt"

	"gest/internal/config"
	"gest/internal/domain"
)

// Storage persists and loads run results (e.g. for --failed and the faills viewer).
type Storage interface {
	Save(report *domain.Report) error
	Load() (*domain.TestResultsOutput, error)
	// SaveOutput writes the full output (e.g. after marking failures resolved).
	SaveOutput(output *domain.TestResultsOutput) error
}

// JSONStorage stores results in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}

// New returns the Storage selected by cfg.Store. The mysql store opens a
// connection pool; callers close it through Close when it implements io.Closer.
func New(cfg *config.Config) (Storage, error) {
	switch cfg.Store {
	case config.StoreJSON, "":
		return NewJSONStorage(cfg), nil
	case config.StoreMySQL:
		return OpenMySQL(cfg)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
