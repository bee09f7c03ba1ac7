// Package factory opens the repository.Store selected by a DSN.
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/memory"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/postgres"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/sqlite"
)

// MemoryDSN selects the in-process store.
const MemoryDSN = "memory"

// Open creates a store based on the DSN.
//   - empty: SQLite at data/endee-console.db
//   - "memory": in-process maps
//   - postgres:// or postgresql://: PostgreSQL
//   - anything else: SQLite at the given path
func Open(ctx context.Context, dsn string) (repository.Store, error) {
	switch {
	case dsn == MemoryDSN:
		return memory.New(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	default:
		s, err := sqlite.Open(dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	}
}
