package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type execer func(ctx context.Context, sql string) error

// applyMigrations runs every file in dir ending in suffix, in name order.
// Migration files are expected to be idempotent.
func applyMigrations(ctx context.Context, dir, suffix string, exec execer) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		if err := exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", path, err)
		}
	}
	return nil
}

// Migrate applies the *.up.sql files found in dir.
func (s *PostgresStore) Migrate(ctx context.Context, dir string) error {
	return applyMigrations(ctx, dir, ".up.sql", func(ctx context.Context, sql string) error {
		_, err := s.Pool.Exec(ctx, sql)
		return err
	})
}
