package database

import (
	"context"
	"fmt"
)

// Optimize refreshes planner statistics for the attendance table.
func (p *Pool) Optimize(ctx context.Context) error {
	stmt := "PRAGMA optimize"
	if p.dialect == DialectPostgres {
		stmt = "ANALYZE attendance"
	}

	if _, err := p.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}
	return nil
}

// Vacuum reclaims unused space.
func (p *Pool) Vacuum(ctx context.Context) error {
	stmt := "VACUUM"
	if p.dialect == DialectPostgres {
		stmt = "VACUUM ANALYZE attendance"
	}

	if _, err := p.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
