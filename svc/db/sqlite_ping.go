package db

import (
	"context"

	"github.com/pkg/errors"
)

// Ping reports the durable store as down while the circuit is open, so
// readiness agrees with what Get and Set would return.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return errors.Wrap(err, "sqlite ping")
	}
	return nil
}
