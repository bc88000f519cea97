package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	mongodb "github.com/avvvet/prizedraw-services/internal/db"
	pgdb "github.com/avvvet/prizedraw-services/internal/drawsvc/db"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open connects the backend named by driver and makes sure its indexes or
// schema exist.
func Open(ctx context.Context, driver, mongoURI, postgresURL string) (Store, error) {
	switch driver {
	case DriverMongo, "":
		database, err := mongodb.ConnectToDB(mongoURI)
		if err != nil {
			return nil, err
		}
		s := NewMongoStore(database)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		return s, nil

	case DriverPostgres:
		pool, err := pgdb.Connect(postgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pgdb.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		log.Info("pg connection established successfully")
		return NewPgStore(pool), nil

	case DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
