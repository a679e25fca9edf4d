package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/health"
)

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	EmptyAcquires   int64  `json:"empty_acquires"`
	AcquireDuration string `json:"acquire_duration"`
}

func statsOf(stat *pgxpool.Stat) *PoolStats {
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		EmptyAcquires:   stat.EmptyAcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthCheck pings the pool. The pool statistics ride along in the report
// whether or not the ping succeeds.
func HealthCheck(pool *pgxpool.Pool) health.Check {
	return health.Check{
		Name: "postgres",
		Run: func(ctx context.Context) (interface{}, error) {
			err := pool.Ping(ctx)
			return statsOf(pool.Stat()), err
		},
	}
}
