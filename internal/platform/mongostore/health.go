package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/health"
)

// HealthCheck pings the primary, which is also where transactions run.
func HealthCheck(client *mongo.Client) health.Check {
	return health.Check{
		Name: "mongo",
		Run: func(ctx context.Context) (interface{}, error) {
			if err := client.Ping(ctx, readpref.Primary()); err != nil {
				return nil, err
			}
			return map[string]int{"sessions_in_progress": client.NumberSessionsInProgress()}, nil
		},
	}
}
