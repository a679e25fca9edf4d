// Package mongotest gives repository tests an indexed MongoDB database of
// their own. Tests skip unless CLINIC_TEST_MONGO_URI is set.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mongostore"
)

const EnvMongoURI = "CLINIC_TEST_MONGO_URI"

// Database returns a fresh database with every index in
// mongostore.Indexes. It is dropped when the test ends.
func Database(t testing.TB) *mongo.Database {
	t.Helper()
	uri := os.Getenv(EnvMongoURI)
	if uri == "" {
		t.Skipf("%s is not set", EnvMongoURI)
	}
	ctx := context.Background()

	client, err := mongostore.Connect(ctx, uri)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	name := "clinic_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	database := client.Database(name)
	t.Cleanup(func() {
		if err := database.Drop(context.Background()); err != nil {
			t.Logf("drop %s: %v", name, err)
		}
		_ = client.Disconnect(context.Background())
	})

	if err := mongostore.EnsureIndexes(ctx, database); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return database
}
