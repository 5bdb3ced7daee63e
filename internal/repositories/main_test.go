package repositories

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"shoecreatify/internal/database"
)

var testDB database.Service

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not start mongodb container")
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not resolve mongodb connection string")
	}

	testDB, err = database.New(uri, "shoecreatify_repo_test")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to mongodb container")
	}
	if err := testDB.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not create indexes")
	}

	code := m.Run()

	_ = testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Error().Err(err).Msg("Could not teardown mongodb container")
	}
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
}
