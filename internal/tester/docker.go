package tester

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/model"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const dockerTestsEnv = "REVISION_DOCKER_TESTS"

// PostgresDB starts a throwaway postgres container and returns a migrated
// connection to it. The test is skipped unless REVISION_DOCKER_TESTS is set.
func PostgresDB(t testing.TB) *gorm.DB {
	t.Helper()

	if os.Getenv(dockerTestsEnv) == "" {
		t.Skipf("set %s=1 to run postgres integration tests", dockerTestsEnv)
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not construct pool: %s", err)
	}

	// uses pool to try to connect to Docker
	if err = pool.Client.Ping(); err != nil {
		t.Fatalf("could not connect to docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=emrgen",
			"POSTGRES_PASSWORD=emrgen",
			"POSTGRES_DB=revision",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start postgres: %s", err)
	}
	_ = resource.Expire(120)

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			logrus.Errorf("could not purge postgres: %s", err)
		}
	})

	dsn := fmt.Sprintf("host=localhost port=%s user=emrgen password=emrgen dbname=revision sslmode=disable",
		resource.GetPort("5432/tcp"))

	var db *gorm.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		var err error
		db, err = config.OpenPostgres(dsn)
		if err != nil {
			return err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}

		return sqlDB.Ping()
	})
	if err != nil {
		t.Fatalf("could not connect to postgres: %s", err)
	}

	if err := model.Migrate(db); err != nil {
		t.Fatalf("could not migrate postgres: %s", err)
	}

	return db
}
