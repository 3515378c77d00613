package persistent

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

const testDsnEnv = "CHIPS_TEST_PG_DSN"

func PgOpen(ctx context.Context, pgDsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgDsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping pg database: %w", err)
	}

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Running integration tests requires real pg db instance, but we
// don't have enough time to start db for every test so we will start db once
// (see testenv) and then pass datasource to as many tests as we want.

// PgOpenTest returns nil when no test database was provided.
func PgOpenTest(ctx context.Context) *bun.DB {
	dsn := TestEnvDsn()
	if dsn == "" {
		return nil
	}
	db, err := PgOpen(ctx, dsn)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open test pg database.")
	}
	if os.Getenv("DB_VERBOSE") == "true" {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func TestEnvDsn() string {
	return os.Getenv(testDsnEnv)
}

func SetTestEnvDsn(dsn string) {
	os.Setenv(testDsnEnv, dsn)
}

func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*AuditEntry)(nil),
	}
	for _, model := range models {
		modelType := reflect.TypeOf(model)
		logrus.WithField("model", modelType).Debugln("Creating table.")
		_, err := db.NewCreateTable().IfNotExists().Model(model).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create table %s: %w", modelType, err)
		}
	}
	_, err := db.NewCreateIndex().
		IfNotExists().
		Model((*AuditEntry)(nil)).
		Index("audit_entry_email_hash_idx").
		Column("email_hash", "id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}
