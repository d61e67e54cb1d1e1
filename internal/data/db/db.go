package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/envutil"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

// Service owns the relational database used for build history. Postgres is
// used when POSTGRES_HOST is set; otherwise a SQLite file under the data
// dir keeps single-machine installs dependency-free.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(baseLog *logger.Logger, dataDir string) (*Service, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	serviceLog := baseLog.With("service", "DBService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var (
		gdb     *gorm.DB
		err     error
		backend string
	)
	if host := strings.TrimSpace(os.Getenv("POSTGRES_HOST")); host != "" {
		backend = "postgres"
		gdb, err = gorm.Open(postgres.Open(postgresDSN(host)), gormCfg)
	} else {
		backend = "sqlite"
		path, pathErr := sqlitePath(dataDir)
		if pathErr != nil {
			return nil, pathErr
		}
		gdb, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", backend, err)
	}

	if err := AutoMigrateAll(gdb); err != nil {
		return nil, fmt.Errorf("migrate %s database: %w", backend, err)
	}

	serviceLog.Info("build history database ready", "backend", backend)
	return &Service{db: gdb, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.BuildRun{},
	)
}

func postgresDSN(host string) string {
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "curio")
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user,
		password,
		host,
		port,
		name,
	)
}

func sqlitePath(dataDir string) (string, error) {
	dir := strings.TrimSpace(dataDir)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %q: %w", dir, err)
	}
	return filepath.Join(dir, "curio_graph.db"), nil
}
