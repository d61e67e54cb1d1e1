package repos

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/pkg/dbctx"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

// ErrConflict tags unique-violation failures from the underlying database.
var ErrConflict = errors.New("build run conflict")

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type BuildRunRepo interface {
	Create(dbc dbctx.Context, run *types.BuildRun) (*types.BuildRun, error)
	UpdateStage(dbc dbctx.Context, id uuid.UUID, stage string) error
	Finish(dbc dbctx.Context, id uuid.UUID, status string, report types.BuildReport, buildErr string) error
	ListRecent(dbc dbctx.Context, limit int) ([]*types.BuildRun, error)
	LatestRun(dbc dbctx.Context) (*types.BuildRun, error)
}

type buildRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBuildRunRepo(db *gorm.DB, baseLog *logger.Logger) BuildRunRepo {
	return &buildRunRepo{
		db:  db,
		log: baseLog.With("repo", "BuildRunRepo"),
	}
}

func (r *buildRunRepo) Create(dbc dbctx.Context, run *types.BuildRun) (*types.BuildRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.BuildStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, mapDBError("create build run", err)
	}
	return run, nil
}

func (r *buildRunRepo) UpdateStage(dbc dbctx.Context, id uuid.UUID, stage string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.BuildRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stage":      strings.TrimSpace(stage),
			"updated_at": time.Now().UTC(),
		}).Error
	return mapDBError("update build stage", err)
}

func (r *buildRunRepo) Finish(dbc dbctx.Context, id uuid.UUID, status string, report types.BuildReport, buildErr string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.BuildRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 status,
			"concept_relationships":  report.ConceptRelationships,
			"activity_relationships": report.ActivityRelationships,
			"topic_clusters":         report.TopicClusters,
			"error":                  strings.TrimSpace(buildErr),
			"finished_at":            now,
			"updated_at":             now,
		}).Error
	return mapDBError("finish build run", err)
}

func (r *buildRunRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.BuildRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var out []*types.BuildRun
	if err := transaction.WithContext(dbc.Ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, mapDBError("list build runs", err)
	}
	return out, nil
}

func (r *buildRunRepo) LatestRun(dbc dbctx.Context) (*types.BuildRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.BuildRun
	err := transaction.WithContext(dbc.Ctx).
		Order("started_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, mapDBError("latest build run", err)
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

// mapDBError normalizes driver failures. Unique violations surface as
// ErrConflict whether they come from Postgres (SQLSTATE 23505) or SQLite
// (message match).
func mapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == "23505" {
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") {
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
