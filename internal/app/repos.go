package app

import (
	"gorm.io/gorm"

	"github.com/Tapu45/CurioAi-sub001/internal/data/repos"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

type Repos struct {
	BuildRuns repos.BuildRunRepo
}

// wireRepos builds the relational repos. A nil db leaves BuildRuns nil and
// the scheduler runs without persisted history.
func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	if db == nil {
		return Repos{}
	}
	log.Info("Wiring repos...")
	return Repos{
		BuildRuns: repos.NewBuildRunRepo(db, log),
	}
}
