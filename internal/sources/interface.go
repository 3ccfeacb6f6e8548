package sources

import (
	"context"

	"github.com/trendscope/trendscope-bot/internal/models"
)

// Source interface defines the contract for all content sources
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.CandidateItem, error)
	IsEnabled() bool
}
