package service

import (
	"context"

	"github.com/vexa-ai/billing/internal/api/dto"
	"github.com/vexa-ai/billing/internal/domain/user"
	"github.com/vexa-ai/billing/internal/logger"
)

// StatsService aggregates contracted capacity across all user records
type StatsService interface {
	// GetCurrentStats counts accounts holding positive capacity and sums
	// their contracted units
	GetCurrentStats(ctx context.Context) (*dto.StatsResponse, error)
}

type statsService struct {
	userRepo user.Repository
	log      *logger.Logger
}

func NewStatsService(userRepo user.Repository, log *logger.Logger) StatsService {
	return &statsService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *statsService) GetCurrentStats(ctx context.Context) (*dto.StatsResponse, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &dto.StatsResponse{}
	for _, u := range users {
		if u.MaxConcurrentBots > 0 {
			stats.TotalAccounts++
			stats.TotalContractedBots += u.MaxConcurrentBots
		}
	}

	s.log.Debugw("computed billing stats",
		"total_accounts", stats.TotalAccounts,
		"total_contracted_bots", stats.TotalContractedBots,
	)
	return stats, nil
}
