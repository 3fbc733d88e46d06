package service

import (
	"context"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
)

// Explain returns the execution plan for req. The row limit is not applied
// but the injection guard is.
func (s *Service) Explain(ctx context.Context, req core.ExplainRequest) (*core.ExecutionPlan, error) {
	if err := s.validateText(req.SQL); err != nil {
		return nil, err
	}

	conn, err := s.resolveConnection(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	if err := s.checkGuard(conn.Kind, req.SQL); err != nil {
		return nil, err
	}
	if _, err := conn.BuildConnectionString(); err != nil {
		return nil, err
	}

	ectx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.DefaultTimeoutSecs)*time.Second)
	defer cancel()

	a, err := race(ectx, func(ctx context.Context) (adapter.Adapter, error) {
		return s.pool.Get(ctx, conn)
	})
	if err != nil {
		return nil, err
	}

	plan, err := race(ectx, func(ctx context.Context) (*core.ExecutionPlan, error) {
		return a.Explain(ctx, req.SQL)
	})
	if err != nil {
		s.logger.Debug().Err(err).Int64("connection_id", conn.ID).Msg("explain failed")
		return nil, err
	}

	if s.advisor != nil {
		advice, optimized, err := s.advisor.Advise(ctx, req.SQL, plan)
		if err != nil {
			s.logger.Warn().Err(err).Msg("optimization advice unavailable")
		} else {
			plan.AIOptimizationAdvice = advice
			plan.AIOptimizedSQL = optimized
		}
	}

	return plan, nil
}
