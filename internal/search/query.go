package search

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

var errMissingEngine = errors.New("search: engine is required")

// QueryService passes free-text queries through to the engine's own relevance ranking.
type QueryService struct {
	engine Engine
	logger *zap.Logger
}

// NewQueryService constructs a QueryService.
func NewQueryService(engine Engine, logger *zap.Logger) (*QueryService, error) {
	if engine == nil {
		return nil, errMissingEngine
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{engine: engine, logger: logger}, nil
}

// SearchPosts runs a typo-tolerant match over title, description and answers.
func (s *QueryService) SearchPosts(ctx context.Context, index string, text string, agencyID *uint) ([]Hit, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	hits, err := s.engine.Search(ctx, index, Query{Text: trimmed, AgencyID: agencyID})
	if err != nil {
		s.logger.Error("search query failed",
			zap.String("operation", opSearch),
			zap.String("index", index),
			zap.Error(err))
		return nil, err
	}
	return hits, nil
}
