package catalog

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"go.uber.org/zap"
)

const (
	opTriggerBackfill        = "catalog.trigger_backfill"
	reasonRunIDFailed        = "run_id_failed"
	reasonIndexProbeFailed   = "index_probe_failed"
	reasonIndexSetupFailed   = "index_setup_failed"
	reasonBackfillReadFailed = "catalog_read_failed"
	reasonBulkFailed         = "bulk_failed"
)

// BackfillReport summarises one reindex run. Failures lists documents the engine rejected
// inside otherwise successful bulk requests.
type BackfillReport struct {
	RunID    string
	Index    string
	Indexed  int
	Failures []search.DocumentFailure
}

// TriggerBackfill rebuilds the index from every public post. Documents are keyed by post id,
// so a re-run overwrites rather than duplicates. An empty indexName targets the service index.
func (s *Service) TriggerBackfill(ctx context.Context, indexName string) (BackfillReport, error) {
	if err := s.ready(opTriggerBackfill); err != nil {
		return BackfillReport{}, err
	}
	index := strings.TrimSpace(indexName)
	if index == "" {
		index = s.indexName
	}

	runID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opTriggerBackfill, reasonRunIDFailed, err)
		return BackfillReport{}, newServiceError(ErrorKindInternal, opTriggerBackfill, reasonRunIDFailed, err)
	}
	report := BackfillReport{RunID: runID, Index: index}
	runFields := []zap.Field{zap.String("run_id", runID), zap.String(fieldIndex, index)}

	if err := s.ensureIndex(ctx, index, runFields); err != nil {
		return report, err
	}

	listing, err := s.ListPosts(ctx, ListFilters{Sort: SortPopularity})
	if err != nil {
		return report, err
	}

	operations := make([]search.BulkOperation, 0, len(listing.Posts))
	for _, view := range listing.Posts {
		answers, err := s.store.ListAnswers(ctx, view.Post.ID)
		if err != nil {
			s.logError(opTriggerBackfill, reasonBackfillReadFailed, err, append(runFields, zap.Uint(fieldPostID, view.Post.ID))...)
			return report, newServiceError(ErrorKindDatabase, opTriggerBackfill, reasonBackfillReadFailed, err)
		}
		operations = append(operations, search.BulkOperation{
			DocumentID: search.DocumentID(view.Post.ID),
			Entry:      s.buildEntry(view.Post, answers),
		})
	}

	for start := 0; start < len(operations); start += s.chunkSize {
		end := min(start+s.chunkSize, len(operations))
		result, err := s.engine.Bulk(ctx, index, operations[start:end])
		if err != nil {
			s.logError(opTriggerBackfill, reasonBulkFailed, err, append(runFields, zap.Int("chunk_start", start))...)
			return report, newServiceError(ErrorKindSearchEngine, opTriggerBackfill, reasonBulkFailed, err)
		}
		report.Indexed += result.Succeeded
		report.Failures = append(report.Failures, result.Failures...)
	}

	if len(report.Failures) > 0 {
		s.loggerOrDefault().Warn("backfill finished with document failures",
			append(runFields, zap.Int("indexed", report.Indexed), zap.Int("failed", len(report.Failures)))...)
	} else {
		s.loggerOrDefault().Info("backfill finished",
			append(runFields, zap.Int("indexed", report.Indexed))...)
	}
	return report, nil
}

func (s *Service) ensureIndex(ctx context.Context, index string, fields []zap.Field) error {
	exists, err := s.engine.IndexExists(ctx, index)
	if err != nil {
		s.logError(opTriggerBackfill, reasonIndexProbeFailed, err, fields...)
		return newServiceError(ErrorKindSearchEngine, opTriggerBackfill, reasonIndexProbeFailed, err)
	}
	if exists {
		return nil
	}
	if err := s.engine.CreateIndex(ctx, index, search.DefaultIndexSettings()); err != nil {
		s.logError(opTriggerBackfill, reasonIndexSetupFailed, err, fields...)
		return newServiceError(ErrorKindSearchEngine, opTriggerBackfill, reasonIndexSetupFailed, err)
	}
	return nil
}
