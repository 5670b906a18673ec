package catalog

import (
	"context"
	"testing"

	"github.com/MarcoPoloResearchLab/askgov/internal/search"
)

func TestTriggerBackfillIsIdempotent(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "irs")
	first := fixture.mustPost(t, seedPost{title: "first", agencyID: agency.ID, views: 3})
	second := fixture.mustPost(t, seedPost{title: "second", agencyID: agency.ID, views: 9})
	fixture.mustPost(t, seedPost{title: "pending", agencyID: agency.ID, status: PostStatusPrivate})
	fixture.mustPost(t, seedPost{title: "archived", agencyID: agency.ID, status: PostStatusArchived})
	fixture.mustAnswer(t, first.ID, "<p>one</p>")
	fixture.mustAnswer(t, first.ID, "<p>two</p>")

	for run := 1; run <= 2; run++ {
		report, err := fixture.service.TriggerBackfill(context.Background(), "")
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}
		if report.Indexed != 2 || len(report.Failures) != 0 {
			t.Fatalf("run %d: unexpected report %#v", run, report)
		}
		if report.Index != testIndexName {
			t.Fatalf("run %d: expected default index, got %q", run, report.Index)
		}
	}

	documents := fixture.engine.Documents(testIndexName)
	if len(documents) != 2 {
		t.Fatalf("expected one document per public post, got %d", len(documents))
	}
	firstDocument := documents[search.DocumentID(first.ID)]
	if len(firstDocument.Answers) != 2 || firstDocument.Answers[0] != "one" || firstDocument.Answers[1] != "two" {
		t.Fatalf("unexpected answers: %#v", firstDocument.Answers)
	}
	if _, ok := documents[search.DocumentID(second.ID)]; !ok {
		t.Fatalf("expected document for post %d", second.ID)
	}
}

func TestTriggerBackfillCreatesMissingIndex(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "irs")
	fixture.mustPost(t, seedPost{title: "first", agencyID: agency.ID})

	report, err := fixture.service.TriggerBackfill(context.Background(), "faq_rebuild")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RunID != "run-1" {
		t.Fatalf("expected run id from provider, got %q", report.RunID)
	}
	exists, err := fixture.engine.IndexExists(context.Background(), "faq_rebuild")
	if err != nil || !exists {
		t.Fatalf("expected index to be created, exists=%v err=%v", exists, err)
	}
	if len(fixture.engine.Documents("faq_rebuild")) != 1 {
		t.Fatalf("expected document in the requested index")
	}
}

func TestTriggerBackfillSubmitsChunks(t *testing.T) {
	fixture := newTestCatalogWithChunk(t, 2)
	agency := fixture.mustAgency(t, "irs")
	for index := 0; index < 5; index++ {
		fixture.mustPost(t, seedPost{title: "post", agencyID: agency.ID})
	}
	counting := &countingEngine{flakyEngine: fixture.engine}
	fixture.service.engine = counting

	report, err := fixture.service.TriggerBackfill(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 5 {
		t.Fatalf("expected 5 indexed, got %d", report.Indexed)
	}
	if counting.bulkCalls != 3 {
		t.Fatalf("expected 3 bulk calls, got %d", counting.bulkCalls)
	}
}

func TestTriggerBackfillCollectsDocumentFailures(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "irs")
	kept := fixture.mustPost(t, seedPost{title: "kept", agencyID: agency.ID})
	rejected := fixture.mustPost(t, seedPost{title: "rejected", agencyID: agency.ID})
	fixture.service.engine = &rejectingEngine{flakyEngine: fixture.engine, rejectID: search.DocumentID(rejected.ID)}

	report, err := fixture.service.TriggerBackfill(context.Background(), "")
	if err != nil {
		t.Fatalf("expected partial failures to be non-fatal, got %v", err)
	}
	if report.Indexed != 1 || len(report.Failures) != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if report.Failures[0].DocumentID != search.DocumentID(rejected.ID) {
		t.Fatalf("unexpected failure: %#v", report.Failures[0])
	}
	if _, ok := fixture.engine.Documents(testIndexName)[search.DocumentID(kept.ID)]; !ok {
		t.Fatalf("expected accepted document to stay indexed")
	}
}

func TestTriggerBackfillFailsOnBulkError(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "irs")
	fixture.mustPost(t, seedPost{title: "first", agencyID: agency.ID})
	fixture.engine.failBulk = true

	_, err := fixture.service.TriggerBackfill(context.Background(), "")
	if KindOf(err) != ErrorKindSearchEngine {
		t.Fatalf("expected search engine error, got %v", err)
	}
}

type countingEngine struct {
	*flakyEngine
	bulkCalls int
}

func (e *countingEngine) Bulk(ctx context.Context, index string, operations []search.BulkOperation) (search.BulkResult, error) {
	e.bulkCalls++
	return e.flakyEngine.Bulk(ctx, index, operations)
}

type rejectingEngine struct {
	*flakyEngine
	rejectID string
}

func (e *rejectingEngine) Bulk(ctx context.Context, index string, operations []search.BulkOperation) (search.BulkResult, error) {
	accepted := make([]search.BulkOperation, 0, len(operations))
	var failures []search.DocumentFailure
	for _, operation := range operations {
		if operation.DocumentID == e.rejectID {
			failures = append(failures, search.DocumentFailure{
				DocumentID: operation.DocumentID,
				Status:     400,
				Type:       "mapper_parsing_exception",
				Reason:     "failed to parse",
			})
			continue
		}
		accepted = append(accepted, operation)
	}
	result, err := e.flakyEngine.Bulk(ctx, index, accepted)
	if err != nil {
		return search.BulkResult{}, err
	}
	result.Failures = append(result.Failures, failures...)
	return result, nil
}
