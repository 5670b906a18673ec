package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"gorm.io/gorm"
)

func TestNewServiceRequiresCollaborators(t *testing.T) {
	engine := search.NewMemoryEngine()
	provider := NewUUIDProvider()
	db := &gorm.DB{}

	testCases := []struct {
		name   string
		config ServiceConfig
		want   error
	}{
		{name: "database", config: ServiceConfig{Engine: engine, IndexName: "faq", IDProvider: provider}, want: errMissingDatabase},
		{name: "engine", config: ServiceConfig{Database: db, IndexName: "faq", IDProvider: provider}, want: errMissingEngine},
		{name: "index", config: ServiceConfig{Database: db, Engine: engine, IDProvider: provider}, want: errMissingIndexName},
		{name: "id provider", config: ServiceConfig{Database: db, Engine: engine, IndexName: "faq"}, want: errMissingIDProvider},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := NewService(testCase.config)
			if !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
			if KindOf(err) != ErrorKindInternal {
				t.Fatalf("expected internal kind, got %s", KindOf(err))
			}
		})
	}
}

func TestZeroServiceReportsMissingDependencies(t *testing.T) {
	service := &Service{}
	_, err := service.ListPosts(context.Background(), ListFilters{})
	if !errors.Is(err, errMissingDatabase) {
		t.Fatalf("expected missing database error, got %v", err)
	}
	if CodeOf(err) != "catalog.list_posts.missing_database" {
		t.Fatalf("unexpected code %q", CodeOf(err))
	}
}

func TestRecordViewIncrementsPublicPostsOnly(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "irs")
	public := fixture.mustPost(t, seedPost{title: "public", agencyID: agency.ID, views: 4, updatedAt: 77})
	private := fixture.mustPost(t, seedPost{title: "private", agencyID: agency.ID, status: PostStatusPrivate})

	if err := fixture.service.RecordView(context.Background(), public.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := fixture.loadPost(t, public.ID)
	if stored.Views != 5 {
		t.Fatalf("expected 5 views, got %d", stored.Views)
	}
	if stored.UpdatedAtSeconds != 77 {
		t.Fatalf("expected update time untouched, got %d", stored.UpdatedAtSeconds)
	}

	if err := fixture.service.RecordView(context.Background(), private.ID); KindOf(err) != ErrorKindMissingPublicPost {
		t.Fatalf("expected missing public post, got %v", err)
	}
}

func TestErrorKindStringsAreStable(t *testing.T) {
	if ErrorKindTagDoesNotExist.String() != "tag_does_not_exist" {
		t.Fatalf("unexpected kind string %q", ErrorKindTagDoesNotExist.String())
	}
	if KindOf(errors.New("foreign")) != ErrorKindInternal {
		t.Fatalf("expected foreign errors to map to internal")
	}
	if CodeOf(errors.New("foreign")) != "" {
		t.Fatalf("expected empty code for foreign errors")
	}
}
