package catalog

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRankRelatedPrefersTopicThenSharedTags(t *testing.T) {
	c := qt.New(t)
	const (
		tagA = uint(1)
		tagB = uint(2)
		tagC = uint(3)
	)
	topicG, topicH := uint(10), uint(11)

	source := relatedSource{PostID: 1, AgencyID: 7, TopicID: &topicG, TagIDs: []uint{tagA, tagB}}
	candidates := []relatedCandidate{
		{Post: Post{ID: 1, AgencyID: 7, Status: PostStatusPublic, TopicID: &topicG}, TagIDs: []uint{tagA, tagB}},
		{Post: Post{ID: 2, AgencyID: 7, Status: PostStatusPublic, TopicID: &topicH}, TagIDs: []uint{tagA}},
		{Post: Post{ID: 3, AgencyID: 7, Status: PostStatusPublic, TopicID: &topicG}, TagIDs: []uint{tagA, tagB, tagC}},
	}

	ranked := rankRelated(source, candidates, 2)
	c.Assert(relatedIDs(ranked), qt.DeepEquals, []uint{3, 2})
}

func TestRankRelatedOrdering(t *testing.T) {
	topic := uint(5)
	source := relatedSource{PostID: 100, AgencyID: 1, TopicID: &topic, TagIDs: []uint{1, 2}}

	tests := []struct {
		name       string
		candidates []relatedCandidate
		limit      int
		want       []uint
	}{
		{
			name: "views break tag ties",
			candidates: []relatedCandidate{
				{Post: Post{ID: 1, AgencyID: 1, Status: PostStatusPublic, Views: 3}, TagIDs: []uint{1}},
				{Post: Post{ID: 2, AgencyID: 1, Status: PostStatusPublic, Views: 8}, TagIDs: []uint{2}},
			},
			limit: 5,
			want:  []uint{2, 1},
		},
		{
			name: "id breaks residual ties",
			candidates: []relatedCandidate{
				{Post: Post{ID: 9, AgencyID: 1, Status: PostStatusPublic}},
				{Post: Post{ID: 4, AgencyID: 1, Status: PostStatusPublic}},
			},
			limit: 5,
			want:  []uint{4, 9},
		},
		{
			name: "duplicate tag links count once",
			candidates: []relatedCandidate{
				{Post: Post{ID: 1, AgencyID: 1, Status: PostStatusPublic}, TagIDs: []uint{1, 1, 1}},
				{Post: Post{ID: 2, AgencyID: 1, Status: PostStatusPublic}, TagIDs: []uint{1, 2}},
			},
			limit: 5,
			want:  []uint{2, 1},
		},
		{
			name: "excludes source, non-public and foreign posts",
			candidates: []relatedCandidate{
				{Post: Post{ID: 100, AgencyID: 1, Status: PostStatusPublic, TopicID: &topic}, TagIDs: []uint{1, 2}},
				{Post: Post{ID: 1, AgencyID: 1, Status: PostStatusPrivate, TopicID: &topic}, TagIDs: []uint{1, 2}},
				{Post: Post{ID: 2, AgencyID: 1, Status: PostStatusArchived, TopicID: &topic}, TagIDs: []uint{1, 2}},
				{Post: Post{ID: 3, AgencyID: 2, Status: PostStatusPublic, TopicID: &topic}, TagIDs: []uint{1, 2}},
				{Post: Post{ID: 4, AgencyID: 1, Status: PostStatusPublic}},
			},
			limit: 5,
			want:  []uint{4},
		},
		{
			name: "zero limit",
			candidates: []relatedCandidate{
				{Post: Post{ID: 1, AgencyID: 1, Status: PostStatusPublic}},
			},
			limit: 0,
			want:  []uint{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(relatedIDs(rankRelated(source, test.candidates, test.limit)), qt.DeepEquals, test.want)
		})
	}
}

func relatedIDs(candidates []relatedCandidate) []uint {
	ids := make([]uint, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.Post.ID)
	}
	return ids
}

func TestGetSinglePostReturnsRelatedPosts(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "uscis")
	other := fixture.mustAgency(t, "fema")
	tagA := fixture.mustTag(t, "A")
	tagB := fixture.mustTag(t, "B")
	tagC := fixture.mustTag(t, "C")
	topicG := fixture.mustTopic(t, agency.ID, "G", nil)
	topicH := fixture.mustTopic(t, agency.ID, "H", nil)

	p1 := fixture.mustPost(t, seedPost{title: "p1", agencyID: agency.ID, topic: &topicG, tags: []Tag{tagA, tagB}})
	p2 := fixture.mustPost(t, seedPost{title: "p2", agencyID: agency.ID, topic: &topicH, tags: []Tag{tagA}})
	p3 := fixture.mustPost(t, seedPost{title: "p3", agencyID: agency.ID, topic: &topicG, tags: []Tag{tagA, tagB, tagC}})
	fixture.mustPost(t, seedPost{title: "hidden", agencyID: agency.ID, status: PostStatusPrivate, topic: &topicG, tags: []Tag{tagA, tagB}})
	fixture.mustPost(t, seedPost{title: "foreign", agencyID: other.ID, tags: []Tag{tagA, tagB}, views: 1000})

	detail, err := fixture.service.GetSinglePost(context.Background(), p1.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Post.ID != p1.ID {
		t.Fatalf("expected post %d, got %d", p1.ID, detail.Post.ID)
	}
	if len(detail.Tags) != 2 {
		t.Fatalf("expected two tags on the source post, got %d", len(detail.Tags))
	}
	got := postIDs(detail.RelatedPosts)
	if len(got) != 2 || got[0] != p3.ID || got[1] != p2.ID {
		t.Fatalf("expected related [%d %d], got %v", p3.ID, p2.ID, got)
	}

	withoutRelated, err := fixture.service.GetSinglePost(context.Background(), p1.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withoutRelated.RelatedPosts != nil {
		t.Fatalf("expected no related posts when none are requested")
	}
}

func TestGetSinglePostRejectsNonPublicPosts(t *testing.T) {
	fixture := newTestCatalog(t)
	agency := fixture.mustAgency(t, "nps")
	private := fixture.mustPost(t, seedPost{title: "private", agencyID: agency.ID, status: PostStatusPrivate})

	for _, postID := range []uint{private.ID, private.ID + 100} {
		_, err := fixture.service.GetSinglePost(context.Background(), postID, 3)
		if KindOf(err) != ErrorKindMissingPublicPost {
			t.Fatalf("expected missing public post for %d, got %v", postID, err)
		}
	}
}
