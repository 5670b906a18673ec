package catalog

import (
	"context"
	"fmt"
	"sort"
)

// ListFilters narrows a listing. Zero values mean "not requested"; Size > 0 enables pagination
// and Page is 1-indexed, defaulting to 1.
type ListFilters struct {
	Sort       SortMode
	TagNames   []string
	TopicNames []string
	AgencyID   *uint
	Page       int
	Size       int
}

// ListResult holds one page and the size of the full filtered set.
type ListResult struct {
	Posts      []PostView
	TotalItems int
}

type listScope int

const (
	// scopePublic admits public posts only.
	scopePublic listScope = iota
	// scopeAnswerable admits every post that is not archived.
	scopeAnswerable
)

// Lister applies filters, sorting and slicing to the catalog.
type Lister struct {
	posts   PostRepository
	answers AnswerLookup
	filters *FilterValidator
	tree    *TopicTreeResolver
}

// NewLister constructs a Lister.
func NewLister(posts PostRepository, answers AnswerLookup, filters *FilterValidator, tree *TopicTreeResolver) *Lister {
	return &Lister{posts: posts, answers: answers, filters: filters, tree: tree}
}

func (l *Lister) list(ctx context.Context, filters ListFilters, scope listScope, unansweredOnly bool) (ListResult, error) {
	if filters.Page < 0 || filters.Size < 0 {
		return ListResult{}, fmt.Errorf("%w: page and size must not be negative", ErrInvalidInput)
	}
	sortMode := filters.Sort
	if sortMode == "" {
		sortMode = SortRecency
	}

	query := PostQuery{AgencyID: filters.AgencyID}
	switch scope {
	case scopeAnswerable:
		query.ExcludeStatuses = []PostStatus{PostStatusArchived}
	default:
		query.Statuses = []PostStatus{PostStatusPublic}
	}

	tags, err := l.filters.ValidateTags(ctx, filters.TagNames)
	if err != nil {
		return ListResult{}, err
	}
	for _, tag := range tags {
		query.TagIDs = append(query.TagIDs, tag.ID)
	}

	if len(normalizeNames(filters.TopicNames)) > 0 {
		if filters.AgencyID == nil {
			return ListResult{}, fmt.Errorf("%w: topic filters require an agency", ErrInvalidTopics)
		}
		topics, err := l.filters.ValidateTopics(ctx, *filters.AgencyID, filters.TopicNames)
		if err != nil {
			return ListResult{}, err
		}
		rootIDs := make([]uint, 0, len(topics))
		for _, topic := range topics {
			rootIDs = append(rootIDs, topic.ID)
		}
		closure, err := l.tree.Expand(ctx, *filters.AgencyID, rootIDs)
		if err != nil {
			return ListResult{}, err
		}
		query.TopicIDs = closure
	}

	posts, err := l.posts.QueryPosts(ctx, query)
	if err != nil {
		return ListResult{}, err
	}
	sortPosts(posts, sortMode)

	if unansweredOnly {
		posts, err = l.withoutAnswers(ctx, posts)
		if err != nil {
			return ListResult{}, err
		}
	}

	total := len(posts)
	page := paginate(posts, filters.Page, filters.Size)
	views, err := attachTags(ctx, l.posts, page)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Posts: views, TotalItems: total}, nil
}

func (l *Lister) withoutAnswers(ctx context.Context, posts []Post) ([]Post, error) {
	if len(posts) == 0 {
		return posts, nil
	}
	ids := make([]uint, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	counts, err := l.answers.CountAnswers(ctx, ids)
	if err != nil {
		return nil, err
	}
	unanswered := make([]Post, 0, len(posts))
	for _, post := range posts {
		if counts[post.ID] == 0 {
			unanswered = append(unanswered, post)
		}
	}
	return unanswered, nil
}

// sortPosts orders in place; residual ties break by ascending id.
func sortPosts(posts []Post, mode SortMode) {
	sort.SliceStable(posts, func(i, j int) bool {
		left, right := posts[i], posts[j]
		switch mode {
		case SortPopularity:
			if left.Views != right.Views {
				return left.Views > right.Views
			}
		default:
			if left.UpdatedAtSeconds != right.UpdatedAtSeconds {
				return left.UpdatedAtSeconds > right.UpdatedAtSeconds
			}
		}
		return left.ID < right.ID
	})
}

// paginate returns the [(page-1)*size, page*size) window, or everything when size is zero.
func paginate(posts []Post, page, size int) []Post {
	if size <= 0 {
		return posts
	}
	if page <= 0 {
		page = 1
	}
	// Compare page counts before multiplying so huge page or size values cannot overflow.
	if len(posts) == 0 || page-1 > (len(posts)-1)/size {
		return []Post{}
	}
	start := (page - 1) * size
	end := min(start+size, len(posts))
	return posts[start:end]
}

func attachTags(ctx context.Context, posts PostRepository, page []Post) ([]PostView, error) {
	ids := make([]uint, 0, len(page))
	for _, post := range page {
		ids = append(ids, post.ID)
	}
	tagsByPost, err := posts.TagsForPosts(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]PostView, 0, len(page))
	for _, post := range page {
		views = append(views, PostView{Post: post, Tags: tagsByPost[post.ID]})
	}
	return views, nil
}
