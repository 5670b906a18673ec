package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew           = "catalog.service.new"
	opListPosts            = "catalog.list_posts"
	opListAnswerablePosts  = "catalog.list_answerable_posts"
	opGetSinglePost        = "catalog.get_single_post"
	opRecordView           = "catalog.record_view"
	defaultBackfillChunk   = 500
	fieldPostID            = "post_id"
	fieldAgencyID          = "agency_id"
	fieldIndex             = "index"
	reasonMissingDatabase  = "missing_database"
	reasonMissingEngine    = "missing_engine"
	reasonQueryFailed      = "query_failed"
	reasonInvalidTags      = "invalid_tags"
	reasonInvalidTopics    = "invalid_topics"
	reasonInvalidInput     = "invalid_input"
	reasonMissingPublic    = "missing_public_post"
	reasonRelatedFailed    = "related_posts_failed"
	reasonIncrementFailed  = "increment_failed"
	reasonMissingIndexName = "missing_index_name"
)

var noOpLogger = zap.NewNop()

// ServiceConfig describes the collaborators of the catalog service.
type ServiceConfig struct {
	Database          *gorm.DB
	Engine            search.Engine
	IndexName         string
	Sanitizer         search.Sanitizer
	Clock             func() time.Time
	IDProvider        IDProvider
	Logger            *zap.Logger
	BackfillChunkSize int
}

// Service exposes catalog listing, retrieval and dual-written mutations.
type Service struct {
	store      *Store
	engine     search.Engine
	indexName  string
	sanitizer  search.Sanitizer
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	chunkSize  int
	filters    *FilterValidator
	tree       *TopicTreeResolver
	lister     *Lister
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(ErrorKindInternal, opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.Engine == nil {
		return nil, newServiceError(ErrorKindInternal, opServiceNew, reasonMissingEngine, errMissingEngine)
	}
	if cfg.IndexName == "" {
		return nil, newServiceError(ErrorKindInternal, opServiceNew, reasonMissingIndexName, errMissingIndexName)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(ErrorKindInternal, opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = search.NewPlainTextSanitizer()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	chunkSize := cfg.BackfillChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultBackfillChunk
	}

	store := NewStore(cfg.Database)
	filters := NewFilterValidator(store, store)
	tree := NewTopicTreeResolver(store)

	return &Service{
		store:      store,
		engine:     cfg.Engine,
		indexName:  cfg.IndexName,
		sanitizer:  sanitizer,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		chunkSize:  chunkSize,
		filters:    filters,
		tree:       tree,
		lister:     NewLister(store, store, filters, tree),
	}, nil
}

// IndexName reports the search index kept in sync by the write paths.
func (s *Service) IndexName() string {
	return s.indexName
}

// ListPosts lists public posts under the filters.
func (s *Service) ListPosts(ctx context.Context, filters ListFilters) (ListResult, error) {
	if err := s.ready(opListPosts); err != nil {
		return ListResult{}, err
	}
	result, err := s.lister.list(ctx, filters, scopePublic, false)
	if err != nil {
		return ListResult{}, s.listingError(opListPosts, err)
	}
	return result, nil
}

// ListAnswerablePosts lists every non-archived post of the staff member's agency. When
// withAnswers is false, posts that already have an answer are left out before pagination.
func (s *Service) ListAnswerablePosts(ctx context.Context, agencyID uint, filters ListFilters, withAnswers bool) (ListResult, error) {
	if err := s.ready(opListAnswerablePosts); err != nil {
		return ListResult{}, err
	}
	filters.AgencyID = &agencyID
	result, err := s.lister.list(ctx, filters, scopeAnswerable, !withAnswers)
	if err != nil {
		return ListResult{}, s.listingError(opListAnswerablePosts, err, zap.Uint(fieldAgencyID, agencyID))
	}
	return result, nil
}

// GetSinglePost returns a public post and, when relatedCount > 0, up to that many related posts.
func (s *Service) GetSinglePost(ctx context.Context, postID uint, relatedCount int) (PostDetail, error) {
	if err := s.ready(opGetSinglePost); err != nil {
		return PostDetail{}, err
	}

	post, err := s.store.FindPost(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && post.Status != PostStatusPublic) {
		return PostDetail{}, newServiceError(ErrorKindMissingPublicPost, opGetSinglePost, reasonMissingPublic, ErrMissingPublicPost)
	}
	if err != nil {
		s.logError(opGetSinglePost, reasonQueryFailed, err, zap.Uint(fieldPostID, postID))
		return PostDetail{}, newServiceError(ErrorKindDatabase, opGetSinglePost, reasonQueryFailed, err)
	}

	tagsByPost, err := s.store.TagsForPosts(ctx, []uint{post.ID})
	if err != nil {
		s.logError(opGetSinglePost, reasonQueryFailed, err, zap.Uint(fieldPostID, postID))
		return PostDetail{}, newServiceError(ErrorKindDatabase, opGetSinglePost, reasonQueryFailed, err)
	}
	detail := PostDetail{PostView: PostView{Post: post, Tags: tagsByPost[post.ID]}}

	if relatedCount > 0 {
		related, err := s.relatedPosts(ctx, detail.PostView, relatedCount)
		if err != nil {
			s.logError(opGetSinglePost, reasonRelatedFailed, err, zap.Uint(fieldPostID, postID))
			return PostDetail{}, newServiceError(ErrorKindDatabase, opGetSinglePost, reasonRelatedFailed, err)
		}
		detail.RelatedPosts = related
	}
	return detail, nil
}

// RecordView increments the view counter of a public post.
func (s *Service) RecordView(ctx context.Context, postID uint) error {
	if err := s.ready(opRecordView); err != nil {
		return err
	}
	affected, err := s.store.IncrementViews(ctx, postID)
	if err != nil {
		s.logError(opRecordView, reasonIncrementFailed, err, zap.Uint(fieldPostID, postID))
		return newServiceError(ErrorKindDatabase, opRecordView, reasonIncrementFailed, err)
	}
	if affected == 0 {
		return newServiceError(ErrorKindMissingPublicPost, opRecordView, reasonMissingPublic, ErrMissingPublicPost)
	}
	return nil
}

func (s *Service) relatedPosts(ctx context.Context, source PostView, limit int) ([]PostView, error) {
	agencyID := source.Post.AgencyID
	candidates, err := s.store.QueryPosts(ctx, PostQuery{
		Statuses: []PostStatus{PostStatusPublic},
		AgencyID: &agencyID,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	tagsByPost, err := s.store.TagsForPosts(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranked := rankRelated(relatedSource{
		PostID:   source.Post.ID,
		AgencyID: agencyID,
		TopicID:  source.Post.TopicID,
		TagIDs:   tagIDsOf(source.Tags),
	}, toRelatedCandidates(candidates, tagsByPost), limit)

	views := make([]PostView, 0, len(ranked))
	for _, candidate := range ranked {
		views = append(views, PostView{Post: candidate.Post, Tags: tagsByPost[candidate.Post.ID]})
	}
	return views, nil
}

func toRelatedCandidates(posts []Post, tagsByPost map[uint][]Tag) []relatedCandidate {
	candidates := make([]relatedCandidate, 0, len(posts))
	for _, post := range posts {
		candidates = append(candidates, relatedCandidate{Post: post, TagIDs: tagIDsOf(tagsByPost[post.ID])})
	}
	return candidates
}

func tagIDsOf(tags []Tag) []uint {
	ids := make([]uint, 0, len(tags))
	for _, tag := range tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

func (s *Service) listingError(operation string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, ErrInvalidTags):
		return newServiceError(ErrorKindInvalidTags, operation, reasonInvalidTags, err)
	case errors.Is(err, ErrInvalidTopics):
		return newServiceError(ErrorKindInvalidTopics, operation, reasonInvalidTopics, err)
	case errors.Is(err, ErrInvalidInput):
		return newServiceError(ErrorKindInvalidInput, operation, reasonInvalidInput, err)
	default:
		s.logError(operation, reasonQueryFailed, err, fields...)
		return newServiceError(ErrorKindDatabase, operation, reasonQueryFailed, err)
	}
}

func (s *Service) ready(operation string) error {
	if s.store == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(ErrorKindInternal, operation, reasonMissingDatabase, errMissingDatabase)
	}
	if s.engine == nil {
		s.logError(operation, reasonMissingEngine, errMissingEngine)
		return newServiceError(ErrorKindInternal, operation, reasonMissingEngine, errMissingEngine)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("catalog service error", attrs...)
}
