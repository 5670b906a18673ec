package catalog

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	columnID       = "id"
	columnPostID   = "post_id"
	columnStatus   = "status"
	columnViews    = "views"
	orderIDAsc     = columnID + " ASC"
	queryIDIn      = columnID + " IN ?"
	queryPostIDIn  = columnPostID + " IN ?"
	queryPostID    = columnPostID + " = ?"
	queryAgencyID  = "agency_id = ?"
	queryTagNameIn = "tag_name IN ?"
)

// TagRepository resolves global tags.
type TagRepository interface {
	FindTagsByNames(ctx context.Context, names []string) ([]Tag, error)
}

// TopicRepository resolves agency-scoped topics.
type TopicRepository interface {
	FindTopicsByNames(ctx context.Context, agencyID uint, names []string) ([]Topic, error)
	ListAgencyTopics(ctx context.Context, agencyID uint) ([]Topic, error)
}

// PostRepository reads posts under predicates.
type PostRepository interface {
	QueryPosts(ctx context.Context, query PostQuery) ([]Post, error)
	TagsForPosts(ctx context.Context, postIDs []uint) (map[uint][]Tag, error)
}

// AnswerLookup reads answers; used to count answers and to assemble search entries.
type AnswerLookup interface {
	ListAnswers(ctx context.Context, postID uint) ([]Answer, error)
	CountAnswers(ctx context.Context, postIDs []uint) (map[uint]int64, error)
}

// PostQuery is a conjunction of post predicates; empty fields admit everything.
type PostQuery struct {
	Statuses        []PostStatus
	ExcludeStatuses []PostStatus
	AgencyID        *uint
	TagIDs          []uint
	TopicIDs        []uint
}

// Store is the relational catalog repository. A Store obtained through WithinTransaction
// runs every call inside that transaction.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithinTransaction runs fn in one relational transaction; any returned error rolls it back.
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(&Store{db: transaction})
	})
}

func (s *Store) FindTagsByNames(ctx context.Context, names []string) ([]Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var tags []Tag
	if err := s.db.WithContext(ctx).Where(queryTagNameIn, names).Order(orderIDAsc).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *Store) FindTopicsByNames(ctx context.Context, agencyID uint, names []string) ([]Topic, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var topics []Topic
	if err := s.db.WithContext(ctx).
		Where(queryAgencyID+" AND name IN ?", agencyID, names).
		Order(orderIDAsc).
		Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

func (s *Store) ListAgencyTopics(ctx context.Context, agencyID uint) ([]Topic, error) {
	var topics []Topic
	if err := s.db.WithContext(ctx).Where(queryAgencyID, agencyID).Order(orderIDAsc).Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

// FindAgencyTopic returns gorm.ErrRecordNotFound when the topic is absent or owned by another agency.
func (s *Store) FindAgencyTopic(ctx context.Context, agencyID uint, topicID uint) (Topic, error) {
	var topic Topic
	err := s.db.WithContext(ctx).Where(columnID+" = ? AND "+queryAgencyID, topicID, agencyID).Take(&topic).Error
	return topic, err
}

func (s *Store) QueryPosts(ctx context.Context, query PostQuery) ([]Post, error) {
	statement := s.db.WithContext(ctx).Model(&Post{})
	if len(query.Statuses) > 0 {
		statement = statement.Where(columnStatus+" IN ?", statusStrings(query.Statuses))
	}
	if len(query.ExcludeStatuses) > 0 {
		statement = statement.Where(columnStatus+" NOT IN ?", statusStrings(query.ExcludeStatuses))
	}
	if query.AgencyID != nil {
		statement = statement.Where(queryAgencyID, *query.AgencyID)
	}
	if len(query.TagIDs) > 0 {
		tagged := s.db.WithContext(ctx).Model(&PostTag{}).Select(columnPostID).Where("tag_id IN ?", query.TagIDs)
		statement = statement.Where(columnID+" IN (?)", tagged)
	}
	if len(query.TopicIDs) > 0 {
		statement = statement.Where("topic_id IN ?", query.TopicIDs)
	}

	var posts []Post
	if err := statement.Order(orderIDAsc).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) TagsForPosts(ctx context.Context, postIDs []uint) (map[uint][]Tag, error) {
	result := make(map[uint][]Tag, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	var links []PostTag
	if err := s.db.WithContext(ctx).Where(queryPostIDIn, postIDs).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return result, nil
	}

	tagIDs := make([]uint, 0, len(links))
	seen := make(map[uint]struct{}, len(links))
	for _, link := range links {
		if _, ok := seen[link.TagID]; ok {
			continue
		}
		seen[link.TagID] = struct{}{}
		tagIDs = append(tagIDs, link.TagID)
	}

	var tags []Tag
	if err := s.db.WithContext(ctx).Where(queryIDIn, tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	tagsByID := make(map[uint]Tag, len(tags))
	for _, tag := range tags {
		tagsByID[tag.ID] = tag
	}

	for _, link := range links {
		if tag, ok := tagsByID[link.TagID]; ok {
			result[link.PostID] = append(result[link.PostID], tag)
		}
	}
	for postID := range result {
		postTags := result[postID]
		sort.Slice(postTags, func(i, j int) bool {
			return postTags[i].TagName < postTags[j].TagName
		})
	}
	return result, nil
}

// FindPost returns gorm.ErrRecordNotFound when the post is absent.
func (s *Store) FindPost(ctx context.Context, postID uint) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where(columnID+" = ?", postID).Take(&post).Error
	return post, err
}

// LockPost reads the post with a row lock where the dialect supports one.
func (s *Store) LockPost(ctx context.Context, postID uint) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(columnID+" = ?", postID).
		Take(&post).Error
	return post, err
}

func (s *Store) CreatePost(ctx context.Context, post *Post) error {
	return s.db.WithContext(ctx).Create(post).Error
}

func (s *Store) SavePost(ctx context.Context, post *Post) error {
	return s.db.WithContext(ctx).Save(post).Error
}

// ReplacePostTags makes tagIDs the exact tag set of the post.
func (s *Store) ReplacePostTags(ctx context.Context, postID uint, tagIDs []uint, nowSeconds int64) error {
	if err := s.db.WithContext(ctx).Where(queryPostID, postID).Delete(&PostTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	links := make([]PostTag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		links = append(links, PostTag{
			PostID:           postID,
			TagID:            tagID,
			CreatedAtSeconds: nowSeconds,
			UpdatedAtSeconds: nowSeconds,
		})
	}
	return s.db.WithContext(ctx).Create(&links).Error
}

// IncrementViews bumps the counter of a public post without touching its update time.
func (s *Store) IncrementViews(ctx context.Context, postID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&Post{}).
		Where(columnID+" = ? AND "+columnStatus+" = ?", postID, string(PostStatusPublic)).
		UpdateColumn(columnViews, gorm.Expr(columnViews+" + ?", 1))
	return result.RowsAffected, result.Error
}

func (s *Store) ListAnswers(ctx context.Context, postID uint) ([]Answer, error) {
	var answers []Answer
	if err := s.db.WithContext(ctx).Where(queryPostID, postID).Order(orderIDAsc).Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

type answerCount struct {
	PostID uint
	Total  int64
}

func (s *Store) CountAnswers(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []answerCount
	if err := s.db.WithContext(ctx).
		Model(&Answer{}).
		Select(columnPostID + ", COUNT(*) AS total").
		Where(queryPostIDIn, postIDs).
		Group(columnPostID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

func (s *Store) CreateAnswer(ctx context.Context, answer *Answer) error {
	return s.db.WithContext(ctx).Create(answer).Error
}

func statusStrings(statuses []PostStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return values
}
