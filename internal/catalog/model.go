package catalog

import (
	"fmt"
	"strings"
)

// PostStatus enumerates the visibility lifecycle of a post.
type PostStatus string

const (
	// PostStatusPublic marks a post visible to the public and present in the search index.
	PostStatusPublic PostStatus = "PUBLIC"
	// PostStatusPrivate marks a post awaiting its first answer.
	PostStatusPrivate PostStatus = "PRIVATE"
	// PostStatusArchived marks a soft-deleted post.
	PostStatusArchived PostStatus = "ARCHIVED"
)

// ParsePostStatus validates raw input; empty input defaults to private.
func ParsePostStatus(rawInput string) (PostStatus, error) {
	switch PostStatus(strings.ToUpper(strings.TrimSpace(rawInput))) {
	case "", PostStatusPrivate:
		return PostStatusPrivate, nil
	case PostStatusPublic:
		return PostStatusPublic, nil
	case PostStatusArchived:
		return PostStatusArchived, nil
	default:
		return "", fmt.Errorf("%w: unknown post status %q", ErrInvalidInput, rawInput)
	}
}

// TagType distinguishes agency tags from free classification labels.
type TagType string

const (
	// TagTypeAgency identifies the owning agency.
	TagTypeAgency TagType = "AGENCY"
	// TagTypeTopic is a free label independent of the topic tree.
	TagTypeTopic TagType = "TOPIC"
)

// SortMode selects the ordering of listed posts.
type SortMode string

const (
	// SortRecency orders by most recently updated first.
	SortRecency SortMode = "recent"
	// SortPopularity orders by highest view count first.
	SortPopularity SortMode = "popular"
)

// ParseSortMode validates raw input; empty input defaults to recency.
func ParseSortMode(rawInput string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(rawInput))) {
	case "", SortRecency:
		return SortRecency, nil
	case SortPopularity:
		return SortPopularity, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, rawInput)
	}
}

// Agency owns posts and topics.
type Agency struct {
	ID               uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ShortName        string `gorm:"column:short_name;size:64;not null;uniqueIndex"`
	LongName         string `gorm:"column:long_name;size:255;not null"`
	Email            string `gorm:"column:email;size:320"`
	LogoURL          string `gorm:"column:logo_url;size:512"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Agency) TableName() string {
	return "agencies"
}

// Tag is a globally unique classification label.
type Tag struct {
	ID               uint    `gorm:"column:id;primaryKey;autoIncrement"`
	TagName          string  `gorm:"column:tag_name;size:190;not null;uniqueIndex"`
	TagType          TagType `gorm:"column:tag_type;size:16;not null"`
	Description      string  `gorm:"column:description;type:text"`
	Link             string  `gorm:"column:link;size:512"`
	HasPilot         bool    `gorm:"column:has_pilot;not null;default:false"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// Topic is a node of an agency's topic forest.
type Topic struct {
	ID               uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Name             string `gorm:"column:name;size:190;not null;uniqueIndex:idx_topics_agency_name,priority:2"`
	Description      string `gorm:"column:description;type:text"`
	AgencyID         uint   `gorm:"column:agency_id;not null;uniqueIndex:idx_topics_agency_name,priority:1"`
	ParentID         *uint  `gorm:"column:parent_id;index"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Topic) TableName() string {
	return "topics"
}

// Post is a published or pending question.
type Post struct {
	ID               uint       `gorm:"column:id;primaryKey;autoIncrement"`
	Title            string     `gorm:"column:title;size:255;not null"`
	Description      *string    `gorm:"column:description;type:text"`
	Views            int64      `gorm:"column:views;not null;default:0"`
	Status           PostStatus `gorm:"column:status;size:16;not null;index:idx_posts_agency_status,priority:2"`
	UserID           string     `gorm:"column:user_id;size:190;not null"`
	AgencyID         uint       `gorm:"column:agency_id;not null;index:idx_posts_agency_status,priority:1"`
	TopicID          *uint      `gorm:"column:topic_id;index"`
	CreatedAtSeconds int64      `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64      `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// PostTag joins posts and tags.
type PostTag struct {
	PostID           uint  `gorm:"column:post_id;primaryKey;autoIncrement:false"`
	TagID            uint  `gorm:"column:tag_id;primaryKey;autoIncrement:false;index"`
	CreatedAtSeconds int64 `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64 `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PostTag) TableName() string {
	return "post_tags"
}

// Answer is an agency response to a post; its body may contain rich HTML.
type Answer struct {
	ID               uint   `gorm:"column:id;primaryKey;autoIncrement"`
	PostID           uint   `gorm:"column:post_id;not null;index"`
	UserID           string `gorm:"column:user_id;size:190;not null"`
	Body             string `gorm:"column:body;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Answer) TableName() string {
	return "answers"
}

// Models lists every catalog table for schema migration.
func Models() []any {
	return []any{&Agency{}, &Tag{}, &Topic{}, &Post{}, &PostTag{}, &Answer{}}
}

// PostView is a post together with its resolved tags.
type PostView struct {
	Post Post
	Tags []Tag
}

// PostDetail is a single public post and, optionally, its related posts.
type PostDetail struct {
	PostView
	RelatedPosts []PostView
}
