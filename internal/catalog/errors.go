package catalog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so callers can switch on them exhaustively.
type ErrorKind int

const (
	// ErrorKindInternal covers failures with no more specific kind.
	ErrorKindInternal ErrorKind = iota
	// ErrorKindInvalidInput reports malformed arguments such as a blank title or negative page.
	ErrorKindInvalidInput
	// ErrorKindInvalidTags reports listing filters that name unknown tags.
	ErrorKindInvalidTags
	// ErrorKindInvalidTopics reports listing filters that name unknown or unscoped topics.
	ErrorKindInvalidTopics
	// ErrorKindTagDoesNotExist reports a write naming a tag that does not exist.
	ErrorKindTagDoesNotExist
	// ErrorKindTopicDoesNotExist reports a write naming a topic outside the post's agency.
	ErrorKindTopicDoesNotExist
	// ErrorKindInvalidTagsAndTopics reports a write that resolves to neither a tag nor a topic.
	ErrorKindInvalidTagsAndTopics
	// ErrorKindMissingPublicPost reports a read of a post that is not public.
	ErrorKindMissingPublicPost
	// ErrorKindPostNotFound reports a write to a missing or archived post.
	ErrorKindPostNotFound
	// ErrorKindSearchEngine reports a search engine failure; writes are rolled back.
	ErrorKindSearchEngine
	// ErrorKindDatabase reports a relational store failure.
	ErrorKindDatabase
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInternal:
		return "internal"
	case ErrorKindInvalidInput:
		return "invalid_input"
	case ErrorKindInvalidTags:
		return "invalid_tags"
	case ErrorKindInvalidTopics:
		return "invalid_topics"
	case ErrorKindTagDoesNotExist:
		return "tag_does_not_exist"
	case ErrorKindTopicDoesNotExist:
		return "topic_does_not_exist"
	case ErrorKindInvalidTagsAndTopics:
		return "invalid_tags_and_topics"
	case ErrorKindMissingPublicPost:
		return "missing_public_post"
	case ErrorKindPostNotFound:
		return "post_not_found"
	case ErrorKindSearchEngine:
		return "search_engine"
	case ErrorKindDatabase:
		return "database"
	default:
		return fmt.Sprintf("error_kind_%d", int(k))
	}
}

var (
	// ErrInvalidInput indicates malformed request values.
	ErrInvalidInput = errors.New("catalog: invalid input")
	// ErrInvalidTags indicates that a listing filter names an unknown tag.
	ErrInvalidTags = errors.New("catalog: invalid tags")
	// ErrInvalidTopics indicates that a listing filter names an unknown topic.
	ErrInvalidTopics = errors.New("catalog: invalid topics")
	// ErrTagDoesNotExist indicates that a write references an unknown tag.
	ErrTagDoesNotExist = errors.New("catalog: tag does not exist")
	// ErrTopicDoesNotExist indicates that a write references an unknown topic.
	ErrTopicDoesNotExist = errors.New("catalog: topic does not exist")
	// ErrInvalidTagsAndTopics indicates that a post would be classified by neither a tag nor a topic.
	ErrInvalidTagsAndTopics = errors.New("catalog: post requires at least one valid tag or topic")
	// ErrMissingPublicPost indicates that the requested post does not exist or is not public.
	ErrMissingPublicPost = errors.New("catalog: public post not found")
	// ErrPostNotFound indicates that a write addresses a missing or archived post.
	ErrPostNotFound = errors.New("catalog: post not found")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingEngine     = errors.New("search engine is required")
	errMissingIndexName  = errors.New("search index name is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceError carries the failure kind and a stable "<operation>.<reason>" code.
type ServiceError struct {
	kind ErrorKind
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func (e *ServiceError) Kind() ErrorKind {
	return e.kind
}

func newServiceError(kind ErrorKind, operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{kind: kind, code: code, err: cause}
}

// KindOf reports the kind of any error returned by this package.
func KindOf(err error) ErrorKind {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.kind
	}
	return ErrorKindInternal
}

// CodeOf reports the service error code, or an empty string for foreign errors.
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.code
	}
	return ""
}
