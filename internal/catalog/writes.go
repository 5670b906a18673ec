package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreatePost             = "catalog.create_post"
	opUpdatePost             = "catalog.update_post"
	opDeletePost             = "catalog.delete_post"
	opRecordAnswer           = "catalog.record_answer"
	reasonTagDoesNotExist    = "tag_does_not_exist"
	reasonTopicDoesNotExist  = "topic_does_not_exist"
	reasonNoClassification   = "invalid_tags_and_topics"
	reasonPostNotFound       = "post_not_found"
	reasonPostInsertFailed   = "post_insert_failed"
	reasonPostSaveFailed     = "post_save_failed"
	reasonPostLookupFailed   = "post_lookup_failed"
	reasonTagLinkFailed      = "tag_link_failed"
	reasonAnswerInsertFailed = "answer_insert_failed"
	reasonAnswerLookupFailed = "answer_lookup_failed"
	reasonIndexCreateFailed  = "index_create_failed"
	reasonIndexUpdateFailed  = "index_update_failed"
	reasonIndexDeleteFailed  = "index_delete_failed"
	reasonClassifyFailed     = "classification_lookup_failed"
)

// CreatePostInput describes a new post.
type CreatePostInput struct {
	Title       string
	Description *string
	UserID      string
	AgencyID    uint
	TopicID     *uint
	TagNames    []string
	Status      PostStatus
}

// UpdatePostInput replaces the editable fields and the classification of a post.
type UpdatePostInput struct {
	PostID      uint
	Title       string
	Description *string
	TopicID     *uint
	TagNames    []string
}

// RecordAnswerInput describes an answer to a post.
type RecordAnswerInput struct {
	PostID uint
	UserID string
	Body   string
}

type classification struct {
	tagIDs  []uint
	topicID *uint
}

// CreatePost inserts the post and its tag links and, for public posts, creates the search
// document before the transaction commits. An index failure rolls back the relational inserts.
func (s *Service) CreatePost(ctx context.Context, input CreatePostInput) (Post, error) {
	if err := s.ready(opCreatePost); err != nil {
		return Post{}, err
	}

	title := strings.TrimSpace(input.Title)
	userID := strings.TrimSpace(input.UserID)
	if title == "" || userID == "" || input.AgencyID == 0 {
		return Post{}, newServiceError(ErrorKindInvalidInput, opCreatePost, reasonInvalidInput,
			fmt.Errorf("%w: title, user and agency are required", ErrInvalidInput))
	}
	status := input.Status
	if status == "" {
		status = PostStatusPrivate
	}
	if status != PostStatusPublic && status != PostStatusPrivate {
		return Post{}, newServiceError(ErrorKindInvalidInput, opCreatePost, reasonInvalidInput,
			fmt.Errorf("%w: new posts are public or private", ErrInvalidInput))
	}

	classified, err := s.classify(ctx, opCreatePost, input.AgencyID, input.TagNames, input.TopicID)
	if err != nil {
		return Post{}, err
	}

	now := s.clock().UTC().Unix()
	post := Post{
		Title:            title,
		Description:      input.Description,
		Status:           status,
		UserID:           userID,
		AgencyID:         input.AgencyID,
		TopicID:          classified.topicID,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	transactionError := s.store.WithinTransaction(ctx, func(tx *Store) error {
		if err := tx.CreatePost(ctx, &post); err != nil {
			s.logError(opCreatePost, reasonPostInsertFailed, err)
			return newServiceError(ErrorKindDatabase, opCreatePost, reasonPostInsertFailed, err)
		}
		if err := tx.ReplacePostTags(ctx, post.ID, classified.tagIDs, now); err != nil {
			s.logError(opCreatePost, reasonTagLinkFailed, err, zap.Uint(fieldPostID, post.ID))
			return newServiceError(ErrorKindDatabase, opCreatePost, reasonTagLinkFailed, err)
		}
		if post.Status != PostStatusPublic {
			return nil
		}
		entry := s.buildEntry(post, nil)
		if err := s.engine.CreateDocument(ctx, s.indexName, search.DocumentID(post.ID), entry); err != nil {
			s.logError(opCreatePost, reasonIndexCreateFailed, err, zap.Uint(fieldPostID, post.ID), zap.String(fieldIndex, s.indexName))
			return newServiceError(ErrorKindSearchEngine, opCreatePost, reasonIndexCreateFailed, err)
		}
		return nil
	})
	if transactionError != nil {
		return Post{}, transactionError
	}
	return post, nil
}

// UpdatePost rewrites title, description, topic and tags, then upserts the search document of a
// public post (or removes a stale one for a non-public post) inside the same transaction.
func (s *Service) UpdatePost(ctx context.Context, input UpdatePostInput) (Post, error) {
	if err := s.ready(opUpdatePost); err != nil {
		return Post{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Post{}, newServiceError(ErrorKindInvalidInput, opUpdatePost, reasonInvalidInput,
			fmt.Errorf("%w: title is required", ErrInvalidInput))
	}

	existing, err := s.store.FindPost(ctx, input.PostID)
	if err != nil {
		return Post{}, s.postLookupError(opUpdatePost, input.PostID, err)
	}
	if existing.Status == PostStatusArchived {
		return Post{}, newServiceError(ErrorKindPostNotFound, opUpdatePost, reasonPostNotFound, ErrPostNotFound)
	}

	classified, err := s.classify(ctx, opUpdatePost, existing.AgencyID, input.TagNames, input.TopicID)
	if err != nil {
		return Post{}, err
	}

	var updated Post
	transactionError := s.store.WithinTransaction(ctx, func(tx *Store) error {
		post, err := tx.LockPost(ctx, input.PostID)
		if err != nil {
			return s.postLookupError(opUpdatePost, input.PostID, err)
		}
		if post.Status == PostStatusArchived {
			return newServiceError(ErrorKindPostNotFound, opUpdatePost, reasonPostNotFound, ErrPostNotFound)
		}

		now := s.clock().UTC().Unix()
		post.Title = title
		post.Description = input.Description
		post.TopicID = classified.topicID
		post.UpdatedAtSeconds = now
		if err := tx.SavePost(ctx, &post); err != nil {
			s.logError(opUpdatePost, reasonPostSaveFailed, err, zap.Uint(fieldPostID, post.ID))
			return newServiceError(ErrorKindDatabase, opUpdatePost, reasonPostSaveFailed, err)
		}
		if err := tx.ReplacePostTags(ctx, post.ID, classified.tagIDs, now); err != nil {
			s.logError(opUpdatePost, reasonTagLinkFailed, err, zap.Uint(fieldPostID, post.ID))
			return newServiceError(ErrorKindDatabase, opUpdatePost, reasonTagLinkFailed, err)
		}
		if err := s.syncDocument(ctx, tx, opUpdatePost, post); err != nil {
			return err
		}
		updated = post
		return nil
	})
	if transactionError != nil {
		return Post{}, transactionError
	}
	return updated, nil
}

// DeletePost archives the post and removes its search document; an index failure keeps the
// post in its previous status.
func (s *Service) DeletePost(ctx context.Context, postID uint) error {
	if err := s.ready(opDeletePost); err != nil {
		return err
	}

	return s.store.WithinTransaction(ctx, func(tx *Store) error {
		post, err := tx.LockPost(ctx, postID)
		if err != nil {
			return s.postLookupError(opDeletePost, postID, err)
		}
		if post.Status == PostStatusArchived {
			return newServiceError(ErrorKindPostNotFound, opDeletePost, reasonPostNotFound, ErrPostNotFound)
		}

		post.Status = PostStatusArchived
		post.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.SavePost(ctx, &post); err != nil {
			s.logError(opDeletePost, reasonPostSaveFailed, err, zap.Uint(fieldPostID, postID))
			return newServiceError(ErrorKindDatabase, opDeletePost, reasonPostSaveFailed, err)
		}
		return s.removeDocument(ctx, opDeletePost, postID)
	})
}

// RecordAnswer stores an answer, publishes a private post on its first answer, and upserts the
// search document with every answer body.
func (s *Service) RecordAnswer(ctx context.Context, input RecordAnswerInput) (Answer, error) {
	if err := s.ready(opRecordAnswer); err != nil {
		return Answer{}, err
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" || strings.TrimSpace(input.Body) == "" {
		return Answer{}, newServiceError(ErrorKindInvalidInput, opRecordAnswer, reasonInvalidInput,
			fmt.Errorf("%w: user and body are required", ErrInvalidInput))
	}

	var answer Answer
	transactionError := s.store.WithinTransaction(ctx, func(tx *Store) error {
		post, err := tx.LockPost(ctx, input.PostID)
		if err != nil {
			return s.postLookupError(opRecordAnswer, input.PostID, err)
		}
		if post.Status == PostStatusArchived {
			return newServiceError(ErrorKindPostNotFound, opRecordAnswer, reasonPostNotFound, ErrPostNotFound)
		}

		now := s.clock().UTC().Unix()
		answer = Answer{
			PostID:           post.ID,
			UserID:           userID,
			Body:             input.Body,
			CreatedAtSeconds: now,
			UpdatedAtSeconds: now,
		}
		if err := tx.CreateAnswer(ctx, &answer); err != nil {
			s.logError(opRecordAnswer, reasonAnswerInsertFailed, err, zap.Uint(fieldPostID, post.ID))
			return newServiceError(ErrorKindDatabase, opRecordAnswer, reasonAnswerInsertFailed, err)
		}

		post.UpdatedAtSeconds = now
		if post.Status == PostStatusPrivate {
			post.Status = PostStatusPublic
		}
		if err := tx.SavePost(ctx, &post); err != nil {
			s.logError(opRecordAnswer, reasonPostSaveFailed, err, zap.Uint(fieldPostID, post.ID))
			return newServiceError(ErrorKindDatabase, opRecordAnswer, reasonPostSaveFailed, err)
		}
		return s.syncDocument(ctx, tx, opRecordAnswer, post)
	})
	if transactionError != nil {
		return Answer{}, transactionError
	}
	return answer, nil
}

// classify resolves write-path tags and topic before any mutation begins.
func (s *Service) classify(ctx context.Context, operation string, agencyID uint, names []string, topicID *uint) (classification, error) {
	requested := normalizeNames(names)
	result := classification{}

	var missingTags []string
	if len(requested) > 0 {
		tags, err := s.store.FindTagsByNames(ctx, requested)
		if err != nil {
			s.logError(operation, reasonClassifyFailed, err)
			return classification{}, newServiceError(ErrorKindDatabase, operation, reasonClassifyFailed, err)
		}
		missingTags = missingNames(requested, tagNames(tags))
		result.tagIDs = tagIDsOf(tags)
	}

	topicMissing := false
	if topicID != nil {
		topic, err := s.store.FindAgencyTopic(ctx, agencyID, *topicID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			topicMissing = true
		case err != nil:
			s.logError(operation, reasonClassifyFailed, err)
			return classification{}, newServiceError(ErrorKindDatabase, operation, reasonClassifyFailed, err)
		default:
			id := topic.ID
			result.topicID = &id
		}
	}

	// Nothing resolved outranks a partial miss.
	if len(result.tagIDs) == 0 && result.topicID == nil {
		return classification{}, newServiceError(ErrorKindInvalidTagsAndTopics, operation, reasonNoClassification, ErrInvalidTagsAndTopics)
	}
	if len(missingTags) > 0 {
		return classification{}, newServiceError(ErrorKindTagDoesNotExist, operation, reasonTagDoesNotExist,
			fmt.Errorf("%w: %s", ErrTagDoesNotExist, strings.Join(missingTags, ", ")))
	}
	if topicMissing {
		return classification{}, newServiceError(ErrorKindTopicDoesNotExist, operation, reasonTopicDoesNotExist,
			fmt.Errorf("%w: %d", ErrTopicDoesNotExist, *topicID))
	}
	return result, nil
}

// syncDocument upserts the document of a public post or removes the document of any other.
func (s *Service) syncDocument(ctx context.Context, tx *Store, operation string, post Post) error {
	if post.Status != PostStatusPublic {
		return s.removeDocument(ctx, operation, post.ID)
	}
	answers, err := tx.ListAnswers(ctx, post.ID)
	if err != nil {
		s.logError(operation, reasonAnswerLookupFailed, err, zap.Uint(fieldPostID, post.ID))
		return newServiceError(ErrorKindDatabase, operation, reasonAnswerLookupFailed, err)
	}
	entry := s.buildEntry(post, answers)
	if err := s.engine.UpdateDocument(ctx, s.indexName, search.DocumentID(post.ID), entry); err != nil {
		s.logError(operation, reasonIndexUpdateFailed, err, zap.Uint(fieldPostID, post.ID), zap.String(fieldIndex, s.indexName))
		return newServiceError(ErrorKindSearchEngine, operation, reasonIndexUpdateFailed, err)
	}
	return nil
}

// removeDocument deletes the post's document; a document that is already absent is not an error.
func (s *Service) removeDocument(ctx context.Context, operation string, postID uint) error {
	err := s.engine.DeleteDocument(ctx, s.indexName, search.DocumentID(postID))
	if err == nil || errors.Is(err, search.ErrDocumentNotFound) {
		return nil
	}
	s.logError(operation, reasonIndexDeleteFailed, err, zap.Uint(fieldPostID, postID), zap.String(fieldIndex, s.indexName))
	return newServiceError(ErrorKindSearchEngine, operation, reasonIndexDeleteFailed, err)
}

func (s *Service) buildEntry(post Post, answers []Answer) search.Entry {
	entry := search.Entry{
		PostID:   post.ID,
		Title:    post.Title,
		Answers:  make([]string, 0, len(answers)),
		AgencyID: post.AgencyID,
		TopicID:  post.TopicID,
	}
	if post.Description != nil {
		entry.Description = *post.Description
	}
	for _, answer := range answers {
		entry.Answers = append(entry.Answers, s.sanitizer.Sanitize(answer.Body))
	}
	return entry
}

func (s *Service) postLookupError(operation string, postID uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(ErrorKindPostNotFound, operation, reasonPostNotFound, ErrPostNotFound)
	}
	s.logError(operation, reasonPostLookupFailed, err, zap.Uint(fieldPostID, postID))
	return newServiceError(ErrorKindDatabase, operation, reasonPostLookupFailed, err)
}
