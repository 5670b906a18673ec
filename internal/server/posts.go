package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/askgov/internal/catalog"
	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorInvalidRequest = "invalid_request"
	errorUnauthorized   = "unauthorized"
)

type tagPayload struct {
	ID      uint   `json:"id"`
	TagName string `json:"tag_name"`
	TagType string `json:"tag_type"`
}

type postPayload struct {
	ID               uint         `json:"id"`
	Title            string       `json:"title"`
	Description      *string      `json:"description"`
	Views            int64        `json:"views"`
	Status           string       `json:"status"`
	AgencyID         uint         `json:"agency_id"`
	TopicID          *uint        `json:"topic_id"`
	CreatedAtSeconds int64        `json:"created_at_s"`
	UpdatedAtSeconds int64        `json:"updated_at_s"`
	Tags             []tagPayload `json:"tags"`
}

type postListPayload struct {
	Posts      []postPayload `json:"posts"`
	TotalItems int           `json:"total_items"`
}

type postDetailPayload struct {
	postPayload
	RelatedPosts []postPayload `json:"related_posts,omitempty"`
}

type searchHitPayload struct {
	PostID      uint                `json:"post_id"`
	Score       float64             `json:"score"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	AgencyID    uint                `json:"agency_id"`
	Highlights  map[string][]string `json:"highlights,omitempty"`
}

type searchResponsePayload struct {
	Hits []searchHitPayload `json:"hits"`
}

type createPostRequestPayload struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	UserID      string   `json:"user_id"`
	TopicID     *uint    `json:"topic_id"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
}

type updatePostRequestPayload struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	TopicID     *uint    `json:"topic_id"`
	Tags        []string `json:"tags"`
}

type answerRequestPayload struct {
	Body string `json:"body"`
}

type answerPayload struct {
	ID               uint   `json:"id"`
	PostID           uint   `json:"post_id"`
	Body             string `json:"body"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	filters, err := parseListFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	result, err := h.catalog.ListPosts(c.Request.Context(), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostListPayload(result))
}

func (h *httpHandler) handleListAnswerable(c *gin.Context) {
	claims, ok := staffClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errorUnauthorized})
		return
	}
	filters, err := parseListFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	withAnswers, err := parseOptionalBool(c.Query("withAnswers"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	result, err := h.catalog.ListAnswerablePosts(c.Request.Context(), claims.AgencyID, filters, withAnswers)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostListPayload(result))
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	relatedCount := 0
	if raw := strings.TrimSpace(c.Query("relatedPosts")); raw != "" {
		relatedCount, err = strconv.Atoi(raw)
		if err != nil || relatedCount < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
			return
		}
	}

	detail, err := h.catalog.GetSinglePost(c.Request.Context(), postID, relatedCount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.catalog.RecordView(c.Request.Context(), postID); err != nil {
		h.logger.Warn("failed to record post view", zap.Uint("post_id", postID), zap.Error(err))
	}

	response := postDetailPayload{postPayload: newPostPayload(detail.PostView)}
	for _, related := range detail.RelatedPosts {
		response.RelatedPosts = append(response.RelatedPosts, newPostPayload(related))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	agencyID, err := parseOptionalUint(c.Query("agencyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	hits, err := h.searcher.SearchPosts(c.Request.Context(), h.catalog.IndexName(), c.Query("query"), agencyID)
	if errors.Is(err, search.ErrEmptyQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_query"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}

	response := searchResponsePayload{Hits: make([]searchHitPayload, 0, len(hits))}
	for _, hit := range hits {
		response.Hits = append(response.Hits, searchHitPayload{
			PostID:      hit.Entry.PostID,
			Score:       hit.Score,
			Title:       hit.Entry.Title,
			Description: hit.Entry.Description,
			AgencyID:    hit.Entry.AgencyID,
			Highlights:  hit.Highlights,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	claims, ok := staffClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errorUnauthorized})
		return
	}
	var request createPostRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	status, err := catalog.ParsePostStatus(request.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}
	userID := strings.TrimSpace(request.UserID)
	if userID == "" {
		userID = claims.UserID
	}

	post, err := h.catalog.CreatePost(c.Request.Context(), catalog.CreatePostInput{
		Title:       request.Title,
		Description: request.Description,
		UserID:      userID,
		AgencyID:    claims.AgencyID,
		TopicID:     request.TopicID,
		TagNames:    request.Tags,
		Status:      status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPostPayload(catalog.PostView{Post: post}))
}

func (h *httpHandler) handleUpdatePost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	var request updatePostRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}

	post, err := h.catalog.UpdatePost(c.Request.Context(), catalog.UpdatePostInput{
		PostID:      postID,
		Title:       request.Title,
		Description: request.Description,
		TopicID:     request.TopicID,
		TagNames:    request.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostPayload(catalog.PostView{Post: post}))
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	if err := h.catalog.DeletePost(c.Request.Context(), postID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRecordAnswer(c *gin.Context) {
	claims, ok := staffClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errorUnauthorized})
		return
	}
	postID, err := parsePostID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}
	var request answerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorInvalidRequest})
		return
	}

	answer, err := h.catalog.RecordAnswer(c.Request.Context(), catalog.RecordAnswerInput{
		PostID: postID,
		UserID: claims.UserID,
		Body:   request.Body,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answerPayload{
		ID:               answer.ID,
		PostID:           answer.PostID,
		Body:             answer.Body,
		CreatedAtSeconds: answer.CreatedAtSeconds,
	})
}

func parseListFilters(c *gin.Context) (catalog.ListFilters, error) {
	sortMode, err := catalog.ParseSortMode(c.Query("sort"))
	if err != nil {
		return catalog.ListFilters{}, err
	}
	agencyID, err := parseOptionalUint(c.Query("agencyId"))
	if err != nil {
		return catalog.ListFilters{}, err
	}
	page, err := parseOptionalInt(c.Query("page"))
	if err != nil {
		return catalog.ListFilters{}, err
	}
	size, err := parseOptionalInt(c.Query("size"))
	if err != nil {
		return catalog.ListFilters{}, err
	}
	return catalog.ListFilters{
		Sort:       sortMode,
		TagNames:   splitList(c.QueryArray("tags")),
		TopicNames: splitList(c.QueryArray("topics")),
		AgencyID:   agencyID,
		Page:       page,
		Size:       size,
	}, nil
}

// splitList accepts repeated parameters and comma separated values alike.
func splitList(values []string) []string {
	var items []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}

func parsePostID(c *gin.Context) (uint, error) {
	value, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || value == 0 {
		return 0, errors.New("invalid post id")
	}
	return uint(value), nil
}

func parseOptionalUint(raw string) (*uint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(trimmed, 10, 0)
	if err != nil {
		return nil, err
	}
	result := uint(value)
	return &result, nil
}

func parseOptionalInt(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

func parseOptionalBool(raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}
	return strconv.ParseBool(trimmed)
}

func newPostListPayload(result catalog.ListResult) postListPayload {
	payload := postListPayload{Posts: make([]postPayload, 0, len(result.Posts)), TotalItems: result.TotalItems}
	for _, view := range result.Posts {
		payload.Posts = append(payload.Posts, newPostPayload(view))
	}
	return payload
}

func newPostPayload(view catalog.PostView) postPayload {
	post := view.Post
	payload := postPayload{
		ID:               post.ID,
		Title:            post.Title,
		Description:      post.Description,
		Views:            post.Views,
		Status:           string(post.Status),
		AgencyID:         post.AgencyID,
		TopicID:          post.TopicID,
		CreatedAtSeconds: post.CreatedAtSeconds,
		UpdatedAtSeconds: post.UpdatedAtSeconds,
		Tags:             make([]tagPayload, 0, len(view.Tags)),
	}
	for _, tag := range view.Tags {
		payload.Tags = append(payload.Tags, tagPayload{ID: tag.ID, TagName: tag.TagName, TagType: string(tag.TagType)})
	}
	return payload
}
