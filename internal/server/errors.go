package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/askgov/internal/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusForKind maps every catalog error kind onto its HTTP status.
func statusForKind(kind catalog.ErrorKind) int {
	switch kind {
	case catalog.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case catalog.ErrorKindInvalidTags,
		catalog.ErrorKindInvalidTopics,
		catalog.ErrorKindTagDoesNotExist,
		catalog.ErrorKindTopicDoesNotExist,
		catalog.ErrorKindInvalidTagsAndTopics:
		return http.StatusUnprocessableEntity
	case catalog.ErrorKindMissingPublicPost, catalog.ErrorKindPostNotFound:
		return http.StatusNotFound
	case catalog.ErrorKindSearchEngine, catalog.ErrorKindDatabase, catalog.ErrorKindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	kind := catalog.KindOf(err)
	status := statusForKind(kind)
	payload := gin.H{"error": kind.String()}
	if code := catalog.CodeOf(err); code != "" {
		payload["code"] = code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("catalog request failed",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("kind", kind.String()),
			zap.Error(err))
	}
	c.JSON(status, payload)
}
