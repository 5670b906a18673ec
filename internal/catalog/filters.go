package catalog

import (
	"context"
	"fmt"
	"strings"
)

// FilterValidator confirms that requested tag and topic names exist before they become predicates.
type FilterValidator struct {
	tags   TagRepository
	topics TopicRepository
}

// NewFilterValidator constructs a FilterValidator.
func NewFilterValidator(tags TagRepository, topics TopicRepository) *FilterValidator {
	return &FilterValidator{tags: tags, topics: topics}
}

// ValidateTags resolves global tag names. It returns ErrInvalidTags when any name is unknown.
func (v *FilterValidator) ValidateTags(ctx context.Context, names []string) ([]Tag, error) {
	requested := normalizeNames(names)
	if len(requested) == 0 {
		return nil, nil
	}
	tags, err := v.tags.FindTagsByNames(ctx, requested)
	if err != nil {
		return nil, err
	}
	if len(tags) < len(requested) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTags, strings.Join(missingNames(requested, tagNames(tags)), ", "))
	}
	return tags, nil
}

// ValidateTopics resolves topic names within one agency. It returns ErrInvalidTopics when any
// name is unknown to that agency.
func (v *FilterValidator) ValidateTopics(ctx context.Context, agencyID uint, names []string) ([]Topic, error) {
	requested := normalizeNames(names)
	if len(requested) == 0 {
		return nil, nil
	}
	topics, err := v.topics.FindTopicsByNames(ctx, agencyID, requested)
	if err != nil {
		return nil, err
	}
	if len(topics) < len(requested) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTopics, strings.Join(missingNames(requested, topicNames(topics)), ", "))
	}
	return topics, nil
}

// normalizeNames trims, drops blanks and de-duplicates while keeping request order.
func normalizeNames(names []string) []string {
	normalized := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func missingNames(requested []string, found []string) []string {
	present := make(map[string]struct{}, len(found))
	for _, name := range found {
		present[name] = struct{}{}
	}
	missing := make([]string, 0)
	for _, name := range requested {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func tagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.TagName)
	}
	return names
}

func topicNames(topics []Topic) []string {
	names := make([]string, 0, len(topics))
	for _, topic := range topics {
		names = append(names, topic.Name)
	}
	return names
}
