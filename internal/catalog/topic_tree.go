package catalog

import (
	"context"
	"sort"
)

// TopicTreeResolver expands topics into their descendant closure within one agency.
type TopicTreeResolver struct {
	topics TopicRepository
}

// NewTopicTreeResolver constructs a TopicTreeResolver.
func NewTopicTreeResolver(topics TopicRepository) *TopicTreeResolver {
	return &TopicTreeResolver{topics: topics}
}

// Expand returns rootIDs plus every descendant, loading the agency's topics once.
// An empty input yields an empty closure, meaning no topic predicate applies.
func (r *TopicTreeResolver) Expand(ctx context.Context, agencyID uint, rootIDs []uint) ([]uint, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}
	topics, err := r.topics.ListAgencyTopics(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return expandTopicClosure(topics, rootIDs), nil
}

// expandTopicClosure walks the parent adjacency level by level. The visited set bounds the walk
// even if the stored parent links contain a cycle.
func expandTopicClosure(topics []Topic, rootIDs []uint) []uint {
	children := make(map[uint][]uint, len(topics))
	for _, topic := range topics {
		if topic.ParentID == nil {
			continue
		}
		children[*topic.ParentID] = append(children[*topic.ParentID], topic.ID)
	}

	closure := make(map[uint]struct{}, len(rootIDs))
	frontier := make([]uint, 0, len(rootIDs))
	for _, rootID := range rootIDs {
		if _, ok := closure[rootID]; ok {
			continue
		}
		closure[rootID] = struct{}{}
		frontier = append(frontier, rootID)
	}

	for len(frontier) > 0 {
		next := make([]uint, 0)
		for _, parentID := range frontier {
			for _, childID := range children[parentID] {
				if _, ok := closure[childID]; ok {
					continue
				}
				closure[childID] = struct{}{}
				next = append(next, childID)
			}
		}
		frontier = next
	}

	ids := make([]uint, 0, len(closure))
	for id := range closure {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
