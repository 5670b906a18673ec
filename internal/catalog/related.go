package catalog

import "sort"

type relatedSource struct {
	PostID   uint
	AgencyID uint
	TopicID  *uint
	TagIDs   []uint
}

type relatedCandidate struct {
	Post   Post
	TagIDs []uint
}

type relatedScore struct {
	candidate  relatedCandidate
	topicMatch int
	tagOverlap int
}

// rankRelated orders same-agency public candidates by topic match, then shared tags, then
// views, then ascending id, and keeps the first limit.
func rankRelated(source relatedSource, candidates []relatedCandidate, limit int) []relatedCandidate {
	if limit <= 0 {
		return nil
	}

	sourceTags := make(map[uint]struct{}, len(source.TagIDs))
	for _, tagID := range source.TagIDs {
		sourceTags[tagID] = struct{}{}
	}

	scored := make([]relatedScore, 0, len(candidates))
	for _, candidate := range candidates {
		post := candidate.Post
		if post.ID == source.PostID || post.Status != PostStatusPublic || post.AgencyID != source.AgencyID {
			continue
		}
		score := relatedScore{candidate: candidate}
		if source.TopicID != nil && post.TopicID != nil && *post.TopicID == *source.TopicID {
			score.topicMatch = 1
		}
		counted := make(map[uint]struct{}, len(candidate.TagIDs))
		for _, tagID := range candidate.TagIDs {
			if _, shared := sourceTags[tagID]; !shared {
				continue
			}
			if _, ok := counted[tagID]; ok {
				continue
			}
			counted[tagID] = struct{}{}
			score.tagOverlap++
		}
		scored = append(scored, score)
	}

	sort.Slice(scored, func(i, j int) bool {
		left, right := scored[i], scored[j]
		if left.topicMatch != right.topicMatch {
			return left.topicMatch > right.topicMatch
		}
		if left.tagOverlap != right.tagOverlap {
			return left.tagOverlap > right.tagOverlap
		}
		if left.candidate.Post.Views != right.candidate.Post.Views {
			return left.candidate.Post.Views > right.candidate.Post.Views
		}
		return left.candidate.Post.ID < right.candidate.Post.ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	ranked := make([]relatedCandidate, 0, len(scored))
	for _, score := range scored {
		ranked = append(ranked, score.candidate)
	}
	return ranked
}
