package search

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// MemoryEngine is an in-process Engine used for local runs and tests.
type MemoryEngine struct {
	mu        sync.RWMutex
	indexes   map[string]IndexSettings
	documents map[string]map[string]Entry
}

// NewMemoryEngine returns an empty engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		indexes:   make(map[string]IndexSettings),
		documents: make(map[string]map[string]Entry),
	}
}

func (m *MemoryEngine) IndexExists(_ context.Context, index string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[index]
	return ok, nil
}

func (m *MemoryEngine) CreateIndex(_ context.Context, index string, settings IndexSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[index]; ok {
		return &EngineError{
			Operation:  opCreateIndex,
			StatusCode: http.StatusBadRequest,
			Type:       "resource_already_exists_exception",
			Reason:     "index [" + index + "] already exists",
		}
	}
	m.indexes[index] = settings
	m.documents[index] = make(map[string]Entry)
	return nil
}

func (m *MemoryEngine) CreateDocument(_ context.Context, index string, documentID string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	documents := m.ensureIndexLocked(index)
	if _, ok := documents[documentID]; ok {
		return &EngineError{
			Operation:  opCreateDocument,
			StatusCode: http.StatusConflict,
			Type:       "version_conflict_engine_exception",
			Reason:     "[" + documentID + "]: version conflict, document already exists",
		}
	}
	documents[documentID] = cloneEntry(entry)
	return nil
}

func (m *MemoryEngine) UpdateDocument(_ context.Context, index string, documentID string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureIndexLocked(index)[documentID] = cloneEntry(entry)
	return nil
}

func (m *MemoryEngine) DeleteDocument(_ context.Context, index string, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	documents := m.documents[index]
	if _, ok := documents[documentID]; !ok {
		return &EngineError{Operation: opDeleteDocument, StatusCode: http.StatusNotFound, Err: ErrDocumentNotFound}
	}
	delete(documents, documentID)
	return nil
}

func (m *MemoryEngine) Bulk(_ context.Context, index string, operations []BulkOperation) (BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	documents := m.ensureIndexLocked(index)
	result := BulkResult{}
	for _, operation := range operations {
		if strings.TrimSpace(operation.DocumentID) == "" {
			result.Failures = append(result.Failures, DocumentFailure{
				DocumentID: operation.DocumentID,
				Status:     http.StatusBadRequest,
				Type:       "illegal_argument_exception",
				Reason:     "document id is missing",
			})
			continue
		}
		documents[operation.DocumentID] = cloneEntry(operation.Entry)
		result.Succeeded++
	}
	return result, nil
}

func (m *MemoryEngine) Search(_ context.Context, index string, query Query) ([]Hit, error) {
	terms := strings.Fields(strings.ToLower(query.Text))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0)
	for documentID, entry := range m.documents[index] {
		if query.AgencyID != nil && entry.AgencyID != *query.AgencyID {
			continue
		}
		score := 0.0
		highlights := make(map[string][]string)
		fields := map[string][]string{
			fieldTitle:       {entry.Title},
			fieldDescription: {entry.Description},
			fieldAnswers:     entry.Answers,
		}
		for field, values := range fields {
			for _, value := range values {
				fragment, matches := highlightTerms(value, terms)
				if matches == 0 {
					continue
				}
				score += float64(matches)
				highlights[field] = append(highlights[field], fragment)
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{
			DocumentID: documentID,
			Score:      score,
			Entry:      cloneEntry(entry),
			Highlights: highlights,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.PostID < hits[j].Entry.PostID
	})

	size := query.Size
	if size <= 0 {
		size = defaultHitCount
	}
	if len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

// Documents returns a snapshot of every document stored in the index.
func (m *MemoryEngine) Documents(index string) map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[string]Entry, len(m.documents[index]))
	for documentID, entry := range m.documents[index] {
		snapshot[documentID] = cloneEntry(entry)
	}
	return snapshot
}

func (m *MemoryEngine) ensureIndexLocked(index string) map[string]Entry {
	documents, ok := m.documents[index]
	if !ok {
		documents = make(map[string]Entry)
		m.documents[index] = documents
		m.indexes[index] = DefaultIndexSettings()
	}
	return documents
}

func highlightTerms(value string, terms []string) (string, int) {
	words := strings.Fields(value)
	matches := 0
	for index, word := range words {
		normalized := strings.ToLower(strings.Trim(word, ".,;:!?\"'()"))
		for _, term := range terms {
			if fuzzyMatch(normalized, term) {
				words[index] = highlightPreTag + word + highlightPostTag
				matches++
				break
			}
		}
	}
	return strings.Join(words, " "), matches
}

// fuzzyMatch tolerates one edit for terms longer than four runes.
func fuzzyMatch(word, term string) bool {
	if word == "" {
		return false
	}
	if word == term {
		return true
	}
	if len([]rune(term)) <= 4 {
		return false
	}
	return editDistance(word, term) <= 1
}

func editDistance(left, right string) int {
	a := []rune(left)
	b := []rune(right)
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}
	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}

func cloneEntry(entry Entry) Entry {
	copied := entry
	if entry.Answers != nil {
		copied.Answers = append([]string(nil), entry.Answers...)
	}
	if entry.TopicID != nil {
		topicID := *entry.TopicID
		copied.TopicID = &topicID
	}
	return copied
}
