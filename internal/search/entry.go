package search

// Entry is the denormalized, searchable projection of a public post.
type Entry struct {
	PostID      uint     `json:"postId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Answers     []string `json:"answers"`
	AgencyID    uint     `json:"agencyId"`
	TopicID     *uint    `json:"topicId,omitempty"`
}

const (
	defaultTokenizer  = "whitespace"
	defaultStopWords  = "_english_"
	stopFilterName    = "case_insensitive_stop"
	defaultAnalyzerID = "default"
)

// IndexSettings is applied once at index creation; changing it requires recreating the index.
type IndexSettings struct {
	Tokenizer  string
	StopWords  string
	IgnoreCase bool
}

// DefaultIndexSettings returns the whitespace tokenizer with a case-insensitive stop-word filter.
func DefaultIndexSettings() IndexSettings {
	return IndexSettings{
		Tokenizer:  defaultTokenizer,
		StopWords:  defaultStopWords,
		IgnoreCase: true,
	}
}

// Body renders the settings as an index-creation request body.
func (s IndexSettings) Body() map[string]any {
	tokenizer := s.Tokenizer
	if tokenizer == "" {
		tokenizer = defaultTokenizer
	}
	stopWords := s.StopWords
	if stopWords == "" {
		stopWords = defaultStopWords
	}
	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"filter": map[string]any{
					stopFilterName: map[string]any{
						"type":        "stop",
						"stopwords":   stopWords,
						"ignore_case": s.IgnoreCase,
					},
				},
				"analyzer": map[string]any{
					defaultAnalyzerID: map[string]any{
						"type":      "custom",
						"tokenizer": tokenizer,
						"filter":    []string{stopFilterName},
					},
				},
			},
		},
	}
}
