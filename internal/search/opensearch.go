package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

const (
	highlightPreTag  = "<em>"
	highlightPostTag = "</em>"
	defaultHitCount  = 20
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldAnswers     = "answers"
	fieldAgencyID    = "agencyId"
)

var (
	errMissingAddresses = errors.New("search: at least one opensearch address is required")
	searchFields        = []string{fieldTitle, fieldDescription, fieldAnswers}
)

// OpenSearchConfig describes how to reach the OpenSearch cluster.
type OpenSearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// OpenSearchEngine implements Engine on top of the OpenSearch REST API.
type OpenSearchEngine struct {
	client *opensearch.Client
	logger *zap.Logger
}

// NewOpenSearchEngine constructs a client for the configured cluster.
func NewOpenSearchEngine(cfg OpenSearchConfig) (*OpenSearchEngine, error) {
	addresses := make([]string, 0, len(cfg.Addresses))
	for _, address := range cfg.Addresses {
		if trimmed := strings.TrimSpace(address); trimmed != "" {
			addresses = append(addresses, trimmed)
		}
	}
	if len(addresses) == 0 {
		return nil, errMissingAddresses
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("search: build opensearch client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenSearchEngine{client: client, logger: logger}, nil
}

func (e *OpenSearchEngine) IndexExists(ctx context.Context, index string) (bool, error) {
	response, err := opensearchapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, e.client)
	if err != nil {
		return false, &EngineError{Operation: opIndexExists, Err: err}
	}
	defer closeBody(response)

	switch response.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeEngineError(opIndexExists, response)
	}
}

func (e *OpenSearchEngine) CreateIndex(ctx context.Context, index string, settings IndexSettings) error {
	body, err := json.Marshal(settings.Body())
	if err != nil {
		return &EngineError{Operation: opCreateIndex, Err: err}
	}
	response, err := opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return &EngineError{Operation: opCreateIndex, Err: err}
	}
	defer closeBody(response)

	if response.IsError() {
		return decodeEngineError(opCreateIndex, response)
	}
	e.logger.Info("search index created", zap.String("index", index))
	return nil
}

func (e *OpenSearchEngine) CreateDocument(ctx context.Context, index string, documentID string, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return &EngineError{Operation: opCreateDocument, Err: err}
	}
	response, err := opensearchapi.CreateRequest{
		Index:      index,
		DocumentID: documentID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return &EngineError{Operation: opCreateDocument, Err: err}
	}
	defer closeBody(response)

	if response.IsError() {
		return decodeEngineError(opCreateDocument, response)
	}
	return nil
}

func (e *OpenSearchEngine) UpdateDocument(ctx context.Context, index string, documentID string, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return &EngineError{Operation: opUpdateDocument, Err: err}
	}
	// PUT /_doc replaces the stored source, so fields dropped from the entry are dropped from the index.
	response, err := opensearchapi.IndexRequest{
		Index:      index,
		DocumentID: documentID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return &EngineError{Operation: opUpdateDocument, Err: err}
	}
	defer closeBody(response)

	if response.IsError() {
		return decodeEngineError(opUpdateDocument, response)
	}
	return nil
}

func (e *OpenSearchEngine) DeleteDocument(ctx context.Context, index string, documentID string) error {
	response, err := opensearchapi.DeleteRequest{
		Index:      index,
		DocumentID: documentID,
	}.Do(ctx, e.client)
	if err != nil {
		return &EngineError{Operation: opDeleteDocument, Err: err}
	}
	defer closeBody(response)

	if response.StatusCode == http.StatusNotFound {
		return &EngineError{Operation: opDeleteDocument, StatusCode: http.StatusNotFound, Err: ErrDocumentNotFound}
	}
	if response.IsError() {
		return decodeEngineError(opDeleteDocument, response)
	}
	return nil
}

type bulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]bulkResponseItem `json:"items"`
}

type bulkResponseItem struct {
	ID     string        `json:"_id"`
	Status int           `json:"status"`
	Error  *errorDetails `json:"error"`
}

func (e *OpenSearchEngine) Bulk(ctx context.Context, index string, operations []BulkOperation) (BulkResult, error) {
	if len(operations) == 0 {
		return BulkResult{}, nil
	}

	var payload bytes.Buffer
	encoder := json.NewEncoder(&payload)
	for _, operation := range operations {
		action := map[string]any{"index": map[string]any{"_id": operation.DocumentID}}
		if err := encoder.Encode(action); err != nil {
			return BulkResult{}, &EngineError{Operation: opBulk, Err: err}
		}
		if err := encoder.Encode(operation.Entry); err != nil {
			return BulkResult{}, &EngineError{Operation: opBulk, Err: err}
		}
	}

	response, err := opensearchapi.BulkRequest{
		Index: index,
		Body:  bytes.NewReader(payload.Bytes()),
	}.Do(ctx, e.client)
	if err != nil {
		return BulkResult{}, &EngineError{Operation: opBulk, Err: err}
	}
	defer closeBody(response)

	if response.IsError() {
		return BulkResult{}, decodeEngineError(opBulk, response)
	}

	var decoded bulkResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return BulkResult{}, &EngineError{Operation: opBulk, StatusCode: response.StatusCode, Err: err}
	}

	result := BulkResult{}
	for _, item := range decoded.Items {
		for _, outcome := range item {
			if outcome.Error == nil && outcome.Status < http.StatusBadRequest {
				result.Succeeded++
				continue
			}
			failure := DocumentFailure{DocumentID: outcome.ID, Status: outcome.Status}
			if outcome.Error != nil {
				failure.Type = outcome.Error.Type
				failure.Reason = outcome.Error.Reason
			}
			result.Failures = append(result.Failures, failure)
		}
	}
	if len(result.Failures) > 0 {
		e.logger.Warn("bulk request completed with document failures",
			zap.String("index", index),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", len(result.Failures)))
	}
	return result, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    Entry               `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *OpenSearchEngine) Search(ctx context.Context, index string, query Query) ([]Hit, error) {
	body, err := json.Marshal(buildSearchBody(query))
	if err != nil {
		return nil, &EngineError{Operation: opSearch, Err: err}
	}
	response, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return nil, &EngineError{Operation: opSearch, Err: err}
	}
	defer closeBody(response)

	if response.IsError() {
		return nil, decodeEngineError(opSearch, response)
	}

	var decoded searchResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, &EngineError{Operation: opSearch, StatusCode: response.StatusCode, Err: err}
	}
	hits := make([]Hit, 0, len(decoded.Hits.Hits))
	for _, raw := range decoded.Hits.Hits {
		hits = append(hits, Hit{
			DocumentID: raw.ID,
			Score:      raw.Score,
			Entry:      raw.Source,
			Highlights: raw.Highlight,
		})
	}
	return hits, nil
}

func buildSearchBody(query Query) map[string]any {
	size := query.Size
	if size <= 0 {
		size = defaultHitCount
	}
	boolQuery := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":     query.Text,
				"fields":    searchFields,
				"fuzziness": "AUTO",
			},
		},
	}
	if query.AgencyID != nil {
		boolQuery["filter"] = []any{
			map[string]any{"term": map[string]any{fieldAgencyID: *query.AgencyID}},
		}
	}
	highlightFields := make(map[string]any, len(searchFields))
	for _, field := range searchFields {
		highlightFields[field] = map[string]any{}
	}
	return map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
		"highlight": map[string]any{
			"pre_tags":  []string{highlightPreTag},
			"post_tags": []string{highlightPostTag},
			"fields":    highlightFields,
		},
	}
}

type errorDetails struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type errorEnvelope struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

func decodeEngineError(operation string, response *opensearchapi.Response) error {
	engineErr := &EngineError{Operation: operation, StatusCode: response.StatusCode}
	if response.Body == nil {
		return engineErr
	}
	raw, err := io.ReadAll(response.Body)
	if err != nil || len(raw) == 0 {
		return engineErr
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		engineErr.Reason = strings.TrimSpace(string(raw))
		return engineErr
	}
	var details errorDetails
	if err := json.Unmarshal(envelope.Error, &details); err == nil {
		engineErr.Type = details.Type
		engineErr.Reason = details.Reason
		return engineErr
	}
	var message string
	if err := json.Unmarshal(envelope.Error, &message); err == nil {
		engineErr.Reason = message
	}
	return engineErr
}

func closeBody(response *opensearchapi.Response) {
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
}
