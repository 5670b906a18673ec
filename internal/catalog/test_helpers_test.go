package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/askgov/internal/search"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testIndexName   = "faq_test"
	testNowSeconds  = int64(1700000600)
	testStaffUserID = "staff-1"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

var errInjectedEngineFailure = errors.New("injected engine failure")

// flakyEngine delegates to a memory engine and fails the operations that are switched on.
type flakyEngine struct {
	*search.MemoryEngine
	failCreate bool
	failUpdate bool
	failDelete bool
	failBulk   bool
}

func (e *flakyEngine) CreateDocument(ctx context.Context, index string, documentID string, entry search.Entry) error {
	if e.failCreate {
		return &search.EngineError{Operation: "search.create_document", StatusCode: 503, Err: errInjectedEngineFailure}
	}
	return e.MemoryEngine.CreateDocument(ctx, index, documentID, entry)
}

func (e *flakyEngine) UpdateDocument(ctx context.Context, index string, documentID string, entry search.Entry) error {
	if e.failUpdate {
		return &search.EngineError{Operation: "search.update_document", StatusCode: 503, Err: errInjectedEngineFailure}
	}
	return e.MemoryEngine.UpdateDocument(ctx, index, documentID, entry)
}

func (e *flakyEngine) DeleteDocument(ctx context.Context, index string, documentID string) error {
	if e.failDelete {
		return &search.EngineError{Operation: "search.delete_document", StatusCode: 503, Err: errInjectedEngineFailure}
	}
	return e.MemoryEngine.DeleteDocument(ctx, index, documentID)
}

func (e *flakyEngine) Bulk(ctx context.Context, index string, operations []search.BulkOperation) (search.BulkResult, error) {
	if e.failBulk {
		return search.BulkResult{}, &search.EngineError{Operation: "search.bulk", StatusCode: 503, Err: errInjectedEngineFailure}
	}
	return e.MemoryEngine.Bulk(ctx, index, operations)
}

type testCatalog struct {
	service *Service
	db      *gorm.DB
	engine  *flakyEngine
}

func newTestCatalog(t *testing.T) testCatalog {
	t.Helper()
	return newTestCatalogWithChunk(t, 0)
}

func newTestCatalogWithChunk(t *testing.T, chunkSize int) testCatalog {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	engine := &flakyEngine{MemoryEngine: search.NewMemoryEngine()}
	service, err := NewService(ServiceConfig{
		Database:          db,
		Engine:            engine,
		IndexName:         testIndexName,
		Clock:             func() time.Time { return time.Unix(testNowSeconds, 0).UTC() },
		IDProvider:        &staticIDGenerator{ids: []string{"run-1", "run-2", "run-3"}},
		BackfillChunkSize: chunkSize,
	})
	if err != nil {
		t.Fatalf("failed to construct catalog service: %v", err)
	}
	return testCatalog{service: service, db: db, engine: engine}
}

func (c testCatalog) mustAgency(t *testing.T, shortName string) Agency {
	t.Helper()
	agency := Agency{ShortName: shortName, LongName: shortName + " agency", CreatedAtSeconds: 1, UpdatedAtSeconds: 1}
	if err := c.db.Create(&agency).Error; err != nil {
		t.Fatalf("failed to seed agency: %v", err)
	}
	return agency
}

func (c testCatalog) mustTag(t *testing.T, name string) Tag {
	t.Helper()
	tag := Tag{TagName: name, TagType: TagTypeTopic, CreatedAtSeconds: 1, UpdatedAtSeconds: 1}
	if err := c.db.Create(&tag).Error; err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}
	return tag
}

func (c testCatalog) mustTopic(t *testing.T, agencyID uint, name string, parent *Topic) Topic {
	t.Helper()
	topic := Topic{Name: name, AgencyID: agencyID, CreatedAtSeconds: 1, UpdatedAtSeconds: 1}
	if parent != nil {
		parentID := parent.ID
		topic.ParentID = &parentID
	}
	if err := c.db.Create(&topic).Error; err != nil {
		t.Fatalf("failed to seed topic: %v", err)
	}
	return topic
}

type seedPost struct {
	title     string
	agencyID  uint
	status    PostStatus
	topic     *Topic
	tags      []Tag
	views     int64
	updatedAt int64
}

// mustPost inserts rows directly, bypassing the index.
func (c testCatalog) mustPost(t *testing.T, seed seedPost) Post {
	t.Helper()
	status := seed.status
	if status == "" {
		status = PostStatusPublic
	}
	updatedAt := seed.updatedAt
	if updatedAt == 0 {
		updatedAt = 100
	}
	post := Post{
		Title:            seed.title,
		Status:           status,
		Views:            seed.views,
		UserID:           "citizen-1",
		AgencyID:         seed.agencyID,
		CreatedAtSeconds: updatedAt,
		UpdatedAtSeconds: updatedAt,
	}
	if seed.topic != nil {
		topicID := seed.topic.ID
		post.TopicID = &topicID
	}
	if err := c.db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	for _, tag := range seed.tags {
		link := PostTag{PostID: post.ID, TagID: tag.ID, CreatedAtSeconds: updatedAt, UpdatedAtSeconds: updatedAt}
		if err := c.db.Create(&link).Error; err != nil {
			t.Fatalf("failed to seed post tag: %v", err)
		}
	}
	return post
}

func (c testCatalog) mustAnswer(t *testing.T, postID uint, body string) Answer {
	t.Helper()
	answer := Answer{PostID: postID, UserID: testStaffUserID, Body: body, CreatedAtSeconds: 1, UpdatedAtSeconds: 1}
	if err := c.db.Create(&answer).Error; err != nil {
		t.Fatalf("failed to seed answer: %v", err)
	}
	return answer
}

func (c testCatalog) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	if err := c.db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

func (c testCatalog) loadPost(t *testing.T, postID uint) Post {
	t.Helper()
	var post Post
	if err := c.db.Where("id = ?", postID).Take(&post).Error; err != nil {
		t.Fatalf("failed to load post %d: %v", postID, err)
	}
	return post
}

func (c testCatalog) tagIDsOfPost(t *testing.T, postID uint) []uint {
	t.Helper()
	var links []PostTag
	if err := c.db.Where("post_id = ?", postID).Order("tag_id ASC").Find(&links).Error; err != nil {
		t.Fatalf("failed to load post tags: %v", err)
	}
	ids := make([]uint, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.TagID)
	}
	return ids
}

func postIDs(views []PostView) []uint {
	ids := make([]uint, 0, len(views))
	for _, view := range views {
		ids = append(ids, view.Post.ID)
	}
	return ids
}

func uintPointer(value uint) *uint {
	return &value
}

func stringPointer(value string) *string {
	return &value
}
