package content

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/cache"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

type mockClassRepo struct {
	listPublishedFunc     func(ctx context.Context) ([]*model.Class, error)
	findPublishedByIDFunc func(ctx context.Context, id string) (*model.Class, error)
}

func (m *mockClassRepo) ListPublished(ctx context.Context) ([]*model.Class, error) {
	return m.listPublishedFunc(ctx)
}

func (m *mockClassRepo) FindPublishedByID(ctx context.Context, id string) (*model.Class, error) {
	return m.findPublishedByIDFunc(ctx, id)
}

type mockDeckRepo struct {
	findPublishedByIDFunc    func(ctx context.Context, id string) (*model.Deck, error)
	listPublishedByClassFunc func(ctx context.Context, classID string) ([]*model.Deck, error)
}

func (m *mockDeckRepo) FindPublishedByID(ctx context.Context, id string) (*model.Deck, error) {
	return m.findPublishedByIDFunc(ctx, id)
}

func (m *mockDeckRepo) ListPublishedByClassID(ctx context.Context, classID string) ([]*model.Deck, error) {
	return m.listPublishedByClassFunc(ctx, classID)
}

type mockCardRepo struct {
	findPublishedByIDFunc    func(ctx context.Context, id string) (*model.Flashcard, error)
	listPublishedByDeckFunc  func(ctx context.Context, deckID string) ([]*model.Flashcard, error)
	listPublishedByClassFunc func(ctx context.Context, classID string, includePremium bool) ([]*model.Flashcard, error)
}

func (m *mockCardRepo) FindPublishedByID(ctx context.Context, id string) (*model.Flashcard, error) {
	return m.findPublishedByIDFunc(ctx, id)
}

func (m *mockCardRepo) ListPublishedByDeckID(ctx context.Context, deckID string) ([]*model.Flashcard, error) {
	return m.listPublishedByDeckFunc(ctx, deckID)
}

func (m *mockCardRepo) ListPublishedByClassID(ctx context.Context, classID string, includePremium bool) ([]*model.Flashcard, error) {
	return m.listPublishedByClassFunc(ctx, classID, includePremium)
}

type mockQuizRepo struct {
	listByDeckIDFunc func(ctx context.Context, deckID string) ([]*model.QuizQuestion, error)
}

func (m *mockQuizRepo) ListByDeckID(ctx context.Context, deckID string) ([]*model.QuizQuestion, error) {
	return m.listByDeckIDFunc(ctx, deckID)
}

type mockBookmarkRepo struct {
	listByUserIDFunc func(ctx context.Context, userID string) ([]*model.Bookmark, error)
	upsertFunc       func(ctx context.Context, bookmark *model.Bookmark) error
	deleteFunc       func(ctx context.Context, userID, flashcardID string) (bool, error)
}

func (m *mockBookmarkRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Bookmark, error) {
	return m.listByUserIDFunc(ctx, userID)
}

func (m *mockBookmarkRepo) Upsert(ctx context.Context, bookmark *model.Bookmark) error {
	return m.upsertFunc(ctx, bookmark)
}

func (m *mockBookmarkRepo) Delete(ctx context.Context, userID, flashcardID string) (bool, error) {
	return m.deleteFunc(ctx, userID, flashcardID)
}

type mockEntitlements struct {
	entitled bool
	err      error
	calls    int
}

func (m *mockEntitlements) Entitlement(ctx context.Context, userID string) (bool, error) {
	m.calls++
	return m.entitled, m.err
}

// passthroughSanitizer はサニタイズの呼び出しを可視化するテスト用実装。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(html string) string {
	return "clean:" + html
}

// mockStore はSet/Get/DeleteByPrefixの呼び出しを記録するインメモリ実装。
type mockStore struct {
	data            map[string][]byte
	deletedPrefixes []string
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string][]byte{}}
}

func (m *mockStore) Get(key string) ([]byte, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockStore) Set(key string, value []byte, ttl time.Duration) {
	m.data[key] = value
}

func (m *mockStore) Delete(key string) {
	delete(m.data, key)
}

func (m *mockStore) DeleteByPrefix(prefix string) {
	m.deletedPrefixes = append(m.deletedPrefixes, prefix)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
}

func (m *mockStore) Stop() {}

type contentDeps struct {
	classRepo    *mockClassRepo
	deckRepo     *mockDeckRepo
	cardRepo     *mockCardRepo
	quizRepo     *mockQuizRepo
	bookmarkRepo *mockBookmarkRepo
	entitlements *mockEntitlements
	store        *mockStore
}

func defaultContentDeps() *contentDeps {
	return &contentDeps{
		classRepo: &mockClassRepo{
			listPublishedFunc: func(ctx context.Context) ([]*model.Class, error) {
				return nil, nil
			},
			findPublishedByIDFunc: func(ctx context.Context, id string) (*model.Class, error) {
				return &model.Class{ID: id, Title: "Security and Risk Management", IsPublished: true}, nil
			},
		},
		deckRepo: &mockDeckRepo{
			findPublishedByIDFunc: func(ctx context.Context, id string) (*model.Deck, error) {
				return &model.Deck{ID: id, ClassID: "class-1", Title: "CIA Triad", IsPublished: true}, nil
			},
			listPublishedByClassFunc: func(ctx context.Context, classID string) ([]*model.Deck, error) {
				return nil, nil
			},
		},
		cardRepo: &mockCardRepo{
			findPublishedByIDFunc: func(ctx context.Context, id string) (*model.Flashcard, error) {
				return &model.Flashcard{ID: id, IsPublished: true}, nil
			},
			listPublishedByDeckFunc: func(ctx context.Context, deckID string) ([]*model.Flashcard, error) {
				return nil, nil
			},
			listPublishedByClassFunc: func(ctx context.Context, classID string, includePremium bool) ([]*model.Flashcard, error) {
				return nil, nil
			},
		},
		quizRepo: &mockQuizRepo{
			listByDeckIDFunc: func(ctx context.Context, deckID string) ([]*model.QuizQuestion, error) {
				return nil, nil
			},
		},
		bookmarkRepo: &mockBookmarkRepo{
			listByUserIDFunc: func(ctx context.Context, userID string) ([]*model.Bookmark, error) {
				return nil, nil
			},
			upsertFunc: func(ctx context.Context, bookmark *model.Bookmark) error {
				return nil
			},
			deleteFunc: func(ctx context.Context, userID, flashcardID string) (bool, error) {
				return true, nil
			},
		},
		entitlements: &mockEntitlements{},
		store:        newMockStore(),
	}
}

func newContentService(deps *contentDeps) *Service {
	return NewService(
		deps.classRepo,
		deps.deckRepo,
		deps.cardRepo,
		deps.quizRepo,
		deps.bookmarkRepo,
		deps.entitlements,
		passthroughSanitizer{},
		deps.store,
		nil,
		ServiceConfig{CacheTTL: 5 * time.Minute},
	)
}

// TestListClasses_CacheMissThenHit はキャッシュアサイドの基本動作を検証する。
func TestListClasses_CacheMissThenHit(t *testing.T) {
	deps := defaultContentDeps()
	dbCalls := 0
	deps.classRepo.listPublishedFunc = func(ctx context.Context) ([]*model.Class, error) {
		dbCalls++
		return []*model.Class{
			{ID: "class-1", Title: "Security and Risk Management", Position: 1},
			{ID: "class-2", Title: "Asset Security", Position: 2},
		}, nil
	}
	service := newContentService(deps)

	first, err := service.ListClasses(context.Background())
	if err != nil {
		t.Fatalf("ListClasses() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("len(classes) = %d, want 2", len(first))
	}

	second, err := service.ListClasses(context.Background())
	if err != nil {
		t.Fatalf("ListClasses() second call error = %v", err)
	}
	if dbCalls != 1 {
		t.Errorf("repository calls = %d, want 1 (second read should hit cache)", dbCalls)
	}
	if second[0].ID != "class-1" || second[1].Title != "Asset Security" {
		t.Errorf("cached classes = %+v, want same as first read", second)
	}
}

// TestListClasses_CorruptCacheFallsBack は壊れたキャッシュエントリがDBに縮退することを検証する。
func TestListClasses_CorruptCacheFallsBack(t *testing.T) {
	deps := defaultContentDeps()
	deps.store.data[cache.KeyClassList()] = []byte("{not json")
	deps.classRepo.listPublishedFunc = func(ctx context.Context) ([]*model.Class, error) {
		return []*model.Class{{ID: "class-1"}}, nil
	}
	service := newContentService(deps)

	classes, err := service.ListClasses(context.Background())
	if err != nil {
		t.Fatalf("ListClasses() error = %v", err)
	}
	if len(classes) != 1 || classes[0].ID != "class-1" {
		t.Errorf("classes = %+v, want DB result", classes)
	}
}

// TestGetClassDetail_NotFound は未公開クラスがCLASS_NOT_FOUNDになることを検証する。
func TestGetClassDetail_NotFound(t *testing.T) {
	deps := defaultContentDeps()
	deps.classRepo.findPublishedByIDFunc = func(ctx context.Context, id string) (*model.Class, error) {
		return nil, nil
	}
	service := newContentService(deps)

	_, err := service.GetClassDetail(context.Background(), "missing")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeClassNotFound {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeClassNotFound)
	}
}

// TestGetClassDetail_IncludesDecks はクラス詳細にデッキ一覧が含まれることを検証する。
func TestGetClassDetail_IncludesDecks(t *testing.T) {
	deps := defaultContentDeps()
	deps.deckRepo.listPublishedByClassFunc = func(ctx context.Context, classID string) ([]*model.Deck, error) {
		return []*model.Deck{
			{ID: "deck-1", ClassID: classID, Title: "CIA Triad", Position: 1},
			{ID: "deck-2", ClassID: classID, Title: "Governance", Position: 2, IsPremium: true},
		}, nil
	}
	service := newContentService(deps)

	detail, err := service.GetClassDetail(context.Background(), "class-1")
	if err != nil {
		t.Fatalf("GetClassDetail() error = %v", err)
	}
	if detail.Class.ID != "class-1" {
		t.Errorf("Class.ID = %s, want class-1", detail.Class.ID)
	}
	if len(detail.Decks) != 2 {
		t.Fatalf("len(Decks) = %d, want 2", len(detail.Decks))
	}
	if !detail.Decks[1].IsPremium {
		t.Errorf("Decks[1].IsPremium = false, want true")
	}

	if _, ok := deps.store.data[cache.KeyClassDetail("class-1")]; !ok {
		t.Errorf("class detail should be cached after read")
	}
}

// TestGetDeckCards_PremiumGate はプレミアムデッキの資格判定を検証する。
func TestGetDeckCards_PremiumGate(t *testing.T) {
	deps := defaultContentDeps()
	deps.deckRepo.findPublishedByIDFunc = func(ctx context.Context, id string) (*model.Deck, error) {
		return &model.Deck{ID: id, ClassID: "class-1", IsPremium: true, IsPublished: true}, nil
	}
	deps.entitlements.entitled = false
	service := newContentService(deps)

	_, err := service.GetDeckCards(context.Background(), "user-1", "deck-1")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodePremiumRequired {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodePremiumRequired)
	}
}

// TestGetDeckCards_FreeDeckSkipsEntitlementCheck は無料デッキで資格判定を呼ばないことを検証する。
func TestGetDeckCards_FreeDeckSkipsEntitlementCheck(t *testing.T) {
	deps := defaultContentDeps()
	service := newContentService(deps)

	if _, err := service.GetDeckCards(context.Background(), "user-1", "deck-1"); err != nil {
		t.Fatalf("GetDeckCards() error = %v", err)
	}
	if deps.entitlements.calls != 0 {
		t.Errorf("entitlement calls = %d, want 0 for free deck", deps.entitlements.calls)
	}
}

// TestGetDeckCards_SanitizesBeforeCaching はカード本文がサニタイズ済みで
// キャッシュに格納されることを検証する。
func TestGetDeckCards_SanitizesBeforeCaching(t *testing.T) {
	deps := defaultContentDeps()
	deps.cardRepo.listPublishedByDeckFunc = func(ctx context.Context, deckID string) ([]*model.Flashcard, error) {
		return []*model.Flashcard{
			{ID: "card-1", DeckID: deckID, FrontHTML: "<p>機密性とは何か</p>", BackHTML: "<p>認可された者だけがアクセスできる性質</p>"},
		}, nil
	}
	deps.quizRepo.listByDeckIDFunc = func(ctx context.Context, deckID string) ([]*model.QuizQuestion, error) {
		return []*model.QuizQuestion{
			{ID: "q-1", FlashcardID: "card-1", QuestionHTML: "<p>CIAのCは？</p>", Options: []string{"Confidentiality", "Consistency"}, CorrectIndex: 0},
		}, nil
	}
	service := newContentService(deps)

	result, err := service.GetDeckCards(context.Background(), "user-1", "deck-1")
	if err != nil {
		t.Fatalf("GetDeckCards() error = %v", err)
	}
	if got := result.Cards[0].FrontHTML; got != "clean:<p>機密性とは何か</p>" {
		t.Errorf("FrontHTML = %q, want sanitized output", got)
	}
	if got := result.Questions[0].QuestionHTML; got != "clean:<p>CIAのCは？</p>" {
		t.Errorf("QuestionHTML = %q, want sanitized output", got)
	}

	data, ok := deps.store.data[cache.KeyDeckCards("deck-1")]
	if !ok {
		t.Fatalf("deck cards should be cached after read")
	}
	var cached DeckCards
	if err := json.Unmarshal(data, &cached); err != nil {
		t.Fatalf("cached payload is not valid JSON: %v", err)
	}
	if cached.Cards[0].BackHTML != "clean:<p>認可された者だけがアクセスできる性質</p>" {
		t.Errorf("cached BackHTML = %q, want sanitized output", cached.Cards[0].BackHTML)
	}
}

// TestGetDeckCards_DeckNotFound を検証する。
func TestGetDeckCards_DeckNotFound(t *testing.T) {
	deps := defaultContentDeps()
	deps.deckRepo.findPublishedByIDFunc = func(ctx context.Context, id string) (*model.Deck, error) {
		return nil, nil
	}
	service := newContentService(deps)

	_, err := service.GetDeckCards(context.Background(), "user-1", "missing")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeDeckNotFound {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeDeckNotFound)
	}
}

// TestAddBookmark_InvalidatesUserCache はブックマーク追加でユーザースコープの
// キャッシュが無効化されることを検証する。
func TestAddBookmark_InvalidatesUserCache(t *testing.T) {
	deps := defaultContentDeps()
	var upserted *model.Bookmark
	deps.bookmarkRepo.upsertFunc = func(ctx context.Context, bookmark *model.Bookmark) error {
		upserted = bookmark
		return nil
	}
	service := newContentService(deps)

	if err := service.AddBookmark(context.Background(), "user-1", "card-1"); err != nil {
		t.Fatalf("AddBookmark() error = %v", err)
	}
	if upserted == nil {
		t.Fatal("bookmark should be upserted")
	}
	if upserted.UserID != "user-1" || upserted.FlashcardID != "card-1" {
		t.Errorf("upserted = %+v, want user-1/card-1", upserted)
	}
	if upserted.ID == "" {
		t.Errorf("bookmark ID should be generated")
	}

	if len(deps.store.deletedPrefixes) != 1 || deps.store.deletedPrefixes[0] != cache.UserPrefix("user-1") {
		t.Errorf("deleted prefixes = %v, want [%s]", deps.store.deletedPrefixes, cache.UserPrefix("user-1"))
	}
}

// TestAddBookmark_CardNotFound は存在しないカードのブックマークを拒否することを検証する。
func TestAddBookmark_CardNotFound(t *testing.T) {
	deps := defaultContentDeps()
	deps.cardRepo.findPublishedByIDFunc = func(ctx context.Context, id string) (*model.Flashcard, error) {
		return nil, nil
	}
	service := newContentService(deps)

	err := service.AddBookmark(context.Background(), "user-1", "missing")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeCardNotFound {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeCardNotFound)
	}
}

// TestRemoveBookmark_NotFound は未登録カードの解除がBOOKMARK_NOT_FOUNDになることを検証する。
func TestRemoveBookmark_NotFound(t *testing.T) {
	deps := defaultContentDeps()
	deps.bookmarkRepo.deleteFunc = func(ctx context.Context, userID, flashcardID string) (bool, error) {
		return false, nil
	}
	service := newContentService(deps)

	err := service.RemoveBookmark(context.Background(), "user-1", "card-1")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeBookmarkNotFound {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeBookmarkNotFound)
	}
	if len(deps.store.deletedPrefixes) != 0 {
		t.Errorf("cache should not be invalidated on failed delete")
	}
}

// TestListBookmarks_CachedPerUser はブックマーク一覧がユーザー単位でキャッシュされる
// ことを検証する。
func TestListBookmarks_CachedPerUser(t *testing.T) {
	deps := defaultContentDeps()
	dbCalls := 0
	deps.bookmarkRepo.listByUserIDFunc = func(ctx context.Context, userID string) ([]*model.Bookmark, error) {
		dbCalls++
		return []*model.Bookmark{{ID: "bm-1", UserID: userID, FlashcardID: "card-1"}}, nil
	}
	service := newContentService(deps)

	if _, err := service.ListBookmarks(context.Background(), "user-1"); err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if _, err := service.ListBookmarks(context.Background(), "user-1"); err != nil {
		t.Fatalf("ListBookmarks() second call error = %v", err)
	}
	if dbCalls != 1 {
		t.Errorf("repository calls = %d, want 1", dbCalls)
	}

	// 別ユーザーはキャッシュを共有しない
	if _, err := service.ListBookmarks(context.Background(), "user-2"); err != nil {
		t.Fatalf("ListBookmarks() for user-2 error = %v", err)
	}
	if dbCalls != 2 {
		t.Errorf("repository calls = %d, want 2 (per-user cache keys)", dbCalls)
	}
}
