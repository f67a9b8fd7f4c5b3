package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/reviewsearch/internal/db"
)

func newTestStore(c rueidis.Client) *Store {
	return &Store{client: c}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

func hasArgs(cmd []string, want ...string) bool {
	joined := " " + strings.Join(cmd, " ") + " "
	return strings.Contains(joined, " "+strings.Join(want, " ")+" ")
}

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := newTestStore(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)

	s := newTestStore(c)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_ReportsLastError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	s := newTestStore(c)
	err := s.WaitForReady(context.Background(), 150*time.Millisecond)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected last ping error in %q", err)
	}
}

func TestRedisErrContains(t *testing.T) {
	serverErr := func(msg string) error {
		return mock.Result(mock.RedisError(msg)).Error()
	}
	tests := []struct {
		name      string
		err       error
		fragments []string
		want      bool
	}{
		{"case insensitive", serverErr("Index Already Exists"), []string{"index already exists"}, true},
		{"any fragment", serverErr("no such index"), []string{"unknown index name", "no such index"}, true},
		{"other reply", serverErr("WRONGTYPE"), []string{"no such index"}, false},
		{"client error", errors.New("no such index"), []string{"no such index"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := redisErrContains(tc.err, tc.fragments...); got != tc.want {
				t.Errorf("redisErrContains() = %v, want %v", got, tc.want)
			}
		})
	}
}

// --- hash.go tests ---

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	s := newTestStore(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	s := newTestStore(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
		{Key: "k2", Fields: map[string]string{"f": "v"}},
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if !strings.Contains(err.Error(), "k2") {
		t.Errorf("expected failing key in error, got %v", err)
	}
}

func TestHSetMulti_Chunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	items := make([]db.HashSetItem, hsetPipelineSize+3)
	for i := range items {
		items[i] = db.HashSetItem{Key: "k" + strconv.Itoa(i), Fields: map[string]string{"f": "v"}}
	}
	ok := func(n int) []rueidis.RedisResult {
		out := make([]rueidis.RedisResult, n)
		for i := range out {
			out[i] = mock.Result(mock.RedisInt64(1))
		}
		return out
	}
	gomock.InOrder(
		c.EXPECT().DoMulti(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
				if len(cmds) != hsetPipelineSize {
					t.Errorf("first chunk: expected %d commands, got %d", hsetPipelineSize, len(cmds))
				}
				return ok(len(cmds))
			}),
		c.EXPECT().DoMulti(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
				if len(cmds) != 3 {
					t.Errorf("second chunk: expected 3 commands, got %d", len(cmds))
				}
				return ok(len(cmds))
			}),
	)

	s := newTestStore(c)
	if err := s.HSetMulti(context.Background(), items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := newTestStore(nil)
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- kv.go tests ---

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisNil()))

	s := newTestStore(c)
	_, err := s.Get(context.Background(), "k")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestPut_WithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "PX", "60000")).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	if err := s.Put(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPut_NoExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	if err := s.Put(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPut_ErrorCarriesKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	err := s.Put(context.Background(), "rs:emb_cache:ab", []byte("v"), 0)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Key != "rs:emb_cache:ab" || dbErr.Op != db.OpSet {
		t.Fatalf("expected SET error for key, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_WeightedText(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" &&
				hasArgs(cmd, "ON", "HASH", "PREFIX", "1", "p:") &&
				hasArgs(cmd, "title", "TEXT", "WEIGHT", "3") &&
				hasArgs(cmd, "brand", "TEXT", "category")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	idx, err := db.NewIndex("products").Prefix("p:").
		Text("title", 3).Text("brand", 0).Text("category", 0).Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_HNSW(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" &&
				hasArgs(cmd, "vector", "VECTOR", "HNSW", "12",
					"TYPE", "FLOAT32", "DIM", "384", "DISTANCE_METRIC", "IP",
					"M", "32", "EF_CONSTRUCTION", "200", "EF_RUNTIME", "200")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	idx, err := db.NewIndex("reviews").Prefix("r:").
		Vector("vector", db.HNSWParams{Dim: 384, Distance: db.DistanceIP, M: 32, EFConstruction: 200, EFRuntime: 200}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := newTestStore(c)
	idx := &db.IndexDefinition{
		Name:   "test:idx",
		Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}},
	}
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_DeleteDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx", "DD")).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	if err := s.DropIndex(context.Background(), "test:idx", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := newTestStore(c)
	err := s.DropIndex(context.Background(), "test:idx", false)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists_False(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := newTestStore(c)
	exists, err := s.IndexExists(context.Background(), "test:idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected false")
	}
}

func TestIndexInfo_Parses(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "reviews")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("reviews"),
			mock.RedisString("num_docs"), mock.RedisString("3"),
			mock.RedisString("indexing"), mock.RedisInt64(0),
			mock.RedisString("percent_indexed"), mock.RedisString("1"),
			mock.RedisString("attributes"), mock.RedisArray(),
		)))

	s := newTestStore(c)
	stats, err := s.IndexInfo(context.Background(), "reviews")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.NumDocs != 3 {
		t.Errorf("NumDocs = %d, want 3", stats.NumDocs)
	}
	if stats.Indexing {
		t.Error("Indexing = true, want false")
	}
	if stats.PercentIndexed != 1 {
		t.Errorf("PercentIndexed = %v, want 1", stats.PercentIndexed)
	}
}

func TestIndexInfo_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "reviews")).
		Return(mock.Result(mock.RedisError("Unknown index name")))

	s := newTestStore(c)
	_, err := s.IndexInfo(context.Background(), "reviews")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	_, err := buildFieldArgs(&db.IndexField{Name: "", Type: db.IndexFieldTag})
	if err == nil {
		t.Error("expected error for empty field name")
	}

	_, err = buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)})
	if err == nil {
		t.Error("expected error for unknown type")
	}

	_, err = buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldVector, HNSW: &db.HNSWParams{}})
	if err == nil {
		t.Error("expected error for zero vector dim")
	}

	_, err = buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldVector})
	if err == nil {
		t.Error("expected error for missing hnsw params")
	}
}

func TestHNSWArgs_DefaultsDistanceAndSkipsUnset(t *testing.T) {
	got := hnswArgs(&db.HNSWParams{Dim: 8})
	want := []string{"VECTOR", "HNSW", "6", "TYPE", "FLOAT32", "DIM", "8", "DISTANCE_METRIC", "IP"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("hnswArgs = %v, want %v", got, want)
	}
}

// --- search.go tests ---

func TestSearchKNN_PerCallBeamWidth(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" &&
				cmd[1] == "reviews" &&
				cmd[2] == "*=>[KNN 50 @vector $BLOB EF_RUNTIME 300]" &&
				hasArgs(cmd, "SORTBY", "__vector_score", "LIMIT", "0", "50") &&
				hasArgs(cmd, "DIALECT", "2")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("r:0"),
			mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString("0")),
			mock.RedisString("r:2"),
			mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString("0.3")),
		)))

	s := newTestStore(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "reviews",
		Vector:       []float32{1, 0},
		K:            50,
		EFRuntime:    300,
		ReturnFields: []string{"__vector_score"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Key != "r:0" || result.Entries[0].Score != 0 {
		t.Errorf("entry[0] = %+v", result.Entries[0])
	}
	// raw distance is passed through untouched
	if result.Entries[1].Score < 0.29 || result.Entries[1].Score > 0.31 {
		t.Errorf("expected distance ~0.3, got %f", result.Entries[1].Score)
	}
	if _, ok := result.Entries[1].Fields["__vector_score"]; ok {
		t.Error("score field should be removed from fields")
	}
}

func TestSearchKNN_NoBeamWidth(t *testing.T) {
	args := buildKNNArgs(&db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 5})
	if args[1] != "*=>[KNN 5 @vector $BLOB]" {
		t.Errorf("unexpected query %q", args[1])
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1},
		K:         10,
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}}); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestSearchBM25_MultiField(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" &&
				cmd[2] == `@title|description:(usb\-c|cable)` &&
				hasArgs(cmd, "SCORER", "BM25STD", "WITHSCORES", "LIMIT", "0", "5")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("p:A"),
			mock.RedisString("2.5"),
			mock.RedisArray(
				mock.RedisString("title"), mock.RedisString("USB-C cable"),
				mock.RedisString("price"), mock.RedisString("9.99"),
			),
		)))

	s := newTestStore(c)
	result, err := s.SearchBM25(context.Background(), &db.TextQuery{
		IndexName: "products",
		Query:     "usb-c  cable",
		Fields:    []string{"title", "description"},
		TopK:      5,
		Scorer:    "BM25STD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	e := result.Entries[0]
	if e.Key != "p:A" || e.Score != 2.5 || e.Fields["price"] != "9.99" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestSearchBM25_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchBM25(ctx, &db.TextQuery{Query: "test", TopK: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchBM25(ctx, &db.TextQuery{IndexName: "idx", Query: "  ", TopK: 10}); err == nil {
		t.Error("expected error for blank query")
	}
	if _, err := s.SearchBM25(ctx, &db.TextQuery{IndexName: "idx", Query: "test"}); err == nil {
		t.Error("expected error for topK=0")
	}
}

func TestBuildTextQuery(t *testing.T) {
	tests := []struct {
		text   string
		fields []string
		want   string
	}{
		{"red shoes", []string{"title"}, "@title:(red|shoes)"},
		{"red", nil, "(red)"},
		{"a|b", []string{"t", "d"}, `@t|d:(a\|b)`},
		{"   ", []string{"t"}, ""},
	}
	for _, tc := range tests {
		if got := buildTextQuery(tc.text, tc.fields); got != tc.want {
			t.Errorf("buildTextQuery(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestParseSearchReply_SkipsEntriesWithoutScore(t *testing.T) {
	raw := []rueidis.RedisMessage{
		mock.RedisInt64(3),
		mock.RedisString("r:1"),
		mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString("0.25")),
		mock.RedisString("r:2"),
		mock.RedisArray(mock.RedisString("asin"), mock.RedisString("B0")),
		mock.RedisString("r:3"),
		mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString("nan-ish")),
	}
	res, err := parseSearchReply(raw, "__vector_score")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 3 || len(res.Entries) != 1 || res.Entries[0].Key != "r:1" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestEscapeTerm(t *testing.T) {
	for in, want := range map[string]string{
		"plain": "plain",
		"usb-c": `usb\-c`,
		"5.0\"": `5\.0\"`,
		"café":  "café",
		"a@b:c": `a\@b\:c`,
	} {
		if got := escapeTerm(in); got != want {
			t.Errorf("escapeTerm(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchKNN_NegativeBeamWidth(t *testing.T) {
	s := &Store{}
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1, EFRuntime: -1})
	if err == nil {
		t.Error("expected error for negative ef_runtime")
	}
}
