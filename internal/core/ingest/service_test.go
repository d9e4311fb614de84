package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repochat/internal/core/chunk"
	"github.com/jinford/repochat/internal/core/embedding"
	"github.com/jinford/repochat/internal/core/vectorstore"
	"github.com/jinford/repochat/internal/infra/memvector"
)

// mockProvider はテスト用の SourceProvider
type mockProvider struct {
	files    []SourceFile
	contents map[string]string
	listErr  error
	fetchErr map[string]error
}

func (m *mockProvider) ResolveRepoID(rawURL string) (string, error) {
	return strings.TrimSuffix(strings.TrimPrefix(rawURL, "https://github.com/"), ".git"), nil
}

func (m *mockProvider) ListFiles(_ context.Context, _ string) ([]SourceFile, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.files, nil
}

func (m *mockProvider) FileContent(_ context.Context, file SourceFile) (string, error) {
	if err, ok := m.fetchErr[file.Path]; ok {
		return "", err
	}
	return m.contents[file.Path], nil
}

// recordingCollection は InsertBatch の内容を記録するコレクション
type recordingCollection struct {
	ids       []string
	documents []string
	metadatas []vectorstore.Metadata
	insertErr error
}

func (c *recordingCollection) InsertBatch(_ context.Context, ids []string, _ [][]float32, documents []string, metadatas []vectorstore.Metadata) error {
	if c.insertErr != nil {
		return c.insertErr
	}
	c.ids = append(c.ids, ids...)
	c.documents = append(c.documents, documents...)
	c.metadatas = append(c.metadatas, metadatas...)
	return nil
}

func (c *recordingCollection) Query(_ context.Context, _ []float32, _ int) ([]vectorstore.QueryResult, error) {
	return nil, nil
}

func (c *recordingCollection) Count(_ context.Context) (int, error) {
	return len(c.ids), nil
}

// recordingStore は Delete / GetOrCreate の呼び出しを記録するストア
type recordingStore struct {
	collection *recordingCollection
	deletes    []string
	creates    []string
	deleteErr  error
}

func (s *recordingStore) GetOrCreate(_ context.Context, repoID string) (vectorstore.Collection, error) {
	s.creates = append(s.creates, repoID)
	return s.collection, nil
}

func (s *recordingStore) Delete(_ context.Context, repoID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, repoID)
	return nil
}

// stubEmbedClient は決め打ちのベクトルを返す Embedding クライアント
type stubEmbedClient struct {
	failOn map[string]error // 埋め込みテキストの部分一致で失敗させる
}

func (c *stubEmbedClient) Embed(_ context.Context, text string) ([]float32, error) {
	for needle, err := range c.failOn {
		if strings.Contains(text, needle) {
			return nil, err
		}
	}
	return []float32{1, 0}, nil
}

func newTestService(provider *mockProvider, store *recordingStore, opts ...ServiceOption) *Service {
	embedder := embedding.NewBatchEmbedder(&stubEmbedClient{}, embedding.WithDelay(0))
	return NewService(provider, chunk.NewRegistry(), embedder, store, opts...)
}

func TestService_Ingest(t *testing.T) {
	provider := &mockProvider{
		files: []SourceFile{
			{Path: "main.go"},
			{Path: "util.py"},
		},
		contents: map[string]string{
			"main.go": "func main() {\n}\n\nfunc helper() {\n}\n",
			"util.py": "def util():\n    pass\n",
		},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store)

	result, err := svc.Ingest(context.Background(), "https://github.com/acme/app.git")
	require.NoError(t, err)

	assert.Equal(t, "acme/app", result.RepoID)
	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, 3, result.ChunkCount)
	assert.Zero(t, result.SkippedFiles)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.RunID.String())

	// コレクションは削除してから作り直されている
	assert.Equal(t, []string{"acme/app"}, store.deletes)
	assert.Equal(t, []string{"acme/app"}, store.creates)

	// レコード ID はコレクション全体で連番になっている
	require.Len(t, store.collection.ids, 3)
	for i, id := range store.collection.ids {
		assert.Equal(t, fmt.Sprintf("chunk_%d", i), id)
	}

	// メタデータに言語とセクション名が入っている
	assert.Equal(t, "main.go", store.collection.metadatas[0].Path)
	assert.Equal(t, string(chunk.LanguageGo), store.collection.metadatas[0].Language)
	assert.Equal(t, "main", store.collection.metadatas[0].Name)
}

func TestService_Ingest_BatchIDsStaySequential(t *testing.T) {
	// バッチ境界をまたいでも ID の連番は途切れない
	provider := &mockProvider{contents: map[string]string{}}
	for i := 0; i < 3; i++ {
		path := fmt.Sprintf("f%d.go", i)
		provider.files = append(provider.files, SourceFile{Path: path})
		provider.contents[path] = fmt.Sprintf("func f%d() {\n}\n", i)
	}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store, WithBatchSize(2))

	result, err := svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunkCount)
	assert.Equal(t, []string{"chunk_0", "chunk_1", "chunk_2"}, store.collection.ids)
}

func TestService_Ingest_FiltersNoiseAndUnsupported(t *testing.T) {
	provider := &mockProvider{
		files: []SourceFile{
			{Path: "main.go"},
			{Path: "node_modules/lib/index.js"},
			{Path: "vendor/dep/dep.go"},
			{Path: "logo.png"},
			{Path: "build/out.js"},
		},
		contents: map[string]string{
			"main.go": "func main() {\n}\n",
		},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store)

	result, err := svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)

	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, 1, result.ChunkCount)
}

func TestService_Ingest_NoSupportedFiles(t *testing.T) {
	// 対象ファイルが無い場合は正常終了し、既存コレクションには触れない
	provider := &mockProvider{
		files: []SourceFile{
			{Path: "README.pdf"},
			{Path: "assets/logo.svg"},
		},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store)

	result, err := svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)

	assert.Zero(t, result.FileCount)
	assert.Zero(t, result.ChunkCount)
	assert.Equal(t, NoSupportedFilesMessage, result.Message)
	assert.Empty(t, store.deletes)
	assert.Empty(t, store.creates)
}

func TestService_Ingest_SkipsUnreadableFile(t *testing.T) {
	provider := &mockProvider{
		files: []SourceFile{
			{Path: "main.go"},
			{Path: "broken.go"},
		},
		contents: map[string]string{
			"main.go": "func main() {\n}\n",
		},
		fetchErr: map[string]error{
			"broken.go": errors.New("read error"),
		},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store)

	result, err := svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)

	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, 1, result.SkippedFiles)
	assert.Equal(t, 1, result.ChunkCount)
}

func TestService_Ingest_ListingFailure(t *testing.T) {
	provider := &mockProvider{listErr: errors.New("clone failed")}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store)

	_, err := svc.Ingest(context.Background(), "acme/app")

	var listErr *ListingError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, "acme/app", listErr.RepoID)
	assert.Empty(t, store.deletes)
}

func TestService_Ingest_InsertFailure(t *testing.T) {
	provider := &mockProvider{
		files:    []SourceFile{{Path: "main.go"}},
		contents: map[string]string{"main.go": "func main() {\n}\n"},
	}
	store := &recordingStore{
		collection: &recordingCollection{insertErr: errors.New("db down")},
	}
	svc := newTestService(provider, store)

	_, err := svc.Ingest(context.Background(), "acme/app")

	var idxErr *IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.ErrorContains(t, err, "db down")
}

func TestService_Ingest_AllEmbeddingsFailed(t *testing.T) {
	// 全チャンクのベクトル化に失敗した場合は ErrNoChunks で失敗する
	provider := &mockProvider{
		files:    []SourceFile{{Path: "main.go"}},
		contents: map[string]string{"main.go": "func main() {\n}\n"},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	embedder := embedding.NewBatchEmbedder(
		&stubEmbedClient{failOn: map[string]error{"main.go": errors.New("quota")}},
		embedding.WithDelay(0),
	)
	svc := NewService(provider, chunk.NewRegistry(), embedder, store)

	_, err := svc.Ingest(context.Background(), "acme/app")
	require.ErrorIs(t, err, ErrNoChunks)
}

func TestService_Ingest_Reingest(t *testing.T) {
	// 再実行のたびにコレクションが作り直され、件数が累積しない
	provider := &mockProvider{
		files:    []SourceFile{{Path: "main.go"}},
		contents: map[string]string{"main.go": "func main() {\n}\n"},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(provider, store)

	_, err := svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)

	assert.Equal(t, []string{"acme/app", "acme/app"}, store.deletes)
}

func TestService_Ingest_ReingestKeepsCountStable(t *testing.T) {
	// 実ストアに対して二回実行しても件数は二回目の結果と一致する
	provider := &mockProvider{
		files: []SourceFile{{Path: "main.go"}},
		contents: map[string]string{
			"main.go": "func main() {\n}\n\nfunc helper() {\n}\n",
		},
	}
	store := memvector.NewStore()
	embedder := embedding.NewBatchEmbedder(&stubEmbedClient{}, embedding.WithDelay(0))
	svc := NewService(provider, chunk.NewRegistry(), embedder, store)

	ctx := context.Background()
	_, err := svc.Ingest(ctx, "acme/app")
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, "acme/app")
	require.NoError(t, err)

	collection, err := store.GetOrCreate(ctx, "acme/app")
	require.NoError(t, err)
	count, err := collection.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ChunkCount, count)
}

func TestService_Ingest_LogsStateTransitions(t *testing.T) {
	provider := &mockProvider{
		files:    []SourceFile{{Path: "main.go"}},
		contents: map[string]string{"main.go": "func main() {\n}\n"},
	}
	store := &recordingStore{collection: &recordingCollection{}}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := newTestService(provider, store, WithServiceLogger(logger))

	_, err := svc.Ingest(context.Background(), "acme/app")
	require.NoError(t, err)

	out := buf.String()
	for _, state := range []State{StateIdle, StateListing, StateFetching, StateChunking, StateEmbedding, StateIndexed} {
		assert.Contains(t, out, "state="+string(state))
	}
}

func TestService_Purge(t *testing.T) {
	store := &recordingStore{collection: &recordingCollection{}}
	svc := newTestService(&mockProvider{}, store)

	repoID, err := svc.Purge(context.Background(), "https://github.com/acme/app")
	require.NoError(t, err)

	assert.Equal(t, "acme/app", repoID)
	assert.Equal(t, []string{"acme/app"}, store.deletes)
}

func TestService_Stats(t *testing.T) {
	collection := &recordingCollection{ids: []string{"chunk_0", "chunk_1"}}
	store := &recordingStore{collection: collection}
	svc := newTestService(&mockProvider{}, store)

	repoID, count, err := svc.Stats(context.Background(), "acme/app")
	require.NoError(t, err)
	assert.Equal(t, "acme/app", repoID)
	assert.Equal(t, 2, count)
}

func TestService_LockPerRepo(t *testing.T) {
	svc := newTestService(&mockProvider{}, &recordingStore{collection: &recordingCollection{}})

	// 同一リポジトリには同じロック、別リポジトリには別のロックが返る
	assert.Same(t, svc.lockFor("acme/app"), svc.lockFor("acme/app"))
	assert.NotSame(t, svc.lockFor("acme/app"), svc.lockFor("acme/other"))
}

func TestShouldIndex(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"src/app.py", true},
		{"docs/guide.md", true},
		{"node_modules/pkg/index.js", false},
		{".git/config", false},
		{"__pycache__/mod.pyc", false},
		{"src/logo.png", false},
		{"Makefile", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldIndex(tt.path), tt.path)
	}
}
