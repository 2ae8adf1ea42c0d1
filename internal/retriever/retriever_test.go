package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vero-edu/pbas-assistant/internal/store"
)

type fakeEmbedder struct {
	vector []float32
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

type fakeDocStore struct {
	docs    []store.RuleDocument
	nearest []string
	cleared bool
	queryK  int
}

func (f *fakeDocStore) InsertRuleDocument(ctx context.Context, doc *store.RuleDocument) error {
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeDocStore) ClearRuleDocuments(ctx context.Context) error {
	f.cleared = true
	f.docs = nil
	return nil
}

func (f *fakeDocStore) NearestRuleDocuments(ctx context.Context, embedding []float32, k int) ([]string, error) {
	f.queryK = k
	return f.nearest, nil
}

func TestTopKSimilar(t *testing.T) {
	docs := &fakeDocStore{nearest: []string{"rule a", "rule b", "rule c"}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	r := New(docs, embedder, zap.NewNop())

	snippets, err := r.TopKSimilar(context.Background(), "conference points", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"rule a", "rule b", "rule c"}, snippets)
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 3, docs.queryK)
}

func TestTopKSimilarDefaultsK(t *testing.T) {
	docs := &fakeDocStore{}
	r := New(docs, &fakeEmbedder{vector: []float32{1}}, zap.NewNop())

	_, err := r.TopKSimilar(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, docs.queryK)
}

func TestParseRuleDocuments(t *testing.T) {
	content := "| text |\n" +
		"| --- |\n" +
		"| Conference attendance earns 5 points |\n" +
		"| Journal publication earns 10 points |\n" +
		"\n" +
		"Workshops earn 3 points\n"

	docs := ParseRuleDocuments(content)
	assert.Equal(t, []string{
		"Conference attendance earns 5 points",
		"Journal publication earns 10 points",
		"Workshops earn 3 points",
	}, docs)
}

func TestParseRuleDocumentsEmpty(t *testing.T) {
	assert.Empty(t, ParseRuleDocuments(""))
	assert.Empty(t, ParseRuleDocuments("\n\n\n"))
}
