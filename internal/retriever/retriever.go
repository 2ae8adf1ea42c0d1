package retriever

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vero-edu/pbas-assistant/internal/store"
)

// DefaultTopK is the number of rule snippets retrieved per query.
const DefaultTopK = 3

// Embedder produces the embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore is the slice of the relational store the retriever needs.
type DocumentStore interface {
	InsertRuleDocument(ctx context.Context, doc *store.RuleDocument) error
	ClearRuleDocuments(ctx context.Context) error
	NearestRuleDocuments(ctx context.Context, embedding []float32, k int) ([]string, error)
}

// Retriever answers free-text queries with the most similar rule-document
// snippets from the pre-built embedding index.
type Retriever struct {
	docs     DocumentStore
	embedder Embedder
	logger   *zap.Logger
}

func New(docs DocumentStore, embedder Embedder, logger *zap.Logger) *Retriever {
	return &Retriever{docs: docs, embedder: embedder, logger: logger}
}

// TopKSimilar embeds the query and returns the k closest rule snippets.
func (r *Retriever) TopKSimilar(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}
	return r.docs.NearestRuleDocuments(ctx, embedding, k)
}

// ParseRuleDocuments extracts one document per content-bearing line of a
// rule file. Lines may be plain text or rows of a single-column Markdown
// table; headers, separators and blanks are skipped.
func ParseRuleDocuments(fileContent string) []string {
	var docs []string
	for i, line := range strings.Split(fileContent, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !strings.HasPrefix(trimmed, "|") {
			docs = append(docs, trimmed)
			continue
		}

		// Markdown table row: take the first cell, skip header/separator.
		if i <= 1 && (strings.Contains(trimmed, "---") || strings.Contains(strings.ToLower(trimmed), "text") || strings.Contains(strings.ToLower(trimmed), "content")) {
			continue
		}
		parts := strings.Split(trimmed, "|")
		if len(parts) >= 3 {
			if cell := strings.TrimSpace(parts[1]); cell != "" {
				docs = append(docs, cell)
			}
		}
	}
	return docs
}

// IngestFromFile rebuilds the semantic index from a rule file: every
// document is embedded and stored, replacing the previous index contents.
func (r *Retriever) IngestFromFile(ctx context.Context, filePath string) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read rule file %s: %w", filePath, err)
	}

	docs := ParseRuleDocuments(string(contentBytes))
	if len(docs) == 0 {
		r.logger.Warn("No rule documents found in file", zap.String("path", filePath))
		return 0, nil
	}

	r.logger.Info("Embedding rule documents", zap.Int("count", len(docs)))

	if err := r.docs.ClearRuleDocuments(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear existing rule documents: %w", err)
	}

	// Spacing the embedding calls keeps us under the API rate limit.
	ticker := time.NewTicker(40 * time.Millisecond)
	defer ticker.Stop()

	count := 0
	for i, content := range docs {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case <-ticker.C:
		}

		embedding, err := r.embedder.Embed(ctx, content)
		if err != nil {
			r.logger.Warn("Failed to embed rule document, skipping",
				zap.Int("index", i), zap.Error(err))
			continue
		}

		doc := store.RuleDocument{Content: content, Embedding: embedding}
		if err := r.docs.InsertRuleDocument(ctx, &doc); err != nil {
			r.logger.Warn("Failed to store rule document, skipping",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		count++
	}

	r.logger.Info("Rule document ingestion complete", zap.Int("ingested", count))
	return count, nil
}
