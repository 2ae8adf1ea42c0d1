package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vero-edu/pbas-assistant/internal/retriever"
	"github.com/vero-edu/pbas-assistant/internal/store"
)

const DefaultMemoryWindow = 5

const systemGuardrail = `You are VERO Academic Assistant.

STRICT RULES:
- Always cite PBAS Rule IDs when giving scores.
- Never guess points.
- Use USER PROFILE data for personalization.
- Explain document statuses in human-friendly language.
- If rule not found, say you cannot find it in PBAS documents.
- Only answer PBAS, promotion, appraisal, or document queries.`

// Store is the slice of the relational accessor the pipeline depends on.
type Store interface {
	EnsureSession(ctx context.Context, sessionID string, userID int64) error
	AppendMessageForUser(ctx context.Context, sessionID string, userID int64, role, content string) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]store.Message, error)
	UserProfile(ctx context.Context, userID int64) (*store.UserProfile, error)
	SearchRules(ctx context.Context, keyword string, minLevel int) ([]store.Rule, error)
	PromotionThreshold(ctx context.Context, rank string) (int, error)
	AuditMetadata(ctx context.Context, submissionID string) (map[string]any, error)
	SetSessionCategory(ctx context.Context, sessionID, category string) error
}

// Retriever answers free-text queries with similar rule snippets.
type Retriever interface {
	TopKSimilar(ctx context.Context, query string, k int) ([]string, error)
}

// Completer turns an assembled prompt into plain reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Pipeline runs the fixed per-request sequence: persist the question, gate
// it, classify it, gather context from the store and the semantic index,
// assemble one prompt, call the model, persist and return the reply.
type Pipeline struct {
	store        Store
	retriever    Retriever
	llm          Completer
	logger       *zap.Logger
	memoryWindow int
	topK         int
}

func NewPipeline(st Store, rt Retriever, llm Completer, logger *zap.Logger, memoryWindow, topK int) *Pipeline {
	if memoryWindow <= 0 {
		memoryWindow = DefaultMemoryWindow
	}
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}
	return &Pipeline{
		store:        st,
		retriever:    rt,
		llm:          llm,
		logger:       logger,
		memoryWindow: memoryWindow,
		topK:         topK,
	}
}

// Ask answers one user question within a session. Session and message
// writes and the model call propagate errors; every context lookup degrades
// to an omitted block instead of failing the request.
func (p *Pipeline) Ask(ctx context.Context, question string, userID int64, sessionID string) (string, error) {
	if err := p.store.EnsureSession(ctx, sessionID, userID); err != nil {
		return "", fmt.Errorf("failed to ensure session: %w", err)
	}

	if err := p.store.AppendMessageForUser(ctx, sessionID, userID, "user", question); err != nil {
		return "", fmt.Errorf("failed to save user message: %w", err)
	}

	if !WithinGuardrail(question) {
		if err := p.store.AppendMessageForUser(ctx, sessionID, userID, "assistant", Refusal); err != nil {
			return "", fmt.Errorf("failed to save refusal: %w", err)
		}
		return Refusal, nil
	}

	category := DetectCategory(question)
	if err := p.store.SetSessionCategory(ctx, sessionID, category); err != nil {
		p.logger.Warn("Failed to set session category",
			zap.String("session_id", sessionID), zap.String("category", category), zap.Error(err))
	}

	memoryContext := p.buildMemory(ctx, sessionID)
	profile := p.lookupProfile(ctx, userID)
	promotionInfo := p.promotionAnalysis(ctx, question, profile)
	semanticRules := p.semanticMatches(ctx, question)
	structuredRules := p.structuredMatches(ctx, question, profile)
	auditContext := p.auditFindings(ctx, question)

	prompt := assemblePrompt(question, profile, promotionInfo, memoryContext, semanticRules, structuredRules, auditContext)

	reply, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}

	if err := p.store.AppendMessageForUser(ctx, sessionID, userID, "assistant", reply); err != nil {
		return "", fmt.Errorf("failed to save assistant message: %w", err)
	}
	return reply, nil
}

func (p *Pipeline) buildMemory(ctx context.Context, sessionID string) string {
	messages, err := p.store.RecentMessages(ctx, sessionID, p.memoryWindow)
	if err != nil {
		p.logger.Warn("Failed to load chat memory, proceeding without it",
			zap.String("session_id", sessionID), zap.Error(err))
		return ""
	}
	return FormatMemory(messages)
}

func (p *Pipeline) lookupProfile(ctx context.Context, userID int64) *store.UserProfile {
	profile, err := p.store.UserProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("Failed to load user profile, using neutral defaults",
				zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return profile
}

// promotionAnalysis computes the gap to the next promotion threshold. Only
// runs when the question mentions promotion and the user's rank is known.
// A gap the user has already closed is reported as a negative number as-is.
func (p *Pipeline) promotionAnalysis(ctx context.Context, question string, profile *store.UserProfile) string {
	if profile == nil || profile.Rank == "" || !strings.Contains(strings.ToLower(question), "promotion") {
		return ""
	}

	required, err := p.store.PromotionThreshold(ctx, profile.Rank)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("Failed to load promotion threshold",
				zap.String("rank", profile.Rank), zap.Error(err))
		}
		return ""
	}

	remaining := required - profile.TotalScore
	return fmt.Sprintf("The user currently has %d points and needs %d more points for promotion.",
		profile.TotalScore, remaining)
}

func (p *Pipeline) semanticMatches(ctx context.Context, question string) []string {
	snippets, err := p.retriever.TopKSimilar(ctx, question, p.topK)
	if err != nil {
		p.logger.Warn("Semantic rule search failed, proceeding without it", zap.Error(err))
		return nil
	}
	return snippets
}

// structuredMatches queries the rule catalog, but only when the question
// names an activity type and the user's academic level is known.
func (p *Pipeline) structuredMatches(ctx context.Context, question string, profile *store.UserProfile) []store.Rule {
	keyword := MatchActivityKeyword(question)
	if keyword == "" || profile == nil || profile.AcademicLevel == nil {
		return nil
	}

	rules, err := p.store.SearchRules(ctx, keyword, *profile.AcademicLevel)
	if err != nil {
		p.logger.Warn("Structured rule search failed, proceeding without it",
			zap.String("keyword", keyword), zap.Error(err))
		return nil
	}
	return rules
}

func (p *Pipeline) auditFindings(ctx context.Context, question string) string {
	if !MentionsAuditTrigger(question) {
		return ""
	}
	submissionID := ExtractSubmissionID(question)
	if submissionID == "" {
		return ""
	}

	metadata, err := p.store.AuditMetadata(ctx, submissionID)
	if err != nil {
		// ErrDecode degrades the same way as a missing record.
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrDecode) {
			p.logger.Warn("Audit log lookup failed",
				zap.String("submission_id", submissionID), zap.Error(err))
		}
		return ""
	}

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Audit Metadata Found: %s", encoded)
}

func formatProfile(profile *store.UserProfile) string {
	if profile == nil {
		return ""
	}
	level := "unknown"
	if profile.AcademicLevel != nil {
		level = fmt.Sprintf("%d", *profile.AcademicLevel)
	}
	rank := profile.Rank
	if rank == "" {
		rank = "unknown"
	}
	return fmt.Sprintf("user_id=%d total_score=%d rank=%s academic_level=%s",
		profile.UserID, profile.TotalScore, rank, level)
}

func formatRules(rules []store.Rule) string {
	var b strings.Builder
	for i, r := range rules {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "[Rule %d] %s (points %g, max %g)", r.RuleID, r.ActivityName, r.Points, r.MaxPoints)
	}
	return b.String()
}

func assemblePrompt(question string, profile *store.UserProfile, promotionInfo, memoryContext string, semanticRules []string, structuredRules []store.Rule, auditContext string) string {
	var b strings.Builder

	b.WriteString(systemGuardrail)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "USER PROFILE DATA: %s\n", formatProfile(profile))
	fmt.Fprintf(&b, "PROMOTION ANALYSIS: %s\n", promotionInfo)
	fmt.Fprintf(&b, "RECENT CHAT MEMORY: %s\n", memoryContext)
	fmt.Fprintf(&b, "SEMANTIC RULE MATCHES: %s\n", strings.Join(semanticRules, " | "))
	fmt.Fprintf(&b, "STRUCTURED RULE MATCHES: %s\n", formatRules(structuredRules))
	fmt.Fprintf(&b, "AUDIT FINDINGS: %s\n", auditContext)
	b.WriteString("\n")
	fmt.Fprintf(&b, "USER QUESTION: %s\n", question)
	b.WriteString("\nProvide a clear, human-friendly answer with proper PBAS rule citations.\n")

	return b.String()
}
