package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Hobby2025/Contribase-sub000/internal/analyze"
)

// StructuredAnalysis is the model-produced (or heuristic) portion of an
// analysis result. Every field is always populated after Analyze returns:
// fields the model omits or garbles are filled from the fallback.
type StructuredAnalysis struct {
	ProjectType     string                   `json:"projectType"`
	Domains         []string                 `json:"domains"`
	TechStack       []analyze.TechStackEntry `json:"techStack"`
	Characteristics []analyze.Characteristic `json:"characteristics"`
	KeyFeatures     []string                 `json:"keyFeatures"`
	Insights        []string                 `json:"insights"`
	Recommendations []string                 `json:"recommendations"`
	Summary         string                   `json:"summary"`
}

// PromptData holds everything the orchestrator may include in the prompt.
// The orchestrator applies its own caps; callers pass the full picture.
type PromptData struct {
	Owner          string
	Repo           string
	Description    string
	PrimaryLang    string
	Topics         []string
	CommitMessages []string
	Dependencies   map[string]string
	FileExtensions map[string]int
	TotalCommits   int
	Contributors   int
	ActivityPeriod string
}

// OrchestratorConfig bounds the prompt size.
type OrchestratorConfig struct {
	MaxPromptCommits      int
	MaxPromptDependencies int
}

// Orchestrator runs a single model attempt and merges the response with a
// fully-populated fallback so callers always get a complete analysis.
type Orchestrator struct {
	provider Provider
	cfg      OrchestratorConfig
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator. provider may be nil, in which case
// Analyze always returns the fallback.
func NewOrchestrator(provider Provider, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.MaxPromptCommits <= 0 {
		cfg.MaxPromptCommits = 30
	}
	if cfg.MaxPromptDependencies <= 0 {
		cfg.MaxPromptDependencies = 15
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{provider: provider, cfg: cfg, logger: logger}
}

const systemPrompt = `You are an expert software project analyst. ` +
	`Given repository metadata and a sample of commit messages, produce a JSON object with exactly these keys: ` +
	`"projectType" (string), "domains" (array of strings, Korean), "techStack" (array of {"name","type","usage","confidence"}), ` +
	`"characteristics" (array of {"name","score"} with score 0-100), "keyFeatures" (array of strings, Korean), ` +
	`"insights" (array of strings, Korean), "recommendations" (array of strings, Korean), "summary" (string, Korean). ` +
	`Respond with JSON only.`

// Analyze performs at most one model attempt. The returned analysis is never
// nil-equivalent: any field missing from the model response is taken from
// fallback, and on any failure the fallback is returned unchanged. The bool
// reports whether the model contributed to the result.
func (o *Orchestrator) Analyze(ctx context.Context, data PromptData, fallback StructuredAnalysis) (StructuredAnalysis, bool) {
	if o.provider == nil {
		return fallback, false
	}

	raw, err := o.provider.Complete(ctx, systemPrompt, o.buildPrompt(data))
	if err != nil {
		o.logger.Warn("model analysis failed, using heuristic result",
			zap.String("owner", data.Owner),
			zap.String("repo", data.Repo),
			zap.Error(err))
		return fallback, false
	}

	parsed, err := parseStructuredAnalysis(raw)
	if err != nil {
		o.logger.Warn("model response unparseable, using heuristic result",
			zap.String("owner", data.Owner),
			zap.String("repo", data.Repo),
			zap.Error(err))
		return fallback, false
	}

	return mergeWithFallback(parsed, fallback), true
}

// buildPrompt assembles the user message. Commit messages are stripped to
// their subject line, dependency and commit lists are capped, and only file
// extensions seen more than twice are included.
func (o *Orchestrator) buildPrompt(data PromptData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s/%s\n", data.Owner, data.Repo)
	if data.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", data.Description)
	}
	if data.PrimaryLang != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", data.PrimaryLang)
	}
	if len(data.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(data.Topics, ", "))
	}
	fmt.Fprintf(&b, "Total commits: %d, contributors: %d, activity period: %s\n",
		data.TotalCommits, data.Contributors, data.ActivityPeriod)

	if len(data.Dependencies) > 0 {
		names := make([]string, 0, len(data.Dependencies))
		for name := range data.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > o.cfg.MaxPromptDependencies {
			names = names[:o.cfg.MaxPromptDependencies]
		}
		fmt.Fprintf(&b, "Dependencies: %s\n", strings.Join(names, ", "))
	}

	if exts := frequentExtensions(data.FileExtensions); len(exts) > 0 {
		fmt.Fprintf(&b, "File extensions: %s\n", strings.Join(exts, ", "))
	}

	messages := data.CommitMessages
	if len(messages) > o.cfg.MaxPromptCommits {
		messages = messages[:o.cfg.MaxPromptCommits]
	}
	b.WriteString("Commit messages:\n")
	for _, msg := range messages {
		b.WriteString("- ")
		b.WriteString(subjectLine(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// subjectLine returns the first line of a commit message.
func subjectLine(msg string) string {
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return strings.TrimSpace(msg)
}

// frequentExtensions keeps extensions seen more than twice, formatted as
// ".go (41)" and sorted by count descending.
func frequentExtensions(counts map[string]int) []string {
	type extCount struct {
		ext   string
		count int
	}
	kept := make([]extCount, 0, len(counts))
	for ext, count := range counts {
		if count > 2 {
			kept = append(kept, extCount{ext: ext, count: count})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].count != kept[j].count {
			return kept[i].count > kept[j].count
		}
		return kept[i].ext < kept[j].ext
	})
	out := make([]string, len(kept))
	for i, ec := range kept {
		out[i] = fmt.Sprintf("%s (%d)", ec.ext, ec.count)
	}
	return out
}

// parseStructuredAnalysis decodes the model output. If the whole payload is
// not valid JSON, the first balanced top-level object embedded in the text is
// tried before giving up.
func parseStructuredAnalysis(raw string) (StructuredAnalysis, error) {
	var out StructuredAnalysis
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}
	embedded, ok := extractJSONObject(trimmed)
	if !ok {
		return out, fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(embedded), &out); err != nil {
		return out, fmt.Errorf("decode model response: %w", err)
	}
	return out, nil
}

// extractJSONObject finds the first balanced {...} region, ignoring braces
// inside string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// mergeWithFallback fills any empty field of the parsed analysis from the
// fallback, and back-fills missing tech types so the result is always whole.
func mergeWithFallback(parsed, fallback StructuredAnalysis) StructuredAnalysis {
	out := parsed
	if strings.TrimSpace(out.ProjectType) == "" {
		out.ProjectType = fallback.ProjectType
	}
	if len(out.Domains) == 0 {
		out.Domains = fallback.Domains
	}
	if len(out.TechStack) == 0 {
		out.TechStack = fallback.TechStack
	} else {
		for i := range out.TechStack {
			if out.TechStack[i].Type == "" {
				out.TechStack[i].Type = analyze.InferTechType(out.TechStack[i].Name)
			}
			if out.TechStack[i].Confidence <= 0 {
				out.TechStack[i].Confidence = 0.7
			}
		}
	}
	if len(out.Characteristics) == 0 {
		out.Characteristics = fallback.Characteristics
	}
	if len(out.KeyFeatures) == 0 {
		out.KeyFeatures = fallback.KeyFeatures
	}
	if len(out.Insights) == 0 {
		out.Insights = fallback.Insights
	}
	if len(out.Recommendations) == 0 {
		out.Recommendations = fallback.Recommendations
	}
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = fallback.Summary
	}
	return out
}
