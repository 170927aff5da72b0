package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Hobby2025/Contribase-sub000/internal/ai"
	"github.com/Hobby2025/Contribase-sub000/internal/analyze"
	"github.com/Hobby2025/Contribase-sub000/internal/githubapi"
	"github.com/Hobby2025/Contribase-sub000/internal/progress"
	"github.com/Hobby2025/Contribase-sub000/internal/score"
	"github.com/Hobby2025/Contribase-sub000/internal/telemetry"
)

// ErrQuotaExceeded is returned by a QuotaChecker when the caller has used up
// its analysis allowance.
var ErrQuotaExceeded = errors.New("pipeline: analysis quota exceeded")

// QuotaChecker decides whether a new analysis run may start. It is consulted
// before any network I/O happens.
type QuotaChecker interface {
	Check(ctx context.Context, owner, repo string) error
}

// Metrics receives run outcomes and stage durations. Implementations must be
// safe for concurrent use.
type Metrics interface {
	RunCompleted(outcome string)
	ObserveStage(stage string, elapsed time.Duration)
}

// Run outcomes reported to Metrics.
const (
	OutcomeSuccess       = "success"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeNoCommits     = "no_commits"
	OutcomeFetchError    = "fetch_error"
	OutcomeError         = "error"
)

type nopMetrics struct{}

func (nopMetrics) RunCompleted(string)                {}
func (nopMetrics) ObserveStage(string, time.Duration) {}

// Request identifies one analysis run.
type Request struct {
	Owner string
	Repo  string
	// UserLogin and UserEmail, when set, focus category statistics on one
	// contributor instead of the whole history.
	UserLogin string
	UserEmail string
}

// Config bounds a run's data volume.
type Config struct {
	MaxCommits        int
	DetailConcurrency int
}

// Runner drives an analysis end to end: quota check, GitHub fetch,
// aggregation, model analysis, scoring, and result composition. Run never
// returns an error; failures are recorded in the progress store and in the
// result's meta.
type Runner struct {
	data         *githubapi.DataClient
	store        progress.Store
	orchestrator *ai.Orchestrator
	quota        QuotaChecker
	metrics      Metrics
	cfg          Config
	logger       *zap.Logger
	// Now is injected for testability.
	Now func() time.Time
}

// NewRunner creates a pipeline runner. quota and metrics may be nil.
func NewRunner(data *githubapi.DataClient, store progress.Store, orchestrator *ai.Orchestrator, quota QuotaChecker, metrics Metrics, cfg Config, logger *zap.Logger) *Runner {
	if cfg.MaxCommits <= 0 {
		cfg.MaxCommits = 100
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 4
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if orchestrator == nil {
		orchestrator = ai.NewOrchestrator(nil, ai.OrchestratorConfig{}, logger)
	}
	return &Runner{
		data:         data,
		store:        store,
		orchestrator: orchestrator,
		quota:        quota,
		metrics:      metrics,
		cfg:          cfg,
		logger:       logger,
		Now:          time.Now,
	}
}

// Start launches Run on its own goroutine. The run is detached from the
// caller's cancellation so an abandoned HTTP request does not abort it; the
// returned channel delivers the result once and is then closed.
func (r *Runner) Start(ctx context.Context, req Request) <-chan *analyze.Result {
	done := make(chan *analyze.Result, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		done <- r.Run(runCtx, req)
	}()
	return done
}

// Run executes one analysis. It always returns a non-nil result: on failure
// the result carries the error in repositoryInfo.error and meta.error, and
// the progress record is marked completed with the same message.
func (r *Runner) Run(ctx context.Context, req Request) *analyze.Result {
	started := r.Now()
	logger := r.logger.With(zap.String("owner", req.Owner), zap.String("repo", req.Repo))

	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(0),
		Stage:    progress.StagePreparing,
		Message:  strPtr("분석을 준비하고 있습니다"),
		Reset:    true,
	})

	if r.quota != nil {
		if err := r.quota.Check(ctx, req.Owner, req.Repo); err != nil {
			logger.Info("run refused by quota", zap.Error(err))
			r.metrics.RunCompleted(OutcomeQuotaExceeded)
			return r.fail(ctx, req, "오늘의 분석 한도를 모두 사용했습니다. 잠시 후 다시 시도해 주세요.")
		}
	}
	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(10),
		Stage:    progress.StageFetching,
		Message:  strPtr("저장소 정보를 가져오고 있습니다"),
	})

	fetchStart := r.Now()
	repoInfo, commits, err := r.fetch(ctx, req)
	r.metrics.ObserveStage(string(progress.StageFetching), r.Now().Sub(fetchStart))
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		r.metrics.RunCompleted(OutcomeFetchError)
		return r.fail(ctx, req, friendlyFetchError(err))
	}
	if len(commits) == 0 {
		logger.Info("repository has no commits")
		r.metrics.RunCompleted(OutcomeNoCommits)
		return r.fail(ctx, req, "분석할 커밋이 없습니다. 저장소에 커밋을 추가한 뒤 다시 시도해 주세요.")
	}

	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(40),
		Stage:    progress.StageAnalyzing,
		Message:  strPtr("커밋 이력을 분석하고 있습니다"),
	})

	analyzeStart := r.Now()
	result := r.analyze(ctx, req, repoInfo, commits)
	r.metrics.ObserveStage(string(progress.StageAnalyzing), r.Now().Sub(analyzeStart))

	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(90),
		Stage:    progress.StageFinalizing,
		Message:  strPtr("결과를 정리하고 있습니다"),
	})

	result.Meta = analyze.Meta{
		GeneratedAt: r.Now().UTC().Format(time.RFC3339),
		Version:     analyze.ResultVersion,
	}

	r.setProgress(ctx, req, progress.Update{
		Progress:  intPtr(100),
		Stage:     progress.StageFinalizing,
		Completed: boolPtr(true),
		Result:    result,
		Message:   strPtr("분석이 완료되었습니다"),
	})
	r.metrics.RunCompleted(OutcomeSuccess)
	logger.Info("run completed",
		zap.Int("commits", len(commits)),
		zap.Bool("aiAnalyzed", result.RepositoryInfo.AIAnalyzed),
		zap.Duration("elapsed", r.Now().Sub(started)))
	return result
}

// fetch retrieves repository metadata and the hydrated commit history.
func (r *Runner) fetch(ctx context.Context, req Request) (githubapi.RepoInfo, []githubapi.CommitRecord, error) {
	repoInfo, err := r.data.GetRepoInfo(ctx, req.Owner, req.Repo)
	if err != nil {
		return githubapi.RepoInfo{}, nil, fmt.Errorf("repository info: %w", err)
	}
	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(20),
		Message:  strPtr("커밋 목록을 가져오고 있습니다"),
	})

	commits, err := r.data.ListCommits(ctx, req.Owner, req.Repo, r.cfg.MaxCommits)
	if err != nil {
		return githubapi.RepoInfo{}, nil, fmt.Errorf("commit list: %w", err)
	}
	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(30),
		Message:  strPtr("커밋 상세 정보를 가져오고 있습니다"),
	})

	commits = r.data.HydrateCommitDetails(ctx, req.Owner, req.Repo, commits, r.cfg.DetailConcurrency)
	return repoInfo, commits, nil
}

// analyze turns fetched data into a complete result. Heuristics always run
// first so a fully-populated fallback exists before the model is consulted.
func (r *Runner) analyze(ctx context.Context, req Request, repoInfo githubapi.RepoInfo, commits []githubapi.CommitRecord) *analyze.Result {
	profile := analyze.Aggregate(commits, req.UserLogin, req.UserEmail)
	pattern := analyze.BuildDevelopmentPattern(commits, len(profile.Contributors))

	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(55),
		Message:  strPtr("기술 스택과 도메인을 추정하고 있습니다"),
	})

	fallback := ai.StructuredAnalysis{
		ProjectType:     "소프트웨어 프로젝트",
		Domains:         analyze.DetectDomains(repoInfo.Language, repoInfo.Topics, repoInfo.Dependencies),
		TechStack:       analyze.BuildTechStack(profile.UserLanguages, repoInfo.Dependencies, repoInfo.Language),
		Characteristics: analyze.BuildCharacteristics(profile, pattern),
		KeyFeatures:     analyze.ExtractKeyFeatures(commits),
		Insights:        analyze.BuildInsights(profile),
	}
	fallback.Recommendations = analyze.BuildRecommendations(profile, fallback.TechStack)
	fallback.Summary = analyze.BuildSummary(req.Owner, req.Repo, repoInfo.Language, fallback.Domains, profile.TotalCommits)

	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(65),
		Message:  strPtr("AI 분석을 진행하고 있습니다"),
	})

	aiCtx, endSpan := telemetry.StartDependencySpan(ctx, "pipeline", "ai.analyze",
		attribute.String("repo", req.Owner+"/"+req.Repo))
	structured, aiUsed := r.orchestrator.Analyze(aiCtx, ai.PromptData{
		Owner:          req.Owner,
		Repo:           req.Repo,
		Description:    repoInfo.Description,
		PrimaryLang:    repoInfo.Language,
		Topics:         repoInfo.Topics,
		CommitMessages: commitMessages(commits),
		Dependencies:   repoInfo.Dependencies,
		FileExtensions: extensionHistogram(commits),
		TotalCommits:   profile.TotalCommits,
		Contributors:   len(profile.Contributors),
		ActivityPeriod: profile.ActivityPeriod,
	}, fallback)
	endSpan(nil)

	r.setProgress(ctx, req, progress.Update{
		Progress: intPtr(80),
		Message:  strPtr("코드 품질을 평가하고 있습니다"),
	})

	metrics, overall := score.Score(score.Input{
		TechStack:       structured.TechStack,
		Characteristics: structured.Characteristics,
		KeyFeatureCount: len(structured.KeyFeatures),
		LongTerm:        strings.Contains(profile.ActivityPeriod, "년"),
	})

	return &analyze.Result{
		RepositoryInfo: analyze.RepositoryInfo{
			Owner:          req.Owner,
			Repo:           req.Repo,
			URL:            "https://github.com/" + req.Owner + "/" + req.Repo,
			IsUserAnalysis: req.UserLogin != "" || req.UserEmail != "",
			UserLogin:      req.UserLogin,
			AIAnalyzed:     aiUsed,
			AIProjectType:  structured.ProjectType,
		},
		DeveloperProfile:   profile,
		TechStack:          structured.TechStack,
		Domains:            structured.Domains,
		DevelopmentPattern: pattern,
		KeyFeatures:        structured.KeyFeatures,
		Insights:           structured.Insights,
		Recommendations:    structured.Recommendations,
		Summary:            structured.Summary,
		CodeQuality:        overall,
		CodeQualityMetrics: metrics,
	}
}

// fail records a terminal failure and returns the error-shaped result.
func (r *Runner) fail(ctx context.Context, req Request, message string) *analyze.Result {
	result := &analyze.Result{
		RepositoryInfo: analyze.RepositoryInfo{
			Owner: req.Owner,
			Repo:  req.Repo,
			URL:   "https://github.com/" + req.Owner + "/" + req.Repo,
			Error: message,
		},
		DeveloperProfile: analyze.DeveloperProfile{
			CommitCategories: map[string]int{},
		},
		Meta: analyze.Meta{
			GeneratedAt: r.Now().UTC().Format(time.RFC3339),
			Version:     analyze.ResultVersion,
			Error:       message,
		},
	}
	r.setProgress(ctx, req, progress.Update{
		Progress:  intPtr(100),
		Stage:     progress.StageFinalizing,
		Completed: boolPtr(true),
		Error:     strPtr(message),
	})
	return result
}

// setProgress writes a progress update, logging rather than propagating
// store failures so a broken store cannot abort a run.
func (r *Runner) setProgress(ctx context.Context, req Request, update progress.Update) {
	if err := r.store.Set(ctx, req.Owner, req.Repo, update); err != nil {
		r.logger.Warn("progress update failed",
			zap.String("owner", req.Owner),
			zap.String("repo", req.Repo),
			zap.Error(err))
	}
}

// friendlyFetchError maps upstream failures to user-facing Korean messages.
func friendlyFetchError(err error) string {
	switch {
	case errors.Is(err, githubapi.ErrNotFound):
		return "저장소를 찾을 수 없습니다. 주소를 확인해 주세요."
	case errors.Is(err, githubapi.ErrUnauthorized):
		return "GitHub 인증에 실패했습니다. 토큰을 확인해 주세요."
	case errors.Is(err, githubapi.ErrForbidden):
		return "저장소에 접근할 수 없습니다. 권한을 확인해 주세요."
	case errors.Is(err, githubapi.ErrTransient), isNetworkErrorText(err):
		return "GitHub 연결이 원활하지 않습니다. 잠시 후 다시 시도해 주세요."
	default:
		return fmt.Sprintf("분석 중 오류가 발생했습니다: %v", err)
	}
}

func isNetworkErrorText(err error) bool {
	text := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline exceeded", "connection refused", "connection reset", "no such host"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func commitMessages(commits []githubapi.CommitRecord) []string {
	messages := make([]string, len(commits))
	for i, commit := range commits {
		messages[i] = commit.Message
	}
	return messages
}

// extensionHistogram counts changed-file extensions across the history.
func extensionHistogram(commits []githubapi.CommitRecord) map[string]int {
	counts := make(map[string]int)
	for _, commit := range commits {
		for _, file := range commit.Files {
			if ext := strings.ToLower(path.Ext(file.Filename)); ext != "" {
				counts[ext]++
			}
		}
	}
	return counts
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
