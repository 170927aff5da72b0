package analyze

import (
	"strings"
	"testing"

	"github.com/Hobby2025/Contribase-sub000/internal/githubapi"
)

func TestBuildTechStackCombinesLanguagesAndDependencies(t *testing.T) {
	t.Parallel()

	languages := []LanguageUsage{
		{Name: "TypeScript", Percentage: 70},
		{Name: "CSS", Percentage: 30},
	}
	dependencies := map[string]string{
		"react": "^18.0.0",
		"jest":  "^29.0.0",
	}

	stack := BuildTechStack(languages, dependencies, "TypeScript")

	byName := make(map[string]TechStackEntry)
	for _, entry := range stack {
		byName[entry.Name] = entry
	}
	if len(byName) != len(stack) {
		t.Fatalf("BuildTechStack() produced duplicate entries: %v", stack)
	}

	typescript, ok := byName["TypeScript"]
	if !ok {
		t.Fatalf("BuildTechStack() missing TypeScript entry: %v", stack)
	}
	if typescript.Type != TechTypeLanguage {
		t.Fatalf("BuildTechStack() TypeScript type = %q, want %q", typescript.Type, TechTypeLanguage)
	}

	react, ok := byName["react"]
	if !ok {
		t.Fatalf("BuildTechStack() missing react entry: %v", stack)
	}
	if react.Type != TechTypeFramework {
		t.Fatalf("BuildTechStack() react type = %q, want %q", react.Type, TechTypeFramework)
	}
	if react.Confidence >= typescript.Confidence {
		t.Fatalf("BuildTechStack() dependency confidence %.2f >= language confidence %.2f", react.Confidence, typescript.Confidence)
	}
}

func TestBuildTechStackEmptyInputs(t *testing.T) {
	t.Parallel()

	if stack := BuildTechStack(nil, nil, ""); len(stack) != 0 {
		t.Fatalf("BuildTechStack() with no signals = %v, want empty", stack)
	}
}

func TestDetectDomains(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		language     string
		topics       []string
		dependencies map[string]string
		want         string
	}{
		{
			name:         "web_from_dependency",
			language:     "TypeScript",
			dependencies: map[string]string{"react": "^18.0.0"},
			want:         "웹 개발",
		},
		{
			name:     "backend_from_topic",
			language: "Go",
			topics:   []string{"grpc", "microservice"},
			want:     "백엔드/API",
		},
		{
			name:         "data_from_dependency",
			language:     "Python",
			dependencies: map[string]string{"pandas": "2.0"},
			want:         "데이터/머신러닝",
		},
		{
			name:     "fallback",
			language: "Haskell",
			want:     "소프트웨어 개발",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			domains := DetectDomains(testCase.language, testCase.topics, testCase.dependencies)
			if len(domains) == 0 {
				t.Fatalf("DetectDomains() = empty, want at least %q", testCase.want)
			}
			found := false
			for _, domain := range domains {
				if domain == testCase.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("DetectDomains() = %v, want to contain %q", domains, testCase.want)
			}
		})
	}
}

func TestExtractKeyFeatures(t *testing.T) {
	t.Parallel()

	commits := []githubapi.CommitRecord{
		{Message: "feat: add user login\n\nlong body"},
		{Message: "fix: broken build"},
		{Message: "feat: add user login"},
		{Message: "implement payment flow"},
		{Message: "feat: add search"},
		{Message: "feat: add filters"},
		{Message: "feat: add exports"},
		{Message: "feat: add one too many"},
	}

	features := ExtractKeyFeatures(commits)
	if len(features) != 5 {
		t.Fatalf("ExtractKeyFeatures() returned %d features, want capped at 5", len(features))
	}
	if features[0] != "add user login" {
		t.Fatalf("ExtractKeyFeatures() first = %q, want prefix-stripped subject", features[0])
	}
	for _, feature := range features {
		if strings.Contains(feature, "broken build") {
			t.Fatalf("ExtractKeyFeatures() included non-feature commit: %v", features)
		}
	}
}

func TestExtractKeyFeaturesFallback(t *testing.T) {
	t.Parallel()

	features := ExtractKeyFeatures([]githubapi.CommitRecord{{Message: "fix: only fixes here"}})
	if len(features) != 1 || features[0] == "" {
		t.Fatalf("ExtractKeyFeatures() without feature commits = %v, want single placeholder", features)
	}
}

func TestBuildInsightsSingleContributor(t *testing.T) {
	t.Parallel()

	profile := DeveloperProfile{
		TotalCommits: 10,
		Contributors: []ContributorStat{{Author: "Kim", CommitCount: 10, Percentage: 100}},
		CommitCategories: map[string]int{
			CategoryFeature: 6,
			CategoryBugFix:  4,
		},
	}

	insights := BuildInsights(profile)
	if len(insights) == 0 {
		t.Fatalf("BuildInsights() = empty, want at least one insight")
	}
	foundSolo := false
	for _, insight := range insights {
		if strings.Contains(insight, "개인 프로젝트") {
			foundSolo = true
		}
	}
	if !foundSolo {
		t.Fatalf("BuildInsights() = %v, want a solo-project insight", insights)
	}
}

func TestBuildRecommendationsFlagsMissingTests(t *testing.T) {
	t.Parallel()

	profile := DeveloperProfile{
		TotalCommits: 5,
		CommitCategories: map[string]int{
			CategoryFeature: 5,
			CategoryTest:    0,
			CategoryDocs:    1,
		},
	}

	recommendations := BuildRecommendations(profile, nil)
	found := false
	for _, recommendation := range recommendations {
		if strings.Contains(recommendation, "테스트") {
			found = true
		}
	}
	if !found {
		t.Fatalf("BuildRecommendations() = %v, want a testing recommendation", recommendations)
	}
}

func TestBuildDevelopmentPattern(t *testing.T) {
	t.Parallel()

	// 14 commits over one week, all on Monday/Tuesday mornings.
	commits := []githubapi.CommitRecord{}
	dates := []string{
		"2025-06-02T09:00:00Z", "2025-06-02T09:30:00Z", "2025-06-02T10:00:00Z",
		"2025-06-03T09:15:00Z", "2025-06-03T09:45:00Z", "2025-06-03T11:00:00Z",
		"2025-06-04T09:05:00Z", "2025-06-04T09:55:00Z",
		"2025-06-05T09:10:00Z", "2025-06-05T09:20:00Z",
		"2025-06-06T09:25:00Z", "2025-06-06T09:35:00Z",
		"2025-06-09T09:40:00Z", "2025-06-09T09:50:00Z",
	}
	for _, date := range dates {
		commits = append(commits, githubapi.CommitRecord{Message: "work", Date: date})
	}

	pattern := BuildDevelopmentPattern(commits, 1)
	if pattern.TeamDynamics != "개인 프로젝트" {
		t.Fatalf("BuildDevelopmentPattern() team dynamics = %q, want 개인 프로젝트", pattern.TeamDynamics)
	}
	if pattern.DevelopmentCycle != "빠른 반복 주기" {
		t.Fatalf("BuildDevelopmentPattern() cycle = %q, want 빠른 반복 주기", pattern.DevelopmentCycle)
	}
	if pattern.WorkPatterns.MostActiveHour != 9 {
		t.Fatalf("BuildDevelopmentPattern() most active hour = %d, want 9", pattern.WorkPatterns.MostActiveHour)
	}
	if pattern.WorkPatterns.Time != "오전" {
		t.Fatalf("BuildDevelopmentPattern() time bucket = %q, want 오전", pattern.WorkPatterns.Time)
	}
	if pattern.WorkPatterns.DayOfWeek != "주중 위주" {
		t.Fatalf("BuildDevelopmentPattern() day of week = %q, want 주중 위주", pattern.WorkPatterns.DayOfWeek)
	}
}

func TestBuildDevelopmentPatternUnparsableDates(t *testing.T) {
	t.Parallel()

	pattern := BuildDevelopmentPattern([]githubapi.CommitRecord{
		{Message: "one", Date: "???"},
	}, 4)
	if pattern.CommitFrequency != "알 수 없음" {
		t.Fatalf("BuildDevelopmentPattern() frequency = %q, want 알 수 없음", pattern.CommitFrequency)
	}
	if pattern.TeamDynamics != "다인 협업" {
		t.Fatalf("BuildDevelopmentPattern() team dynamics = %q, want 다인 협업", pattern.TeamDynamics)
	}
}

func TestBuildCharacteristicsDeterministic(t *testing.T) {
	t.Parallel()

	profile := DeveloperProfile{
		TotalCommits: 20,
		Contributors: []ContributorStat{{Author: "Kim"}, {Author: "Lee"}},
		CommitCategories: map[string]int{
			CategoryTest:     4,
			CategoryDocs:     2,
			CategoryRefactor: 2,
		},
	}
	pattern := DevelopmentPattern{DevelopmentCycle: "꾸준한 개발 주기"}

	first := BuildCharacteristics(profile, pattern)
	second := BuildCharacteristics(profile, pattern)
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("BuildCharacteristics() lengths = %d and %d, want 4", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("BuildCharacteristics() not deterministic: %+v vs %+v", first[i], second[i])
		}
		if first[i].Score < 0 || first[i].Score > 100 {
			t.Fatalf("BuildCharacteristics() score %d out of range for %q", first[i].Score, first[i].Name)
		}
	}
}

func TestBuildSummaryMentionsRepoAndCommitCount(t *testing.T) {
	t.Parallel()

	summary := BuildSummary("octo", "widgets", "Go", []string{"백엔드/API"}, 42)
	if !strings.Contains(summary, "octo/widgets") {
		t.Fatalf("BuildSummary() = %q, want repository name included", summary)
	}
	if !strings.Contains(summary, "42") {
		t.Fatalf("BuildSummary() = %q, want commit count included", summary)
	}
}
