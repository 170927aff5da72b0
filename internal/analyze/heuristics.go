package analyze

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Hobby2025/Contribase-sub000/internal/githubapi"
)

// domainRules maps a domain label to dependency/topic keywords that signal it.
// Rules are evaluated in order so output is deterministic.
var domainRules = []struct {
	label    string
	keywords []string
}{
	{"웹 개발", []string{"react", "vue", "next", "nuxt", "svelte", "angular", "html", "css", "webpack", "vite"}},
	{"백엔드/API", []string{"express", "nest", "fastify", "django", "flask", "fastapi", "spring", "gin", "echo", "graphql", "grpc"}},
	{"모바일 앱", []string{"react-native", "flutter", "swift", "kotlin", "expo", "android", "ios"}},
	{"데이터/머신러닝", []string{"pandas", "numpy", "tensorflow", "torch", "scikit", "jupyter", "spark"}},
	{"인프라/DevOps", []string{"docker", "kubernetes", "terraform", "ansible", "helm", "aws-sdk", "gcp"}},
	{"개발 도구", []string{"cli", "eslint", "prettier", "babel", "rollup", "plugin"}},
}

// featureStopPrefixes strips noisy conventional-commit prefixes from messages
// before they are surfaced as key features.
var featureStopPrefixes = []string{"feat:", "feat(", "add:", "added", "add ", "implement ", "create ", "구현", "추가"}

// BuildTechStack derives a technology stack from language usage and the
// dependency manifest. Languages carry high confidence; dependencies are
// capped to the heaviest entries with type inference applied.
func BuildTechStack(languages []LanguageUsage, dependencies map[string]string, primaryLanguage string) []TechStackEntry {
	stack := make([]TechStackEntry, 0, len(languages)+len(dependencies)+1)
	seen := make(map[string]bool)

	appendEntry := func(entry TechStackEntry) {
		key := strings.ToLower(entry.Name)
		if entry.Name == "" || seen[key] {
			return
		}
		seen[key] = true
		stack = append(stack, entry)
	}

	for _, language := range languages {
		appendEntry(TechStackEntry{
			Name:       language.Name,
			Type:       TechTypeLanguage,
			Usage:      float64(language.Percentage),
			Confidence: 0.9,
		})
	}
	if primaryLanguage != "" {
		appendEntry(TechStackEntry{
			Name:       primaryLanguage,
			Type:       TechTypeLanguage,
			Usage:      0,
			Confidence: 0.8,
		})
	}

	names := make([]string, 0, len(dependencies))
	for name := range dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		appendEntry(TechStackEntry{
			Name:       name,
			Type:       InferTechType(name),
			Usage:      0,
			Confidence: 0.7,
		})
	}
	return stack
}

// DetectDomains infers project domains from the primary language, repository
// topics, and dependency names.
func DetectDomains(language string, topics []string, dependencies map[string]string) []string {
	haystack := make([]string, 0, len(topics)+len(dependencies)+1)
	haystack = append(haystack, strings.ToLower(language))
	for _, topic := range topics {
		haystack = append(haystack, strings.ToLower(topic))
	}
	for name := range dependencies {
		haystack = append(haystack, strings.ToLower(name))
	}

	var domains []string
	for _, rule := range domainRules {
		for _, keyword := range rule.keywords {
			if containsAny(haystack, keyword) {
				domains = append(domains, rule.label)
				break
			}
		}
	}
	if len(domains) == 0 {
		domains = []string{"소프트웨어 개발"}
	}
	return domains
}

func containsAny(haystack []string, keyword string) bool {
	for _, item := range haystack {
		if strings.Contains(item, keyword) {
			return true
		}
	}
	return false
}

// ExtractKeyFeatures surfaces up to five feature commit subjects as key features.
func ExtractKeyFeatures(commits []githubapi.CommitRecord) []string {
	const maxFeatures = 5

	var features []string
	seen := make(map[string]bool)
	for _, commit := range commits {
		if ClassifyCommit(commit.Message) != CategoryFeature {
			continue
		}
		subject := commitSubject(commit.Message)
		if subject == "" || seen[strings.ToLower(subject)] {
			continue
		}
		seen[strings.ToLower(subject)] = true
		features = append(features, subject)
		if len(features) >= maxFeatures {
			break
		}
	}
	if len(features) == 0 {
		features = []string{"저장소 커밋 이력 기반 기능"}
	}
	return features
}

func commitSubject(message string) string {
	subject := message
	if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
		subject = subject[:idx]
	}
	lowered := strings.ToLower(subject)
	for _, prefix := range featureStopPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			subject = strings.TrimSpace(subject[len(prefix):])
			subject = strings.TrimPrefix(subject, ")")
			subject = strings.TrimPrefix(subject, ":")
			subject = strings.TrimSpace(subject)
			break
		}
	}
	return strings.TrimSpace(subject)
}

// BuildInsights derives narrative insights from the commit category distribution.
func BuildInsights(profile DeveloperProfile) []string {
	var insights []string
	total := profile.TotalCommits
	if total == 0 {
		return []string{"분석할 커밋이 충분하지 않습니다."}
	}

	ratio := func(category string) float64 {
		return float64(profile.CommitCategories[category]) / float64(total)
	}

	if ratio(CategoryBugFix) > 0.4 {
		insights = append(insights, "버그 수정 커밋 비중이 높아 안정화 단계로 보입니다.")
	}
	if ratio(CategoryFeature) > 0.4 {
		insights = append(insights, "기능 개발 커밋이 활발하여 성장 단계의 프로젝트입니다.")
	}
	if ratio(CategoryTest) > 0.15 {
		insights = append(insights, "테스트 커밋이 꾸준히 포함되어 품질 관리에 신경 쓰고 있습니다.")
	}
	if ratio(CategoryDocs) > 0.15 {
		insights = append(insights, "문서화 커밋 비중이 높아 협업 친화적인 저장소입니다.")
	}
	if len(profile.Contributors) == 1 {
		insights = append(insights, "단일 기여자가 전체 커밋을 작성한 개인 프로젝트입니다.")
	} else if len(profile.Contributors) >= 5 {
		insights = append(insights, "다수의 기여자가 참여하는 협업 프로젝트입니다.")
	}

	if len(insights) == 0 {
		insights = append(insights, "커밋 이력이 고르게 분포되어 있습니다.")
	}
	return insights
}

// BuildRecommendations derives improvement suggestions from missing signals.
func BuildRecommendations(profile DeveloperProfile, techStack []TechStackEntry) []string {
	var recommendations []string

	if profile.CommitCategories[CategoryTest] == 0 {
		recommendations = append(recommendations, "테스트 커밋이 없습니다. 테스트 코드를 추가해 보세요.")
	}
	if profile.CommitCategories[CategoryDocs] == 0 {
		recommendations = append(recommendations, "문서화 커밋이 없습니다. README와 문서를 보강해 보세요.")
	}
	if profile.TotalCommits > 0 {
		bugRatio := float64(profile.CommitCategories[CategoryBugFix]) / float64(profile.TotalCommits)
		if bugRatio > 0.5 {
			recommendations = append(recommendations, "버그 수정 비중이 절반을 넘습니다. 회귀 테스트 도입을 권장합니다.")
		}
	}
	if len(techStack) > 15 {
		recommendations = append(recommendations, "기술 스택이 방대합니다. 의존성 정리를 검토해 보세요.")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "현재 개발 패턴을 유지하면서 커밋 메시지 규칙을 정교화해 보세요.")
	}
	return recommendations
}

var koreanWeekdays = map[time.Weekday]string{
	time.Sunday:    "일요일",
	time.Monday:    "월요일",
	time.Tuesday:   "화요일",
	time.Wednesday: "수요일",
	time.Thursday:  "목요일",
	time.Friday:    "금요일",
	time.Saturday:  "토요일",
}

// BuildDevelopmentPattern derives commit cadence and work-time patterns from
// commit timestamps. Unparsable dates are skipped.
func BuildDevelopmentPattern(commits []githubapi.CommitRecord, contributorCount int) DevelopmentPattern {
	pattern := DevelopmentPattern{
		CommitFrequency:  "알 수 없음",
		DevelopmentCycle: "알 수 없음",
		TeamDynamics:     teamDynamics(contributorCount),
		WorkPatterns: WorkPatterns{
			Time:          "알 수 없음",
			DayOfWeek:     "알 수 없음",
			MostActiveDay: "알 수 없음",
		},
	}

	hourCounts := make(map[int]int)
	dayCounts := make(map[time.Weekday]int)
	var first, last time.Time
	parsed := 0
	weekendCommits := 0
	for _, commit := range commits {
		ts := githubapi.ParseCommitDate(commit.Date)
		if ts.IsZero() {
			continue
		}
		parsed++
		hourCounts[ts.Hour()]++
		dayCounts[ts.Weekday()]++
		if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			weekendCommits++
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}
	if parsed == 0 {
		return pattern
	}

	spanDays := math.Ceil(last.Sub(first).Hours() / 24)
	if spanDays < 1 {
		spanDays = 1
	}
	perWeek := float64(parsed) / (spanDays / 7)
	pattern.CommitFrequency = fmt.Sprintf("주 평균 %.1f회", perWeek)
	switch {
	case perWeek >= 10:
		pattern.DevelopmentCycle = "빠른 반복 주기"
	case perWeek >= 2:
		pattern.DevelopmentCycle = "꾸준한 개발 주기"
	default:
		pattern.DevelopmentCycle = "간헐적 개발 주기"
	}

	mostActiveHour := 0
	bestHourCount := -1
	for hour := 0; hour < 24; hour++ {
		if hourCounts[hour] > bestHourCount {
			bestHourCount = hourCounts[hour]
			mostActiveHour = hour
		}
	}
	pattern.WorkPatterns.MostActiveHour = mostActiveHour
	pattern.WorkPatterns.Time = timeBucket(mostActiveHour)

	mostActiveDay := time.Monday
	bestDayCount := -1
	for day := time.Sunday; day <= time.Saturday; day++ {
		if dayCounts[day] > bestDayCount {
			bestDayCount = dayCounts[day]
			mostActiveDay = day
		}
	}
	pattern.WorkPatterns.MostActiveDay = koreanWeekdays[mostActiveDay]
	if float64(weekendCommits)/float64(parsed) > 0.4 {
		pattern.WorkPatterns.DayOfWeek = "주말 위주"
	} else {
		pattern.WorkPatterns.DayOfWeek = "주중 위주"
	}

	return pattern
}

func teamDynamics(contributorCount int) string {
	switch {
	case contributorCount <= 1:
		return "개인 프로젝트"
	case contributorCount <= 3:
		return "소규모 팀"
	default:
		return "다인 협업"
	}
}

func timeBucket(hour int) string {
	switch {
	case hour < 6:
		return "새벽"
	case hour < 12:
		return "오전"
	case hour < 18:
		return "오후"
	default:
		return "저녁"
	}
}

// BuildSummary composes a deterministic one-paragraph summary.
func BuildSummary(owner, repo, language string, domains []string, totalCommits int) string {
	domainText := "소프트웨어 개발"
	if len(domains) > 0 {
		domainText = strings.Join(domains, ", ")
	}
	languageText := language
	if languageText == "" {
		languageText = "여러 언어"
	}
	return fmt.Sprintf(
		"%s/%s 저장소는 %s 중심의 %s 프로젝트로, 총 %d개의 커밋 이력을 기반으로 분석되었습니다.",
		owner, repo, languageText, domainText, totalCommits,
	)
}

// BuildCharacteristics derives project characteristic scores from the commit
// profile. Scores are clamped to [0, 100] and the same history always yields
// the same characteristics.
func BuildCharacteristics(profile DeveloperProfile, pattern DevelopmentPattern) []Characteristic {
	total := profile.TotalCommits
	ratio := func(category string) float64 {
		if total == 0 {
			return 0
		}
		return float64(profile.CommitCategories[category]) / float64(total)
	}

	quality := clampScore(50 + int(math.Round(ratio(CategoryTest)*100)) + int(math.Round(ratio(CategoryRefactor)*50)))
	documentation := clampScore(40 + int(math.Round(ratio(CategoryDocs)*150)))
	collaboration := clampScore(30 + len(profile.Contributors)*15)
	consistency := 50
	switch pattern.DevelopmentCycle {
	case "빠른 반복 주기":
		consistency = 80
	case "꾸준한 개발 주기":
		consistency = 65
	}

	return []Characteristic{
		{Name: "코드 품질 지향", Score: quality},
		{Name: "문서화 습관", Score: documentation},
		{Name: "협업 성향", Score: collaboration},
		{Name: "개발 일관성", Score: consistency},
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
