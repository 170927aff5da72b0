package analyze

// ResultVersion identifies the analysis result schema revision.
const ResultVersion = "2.1.0"

// Result is the externally visible analysis artifact. It is created once per
// run, successful or failed, and is immutable after creation.
type Result struct {
	RepositoryInfo     RepositoryInfo     `json:"repositoryInfo"`
	DeveloperProfile   DeveloperProfile   `json:"developerProfile"`
	TechStack          []TechStackEntry   `json:"techStack"`
	Domains            []string           `json:"domains"`
	DevelopmentPattern DevelopmentPattern `json:"developmentPattern"`
	KeyFeatures        []string           `json:"keyFeatures"`
	Insights           []string           `json:"insights"`
	Recommendations    []string           `json:"recommendations"`
	Summary            string             `json:"summary"`
	CodeQuality        int                `json:"codeQuality"`
	CodeQualityMetrics QualityMetrics     `json:"codeQualityMetrics"`
	Meta               Meta               `json:"meta"`
}

// RepositoryInfo identifies the analyzed repository and analysis mode.
type RepositoryInfo struct {
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	URL            string `json:"url"`
	IsUserAnalysis bool   `json:"isUserAnalysis"`
	UserLogin      string `json:"userLogin"`
	AIAnalyzed     bool   `json:"aiAnalyzed"`
	AIProjectType  string `json:"aiProjectType"`
	Error          string `json:"error,omitempty"`
}

// DeveloperProfile aggregates commit statistics for the analyzed history.
type DeveloperProfile struct {
	TotalCommits     int               `json:"totalCommits"`
	Contributors     []ContributorStat `json:"contributors"`
	CommitCategories map[string]int    `json:"commitCategories"`
	ActivityPeriod   string            `json:"activityPeriod"`
	UserLanguages    []LanguageUsage   `json:"userLanguages"`
}

// ContributorStat is one contributor's share of the commit history.
// Contributors are keyed by email since logins may be absent.
type ContributorStat struct {
	Author      string `json:"author"`
	Email       string `json:"email"`
	CommitCount int    `json:"commitCount"`
	Percentage  int    `json:"percentage"`
}

// LanguageUsage is one language's relative weight in the change history.
type LanguageUsage struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
}

// TechStackEntry is one detected technology.
type TechStackEntry struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Usage      float64 `json:"usage"`
	Confidence float64 `json:"confidence"`
}

// Tech stack entry types.
const (
	TechTypeLanguage  = "language"
	TechTypeFramework = "framework"
	TechTypeLibrary   = "library"
	TechTypeTool      = "tool"
	TechTypePlatform  = "platform"
	TechTypePackage   = "package"
)

// DevelopmentPattern describes how the team works, derived from commit timing.
type DevelopmentPattern struct {
	CommitFrequency  string       `json:"commitFrequency"`
	DevelopmentCycle string       `json:"developmentCycle"`
	TeamDynamics     string       `json:"teamDynamics"`
	WorkPatterns     WorkPatterns `json:"workPatterns"`
}

// WorkPatterns summarizes when commits happen.
type WorkPatterns struct {
	Time           string `json:"time"`
	DayOfWeek      string `json:"dayOfWeek"`
	MostActiveDay  string `json:"mostActiveDay"`
	MostActiveHour int    `json:"mostActiveHour"`
}

// Characteristic is one named project trait with a 0-100 score, typically
// produced by the model analysis.
type Characteristic struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// QualityMetrics carries the five code-quality sub-scores.
type QualityMetrics struct {
	Readability     int `json:"readability"`
	Maintainability int `json:"maintainability"`
	TestCoverage    int `json:"testCoverage"`
	Documentation   int `json:"documentation"`
	Architecture    int `json:"architecture"`
}

// Meta carries result provenance.
type Meta struct {
	GeneratedAt string `json:"generatedAt"`
	Version     string `json:"version"`
	Error       string `json:"error,omitempty"`
}

// Commit category labels. Classification precedence is fixed:
// bug fix, documentation, refactoring, test, feature, other.
const (
	CategoryBugFix   = "버그 수정"
	CategoryDocs     = "문서화"
	CategoryRefactor = "리팩토링"
	CategoryTest     = "테스트"
	CategoryFeature  = "기능 개발"
	CategoryOther    = "기타"
)

// CategoryLabels lists all commit categories in classification order.
var CategoryLabels = []string{
	CategoryBugFix,
	CategoryDocs,
	CategoryRefactor,
	CategoryTest,
	CategoryFeature,
	CategoryOther,
}
