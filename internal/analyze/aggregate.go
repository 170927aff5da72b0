package analyze

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Hobby2025/Contribase-sub000/internal/githubapi"
)

// Ordered keyword lists for commit category classification. The precedence
// is fixed: bug-fix terms, doc terms, refactor terms, test terms,
// feature terms, then other. First match wins.
var categoryKeywords = []struct {
	label    string
	keywords []string
}{
	{CategoryBugFix, []string{"fix", "bug", "resolve", "patch", "hotfix", "수정", "버그"}},
	{CategoryDocs, []string{"doc", "readme", "comment", "문서"}},
	{CategoryRefactor, []string{"refactor", "restructure", "cleanup", "clean up", "리팩토링", "개선"}},
	{CategoryTest, []string{"test", "spec", "테스트"}},
	{CategoryFeature, []string{"add", "feat", "implement", "create", "new", "추가", "구현"}},
}

// Aggregate turns raw commits into a developer profile. When a focus identity
// is given, category classification applies only to commits attributed to it;
// contributor statistics always cover the full commit set.
func Aggregate(commits []githubapi.CommitRecord, focusLogin, focusEmail string) DeveloperProfile {
	profile := DeveloperProfile{
		TotalCommits:     len(commits),
		Contributors:     contributorStats(commits),
		CommitCategories: categorizeCommits(commits, focusLogin, focusEmail),
		ActivityPeriod:   activityPeriod(commits),
		UserLanguages:    languageUsage(commits),
	}
	return profile
}

// ClassifyCommit resolves a commit message to a category using ordered keyword
// matching against the lower-cased message. A message matching multiple
// categories counts once, for the first matching category.
func ClassifyCommit(message string) string {
	lowered := strings.ToLower(message)
	for _, category := range categoryKeywords {
		for _, keyword := range category.keywords {
			if strings.Contains(lowered, keyword) {
				return category.label
			}
		}
	}
	return CategoryOther
}

func categorizeCommits(commits []githubapi.CommitRecord, focusLogin, focusEmail string) map[string]int {
	categories := make(map[string]int, len(CategoryLabels))
	for _, label := range CategoryLabels {
		categories[label] = 0
	}

	hasFocus := focusLogin != "" || focusEmail != ""
	for _, commit := range commits {
		if hasFocus && !matchesFocus(commit, focusLogin, focusEmail) {
			continue
		}
		categories[ClassifyCommit(commit.Message)]++
	}
	return categories
}

func matchesFocus(commit githubapi.CommitRecord, focusLogin, focusEmail string) bool {
	if focusLogin != "" && strings.EqualFold(commit.Author.Login, focusLogin) {
		return true
	}
	if focusEmail != "" && strings.EqualFold(commit.Author.Email, focusEmail) {
		return true
	}
	return false
}

func contributorStats(commits []githubapi.CommitRecord) []ContributorStat {
	if len(commits) == 0 {
		return nil
	}

	type contributorCount struct {
		stat      ContributorStat
		firstSeen int
	}

	byEmail := make(map[string]*contributorCount)
	order := make([]*contributorCount, 0)
	for i, commit := range commits {
		email := strings.ToLower(strings.TrimSpace(commit.Author.Email))
		existing, ok := byEmail[email]
		if !ok {
			existing = &contributorCount{
				stat: ContributorStat{
					Author: commit.Author.Name,
					Email:  commit.Author.Email,
				},
				firstSeen: i,
			}
			byEmail[email] = existing
			order = append(order, existing)
		}
		existing.stat.CommitCount++
	}

	// Descending by count; ties break by first-seen order.
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].stat.CommitCount != order[j].stat.CommitCount {
			return order[i].stat.CommitCount > order[j].stat.CommitCount
		}
		return order[i].firstSeen < order[j].firstSeen
	})

	total := len(commits)
	stats := make([]ContributorStat, 0, len(order))
	for _, entry := range order {
		entry.stat.Percentage = int(math.Round(float64(entry.stat.CommitCount) / float64(total) * 100))
		stats = append(stats, entry.stat)
	}
	return stats
}

// activityPeriod renders the span between the first and last parseable commit
// dates as days, months, or years. Unparsable dates degrade to unknown.
func activityPeriod(commits []githubapi.CommitRecord) string {
	var first, last = int64(math.MaxInt64), int64(math.MinInt64)
	found := false
	for _, commit := range commits {
		parsed := githubapi.ParseCommitDate(commit.Date)
		if parsed.IsZero() {
			continue
		}
		found = true
		unix := parsed.Unix()
		if unix < first {
			first = unix
		}
		if unix > last {
			last = unix
		}
	}
	if !found {
		return "알 수 없음"
	}

	days := int(math.Ceil(float64(last-first) / 86400))
	switch {
	case days < 30:
		if days < 1 {
			days = 1
		}
		return fmt.Sprintf("%d일", days)
	case days < 365:
		months := int(math.Round(float64(days) / 30))
		return fmt.Sprintf("%d개월", months)
	default:
		return fmt.Sprintf("%.1f년", float64(days)/365)
	}
}

func languageUsage(commits []githubapi.CommitRecord) []LanguageUsage {
	type languageWeight struct {
		name      string
		weight    int
		firstSeen int
	}

	weights := make(map[string]*languageWeight)
	order := make([]*languageWeight, 0)
	total := 0
	for _, commit := range commits {
		for _, file := range commit.Files {
			language := LanguageForFile(file.Filename)
			if language == "" {
				continue
			}
			weight := file.Additions + file.Deletions
			if weight == 0 {
				weight = 1
			}
			entry, ok := weights[language]
			if !ok {
				entry = &languageWeight{name: language, firstSeen: len(order)}
				weights[language] = entry
				order = append(order, entry)
			}
			entry.weight += weight
			total += weight
		}
	}
	if total == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].weight != order[j].weight {
			return order[i].weight > order[j].weight
		}
		return order[i].firstSeen < order[j].firstSeen
	})

	usage := make([]LanguageUsage, 0, len(order))
	for _, entry := range order {
		usage = append(usage, LanguageUsage{
			Name:       entry.name,
			Percentage: int(math.Round(float64(entry.weight) / float64(total) * 100)),
		})
	}
	return usage
}
