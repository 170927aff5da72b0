// Package score computes the heuristic code-quality metrics from detected
// technology signals. Each adjustment is a bounded additive operation on an
// independent accumulator, applied before clamping, so application order
// does not affect the outcome.
package score

import (
	"math"
	"strings"

	"github.com/Hobby2025/Contribase-sub000/internal/analyze"
)

// Sub-score weights for the overall score.
const (
	weightReadability     = 0.20
	weightMaintainability = 0.30
	weightTestCoverage    = 0.20
	weightDocumentation   = 0.15
	weightArchitecture    = 0.15
)

// Base scores reflect "unknown until evidence found".
const (
	baseReadability     = 50
	baseMaintainability = 50
	baseTestCoverage    = 45
	baseDocumentation   = 45
	baseArchitecture    = 50
)

// Baseline returned when the tech stack is empty: no evidence means fixed
// values with zero variance rather than spurious precision.
var emptyStackBaseline = analyze.QualityMetrics{
	Readability:     65,
	Maintainability: 60,
	TestCoverage:    50,
	Documentation:   55,
	Architecture:    60,
}

const featureCountThreshold = 8
const techStackSizeThreshold = 15

var testFrameworkNames = []string{
	"jest", "mocha", "vitest", "jasmine", "cypress", "playwright",
	"pytest", "unittest", "junit", "testify", "rspec", "phpunit",
}

var ciToolNames = []string{
	"github actions", "github-actions", "jenkins", "travis", "circleci",
	"gitlab ci", "gitlab-ci", "drone", "buildkite", "husky",
}

var docToolNames = []string{
	"jsdoc", "typedoc", "sphinx", "docusaurus", "swagger", "openapi",
	"storybook", "mkdocs", "doxygen",
}

// Evidence is the set of detected quality signals feeding the scorer.
type Evidence struct {
	TypedLanguage   bool
	TestFramework   bool
	CITool          bool
	DocTool         bool
	QualityScore    int
	LongTerm        bool
	KeyFeatureCount int
	TechStackSize   int
}

// Input carries everything the scorer needs from an analysis.
type Input struct {
	TechStack       []analyze.TechStackEntry
	Characteristics []analyze.Characteristic
	KeyFeatureCount int
	LongTerm        bool
}

// DetectEvidence scans the tech stack and characteristics for quality signals.
func DetectEvidence(input Input) Evidence {
	evidence := Evidence{
		KeyFeatureCount: input.KeyFeatureCount,
		TechStackSize:   len(input.TechStack),
		LongTerm:        input.LongTerm,
	}

	for _, entry := range input.TechStack {
		name := strings.ToLower(entry.Name)
		if entry.Type == analyze.TechTypeLanguage && analyze.IsTypedLanguage(entry.Name) {
			evidence.TypedLanguage = true
		}
		if matchesAny(name, testFrameworkNames) {
			evidence.TestFramework = true
		}
		if matchesAny(name, ciToolNames) {
			evidence.CITool = true
		}
		if matchesAny(name, docToolNames) {
			evidence.DocTool = true
		}
	}

	for _, characteristic := range input.Characteristics {
		lowered := strings.ToLower(characteristic.Name)
		if (strings.Contains(lowered, "code quality") || strings.Contains(lowered, "코드 품질")) &&
			characteristic.Score > evidence.QualityScore {
			evidence.QualityScore = characteristic.Score
		}
	}

	return evidence
}

func matchesAny(name string, candidates []string) bool {
	for _, candidate := range candidates {
		if strings.Contains(name, candidate) {
			return true
		}
	}
	return false
}

// Score computes the five sub-scores and the weighted overall score.
// An empty tech stack short-circuits to the fixed baseline.
func Score(input Input) (analyze.QualityMetrics, int) {
	if len(input.TechStack) == 0 {
		return emptyStackBaseline, Overall(emptyStackBaseline)
	}

	evidence := DetectEvidence(input)

	readability := baseReadability
	maintainability := baseMaintainability
	testCoverage := baseTestCoverage
	documentation := baseDocumentation
	architecture := baseArchitecture

	if evidence.TypedLanguage {
		readability += 10
		maintainability += 10
	}
	if evidence.TestFramework {
		testCoverage += 20
	}
	if evidence.CITool {
		testCoverage += 10
		maintainability += 5
	}
	if evidence.DocTool {
		documentation += 15
	}
	if evidence.QualityScore > 0 {
		uplift := evidence.QualityScore / 10
		readability += uplift
		maintainability += uplift
		architecture += uplift
	}
	if evidence.LongTerm {
		documentation += 5
		architecture += 10
	}
	if evidence.KeyFeatureCount > featureCountThreshold {
		excess := evidence.KeyFeatureCount - featureCountThreshold
		architecture -= excess * 2
		maintainability -= excess
	}
	if evidence.TechStackSize > techStackSizeThreshold {
		maintainability -= 10
		documentation -= 5
	}

	metrics := analyze.QualityMetrics{
		Readability:     clamp(readability),
		Maintainability: clamp(maintainability),
		TestCoverage:    clamp(testCoverage),
		Documentation:   clamp(documentation),
		Architecture:    clamp(architecture),
	}
	return metrics, Overall(metrics)
}

// Overall computes the weighted average of the sub-scores.
func Overall(metrics analyze.QualityMetrics) int {
	weighted := weightReadability*float64(metrics.Readability) +
		weightMaintainability*float64(metrics.Maintainability) +
		weightTestCoverage*float64(metrics.TestCoverage) +
		weightDocumentation*float64(metrics.Documentation) +
		weightArchitecture*float64(metrics.Architecture)
	return clamp(int(math.Round(weighted)))
}

func clamp(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
