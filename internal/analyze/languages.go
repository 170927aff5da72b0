package analyze

import (
	"path"
	"strings"
)

// extensionLanguages maps file extensions to language names for usage weighting.
var extensionLanguages = map[string]string{
	".js":     "JavaScript",
	".jsx":    "JavaScript",
	".mjs":    "JavaScript",
	".cjs":    "JavaScript",
	".ts":     "TypeScript",
	".tsx":    "TypeScript",
	".py":     "Python",
	".go":     "Go",
	".java":   "Java",
	".kt":     "Kotlin",
	".rb":     "Ruby",
	".php":    "PHP",
	".cs":     "C#",
	".c":      "C",
	".h":      "C",
	".cpp":    "C++",
	".cc":     "C++",
	".hpp":    "C++",
	".rs":     "Rust",
	".swift":  "Swift",
	".dart":   "Dart",
	".scala":  "Scala",
	".sh":     "Shell",
	".sql":    "SQL",
	".html":   "HTML",
	".css":    "CSS",
	".scss":   "CSS",
	".vue":    "Vue",
	".svelte": "Svelte",
}

// typedLanguages lists statically typed languages, used as a quality signal.
var typedLanguages = map[string]bool{
	"TypeScript": true,
	"Go":         true,
	"Java":       true,
	"Kotlin":     true,
	"C#":         true,
	"C":          true,
	"C++":        true,
	"Rust":       true,
	"Swift":      true,
	"Scala":      true,
	"Dart":       true,
}

// LanguageForFile resolves a filename to a language name, or "" when unknown.
func LanguageForFile(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return extensionLanguages[ext]
}

// IsTypedLanguage reports whether the language is statically typed.
func IsTypedLanguage(name string) bool {
	return typedLanguages[name]
}

// knownLanguageNames is the lookup list for tech stack type inference.
var knownLanguageNames = map[string]bool{}

// knownFrameworkNames is the lookup list for tech stack type inference.
var knownFrameworkNames = map[string]bool{
	"react":   true,
	"next.js": true,
	"nextjs":  true,
	"vue":     true,
	"nuxt":    true,
	"svelte":  true,
	"angular": true,
	"express": true,
	"nestjs":  true,
	"fastify": true,
	"django":  true,
	"flask":   true,
	"fastapi": true,
	"rails":   true,
	"spring":  true,
	"laravel": true,
	"gin":     true,
	"echo":    true,
	"flutter": true,
}

func init() {
	for _, name := range extensionLanguages {
		knownLanguageNames[strings.ToLower(name)] = true
	}
}

// InferTechType resolves a technology name to a type through a fixed cascade:
// known-language list, known-framework list, name-pattern heuristics, then tool.
func InferTechType(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if knownLanguageNames[lowered] {
		return TechTypeLanguage
	}
	if knownFrameworkNames[lowered] {
		return TechTypeFramework
	}
	switch {
	case strings.Contains(lowered, "db") || strings.Contains(lowered, "sql") ||
		strings.Contains(lowered, "redis") || strings.Contains(lowered, "mongo"):
		return TechTypePlatform
	case strings.HasPrefix(lowered, "@") || strings.Contains(lowered, "/"):
		return TechTypePackage
	case strings.Contains(lowered, "lib") || strings.HasSuffix(lowered, "js"):
		return TechTypeLibrary
	}
	return TechTypeTool
}
