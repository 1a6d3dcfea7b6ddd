package execution

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Language is the declared language of a source buffer.
// Unknown values are accepted and answered with a generic message.
type Language string

const (
	Python Language = "python"
	Java   Language = "java"
	C      Language = "c"
	CPP    Language = "c++"
)

// Normalize lowercases the tag and folds aliases.
func (l Language) Normalize() Language {
	switch lang := Language(strings.ToLower(strings.TrimSpace(string(l)))); lang {
	case "cpp", "cxx", "cc":
		return CPP
	case "py":
		return Python
	default:
		return lang
	}
}

// printRule recognizes one literal print idiom.
// keyword gates the rule: when it is present but no literal call matches,
// the rule answers with greeting instead of falling through.
type printRule struct {
	keyword  string
	pattern  *regexp.Regexp
	greeting string
}

func (r printRule) extract(source string) []string {
	return lo.Map(r.pattern.FindAllStringSubmatch(source, -1), func(match []string, _ int) string {
		return match[1]
	})
}

// dialect is the narrow, mock-only understanding the engine has of a language.
type dialect struct {
	rules    []printRule
	fallback string
}

func literalCall(prefix string) *regexp.Regexp {
	return regexp.MustCompile(prefix + `['"]([^'"]+)['"]\)`)
}

func compiledFallback(name string) string {
	return fmt.Sprintf("Code compiled and executed successfully (%s)", name)
}

var dialects = map[Language]dialect{
	Python: {
		rules: []printRule{
			{keyword: "print", pattern: literalCall(`print\(`), greeting: "Hello, Python!"},
		},
		fallback: "Code executed successfully (Python)",
	},
	Java: {
		rules: []printRule{
			{keyword: "System.out.println", pattern: literalCall(`System\.out\.println\(`), greeting: "Hello, Java!"},
		},
		fallback: compiledFallback("Java"),
	},
	C:   cFamily("C"),
	CPP: cFamily("C++"),
}

func cFamily(name string) dialect {
	return dialect{
		rules: []printRule{
			{keyword: "printf", pattern: literalCall(`printf\(`), greeting: "Hello, C/C++!"},
			{keyword: "cout", pattern: regexp.MustCompile(`cout\s*<<\s*['"]([^'"]+)['"]`), greeting: "Hello, C++!"},
		},
		fallback: compiledFallback(name),
	}
}

// Languages lists the languages with a dedicated dialect.
func Languages() []Language {
	return []Language{Python, Java, C, CPP}
}
