package engine

import (
	"fmt"
	"strings"

	"github.com/altowierigge/maestro/internal/core"
)

// ValidateContent applies the declared validation rules to phase output.
// Rules run in declaration order; the first failure is reported with the
// offending token.
func ValidateContent(content string, rules ValidationRules) error {
	if rules.Empty() {
		return nil
	}

	if rules.MinContentLength > 0 && len(content) < rules.MinContentLength {
		return core.ErrValidation("CONTENT_TOO_SHORT",
			fmt.Sprintf("content length %d below minimum %d", len(content), rules.MinContentLength)).
			WithDetail("min_content_length", rules.MinContentLength)
	}

	for _, element := range rules.RequiredElements {
		if !containsElementVariation(content, element) {
			return missingToken("required_elements", element)
		}
	}

	lower := strings.ToLower(content)
	for _, section := range rules.RequiredSections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			return missingToken("required_sections", section)
		}
	}

	for _, file := range rules.RequiredFiles {
		delimited := fmt.Sprintf("===== %s =====", file)
		if !strings.Contains(content, delimited) && !strings.Contains(content, file) {
			return missingToken("required_files", file)
		}
	}

	for _, feature := range rules.RequiredFeatures {
		if !strings.Contains(lower, strings.ToLower(feature)) {
			return missingToken("required_features", feature)
		}
	}

	for _, component := range rules.RequiredComponents {
		if !strings.Contains(content, component) {
			return missingToken("required_components", component)
		}
	}

	for _, endpoint := range rules.RequiredEndpoints {
		if !strings.Contains(content, endpoint) {
			return missingToken("required_endpoints", endpoint)
		}
	}

	for _, operation := range rules.RequiredOperations {
		if !strings.Contains(lower, strings.ToLower(operation)) {
			return missingToken("required_operations", operation)
		}
	}

	if rules.CodeQualityCheck && !codeQualityCheck(content) {
		return core.ErrValidation("CODE_QUALITY", "content lacks basic code structure markers")
	}
	if rules.IntegrationTest && !integrationCheck(content) {
		return core.ErrValidation("INTEGRATION_CHECK", "content lacks integration markers")
	}
	return nil
}

func missingToken(rule, token string) error {
	return core.ErrValidation("MISSING_"+strings.ToUpper(rule),
		fmt.Sprintf("missing %s token %q", rule, token)).
		WithDetail("rule", rule).
		WithDetail("token", token)
}

// containsElementVariation checks a required element against the set of
// case and heading variations: the original token, upper-case,
// title-case with spaces, and markdown-heading-prefixed forms.
func containsElementVariation(content, element string) bool {
	spaced := strings.ReplaceAll(element, "_", " ")
	variations := []string{
		element,
		strings.ToUpper(element),
		titleWords(spaced),
		strings.ToUpper(spaced),
		"## " + strings.ToUpper(element),
		"## " + titleWords(spaced),
		"# " + strings.ToUpper(element),
		"# " + titleWords(spaced),
	}
	for _, v := range variations {
		if strings.Contains(content, v) {
			return true
		}
	}
	return false
}

// titleWords upper-cases the first letter of each space-separated word.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// codeQualityMarkers is the fixed vocabulary of code-shape indicators:
// class, function, import, docstring, and entry-point forms.
var codeQualityMarkers = []string{
	"class ",
	"def ",
	"func ",
	"import ",
	`"""`,
	"if __name__",
}

// codeQualityCheck requires at least two code-shape markers.
func codeQualityCheck(content string) bool {
	found := 0
	for _, marker := range codeQualityMarkers {
		if strings.Contains(content, marker) {
			found++
		}
	}
	return found >= 2
}

// integrationMarkers is the fixed vocabulary of integration indicators.
var integrationMarkers = []string{
	"docker",
	"config",
	"environment",
	"database",
	"api",
	"cors",
}

// integrationCheck requires at least three integration markers.
func integrationCheck(content string) bool {
	lower := strings.ToLower(content)
	found := 0
	for _, marker := range integrationMarkers {
		if strings.Contains(lower, marker) {
			found++
		}
	}
	return found >= 3
}
