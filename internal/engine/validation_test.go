package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateContent_NoRules(t *testing.T) {
	assert.NoError(t, ValidateContent("anything", ValidationRules{}))
}

func TestValidateContent_MinLength(t *testing.T) {
	rules := ValidationRules{MinContentLength: 10}
	assert.Error(t, ValidateContent("short", rules))
	assert.NoError(t, ValidateContent("long enough content", rules))
}

func TestValidateContent_RequiredElements_Variations(t *testing.T) {
	rules := ValidationRules{RequiredElements: []string{"core_features"}}

	for _, content := range []string{
		"... core_features ...",
		"... CORE_FEATURES ...",
		"... Core Features ...",
		"... CORE FEATURES ...",
		"## CORE_FEATURES\n...",
		"## Core Features\n...",
		"# CORE_FEATURES\n...",
	} {
		assert.NoError(t, ValidateContent(content, rules), "variation %q", content)
	}

	err := ValidateContent("nothing relevant here", rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core_features")
}

func TestValidateContent_RequiredSections_CaseInsensitive(t *testing.T) {
	rules := ValidationRules{RequiredSections: []string{"USER_STORIES"}}
	assert.NoError(t, ValidateContent("here are the user_stories for the app", rules))

	err := ValidateContent("CORE_FEATURES: stuff", rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USER_STORIES")
}

func TestValidateContent_RequiredFiles(t *testing.T) {
	rules := ValidationRules{RequiredFiles: []string{"main.py"}}

	assert.NoError(t, ValidateContent("===== main.py =====\nprint('hi')", rules))
	assert.NoError(t, ValidateContent("see main.py for the entry point", rules))
	assert.Error(t, ValidateContent("no files here", rules))
}

func TestValidateContent_RequiredComponents_ExactMatch(t *testing.T) {
	rules := ValidationRules{RequiredComponents: []string{"LoginForm"}}
	assert.NoError(t, ValidateContent("renders <LoginForm />", rules))
	// Components match exactly, unlike features.
	assert.Error(t, ValidateContent("renders <loginform />", rules))
}

func TestValidateContent_RequiredFeaturesAndOperations_CaseInsensitive(t *testing.T) {
	rules := ValidationRules{
		RequiredFeatures:   []string{"Search"},
		RequiredOperations: []string{"DELETE"},
	}
	assert.NoError(t, ValidateContent("implements search and delete endpoints", rules))
}

func TestValidateContent_CodeQuality(t *testing.T) {
	rules := ValidationRules{CodeQualityCheck: true}

	code := "import os\n\nclass Thing:\n    pass\n"
	assert.NoError(t, ValidateContent(code, rules))

	goCode := "import \"fmt\"\n\nfunc main() {}\n"
	assert.NoError(t, ValidateContent(goCode, rules))

	assert.Error(t, ValidateContent("just prose, no code shape", rules))
}

func TestValidateContent_IntegrationCheck(t *testing.T) {
	rules := ValidationRules{IntegrationTest: true}

	good := "Dockerfile configures the environment and the database; the API allows CORS."
	assert.NoError(t, ValidateContent(good, rules))

	assert.Error(t, ValidateContent("api only", rules))
}

func TestValidateContent_RuleOrder(t *testing.T) {
	// Both rules would fail: the length failure is reported first.
	rules := ValidationRules{
		MinContentLength: 1000,
		RequiredSections: []string{"MISSING"},
	}
	err := ValidateContent("short", rules)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "length"), "got %v", err)
}

func TestTitleWords(t *testing.T) {
	assert.Equal(t, "Core Features", titleWords("core features"))
	assert.Equal(t, "A B C", titleWords("a b c"))
}
