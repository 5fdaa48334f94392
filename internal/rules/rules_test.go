package rules

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInOrder(t *testing.T) {
	table, err := Compile([]Entry{
		{Name: "progressive", Pattern: `하고\s+있습니다`, Replacement: "합니다"},
		{Name: "doubled", Pattern: `합니다\s+합니다`, Replacement: "합니다"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	// The second rule sees the first rule's output.
	got := table.Apply("공부를 하고 있습니다 합니다.")
	assert.Equal(t, "공부를 합니다.", got)
}

func TestDisabledEntriesSkipped(t *testing.T) {
	table, err := Compile([]Entry{
		{Name: "off", Pattern: "a", Replacement: "b", Disabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, "aaa", table.Apply("aaa"))
}

func TestCompileErrorNamesRule(t *testing.T) {
	_, err := Compile([]Entry{{Name: "broken", Pattern: `(unclosed`}})
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "broken", ce.Rule)
	assert.Contains(t, err.Error(), "broken")
}

func TestCompileRejectsEmptyPattern(t *testing.T) {
	_, err := Compile([]Entry{{Pattern: "  "}})
	assert.Error(t, err)
}

func TestZeroTableIsIdentity(t *testing.T) {
	var table Table
	assert.Equal(t, "unchanged", table.Apply("unchanged"))
	assert.Empty(t, table.Count("unchanged"))
}

func TestCountAndMatches(t *testing.T) {
	table := MustCompile([]Entry{
		{Name: "seems", Pattern: `것으로\s*보입니다`},
		{Name: "maybe", Pattern: `아마도`},
	})
	text := "아마도 그럴 것으로 보입니다. 아마도 맞습니다."

	counts := table.Count(text)
	assert.Equal(t, map[string]int{"seems": 1, "maybe": 2}, counts)
	assert.Equal(t, 3, table.Total(text))
	assert.Equal(t, []string{"것으로 보입니다", "아마도", "아마도"}, table.Matches(text))
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() { MustCompile([]Entry{{Pattern: `[`}}) })
}

func TestLiteral(t *testing.T) {
	entries := Literal("그리고", " ", "a.b")
	require.Len(t, entries, 2)
	assert.Equal(t, "그리고", entries[0].Name)
	assert.Equal(t, regexp.QuoteMeta("a.b"), entries[1].Pattern)

	table := MustCompile(entries)
	assert.Equal(t, 0, table.Total("axb"))
	assert.Equal(t, 1, table.Total("a.b"))
}

func TestAlternation(t *testing.T) {
	assert.Equal(t, "", Alternation(nil))

	alt := Alternation([]string{"또", "또한"})
	assert.Equal(t, "(?:또한|또)", alt)

	re := regexp.MustCompile(`^` + alt)
	assert.Equal(t, "또한", re.FindString("또한 그는"))
}
