package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/summaryqc/internal/rules"
)

func TestNormalize(t *testing.T) {
	n := Default()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"collapse whitespace", "  그는   학교에\n갔다.  ", "그는 학교에 갔다."},
		{"repeated tokens", "그는 매우 매우 기뻐했다 기뻐했다.", "그는 매우 기뻐했다."},
		{"triple repeat", "정말 정말 정말 좋다.", "정말 좋다."},
		{"ellipsis", "그래서... 끝났다!!", "그래서. 끝났다!"},
		{"mixed terminal", "정말?! 그렇다.", "정말? 그렇다."},
		{"space before punctuation", "그는 왔다 . 그리고 갔다 ,", "그는 왔다. 그리고 갔다,"},
		{"attached particle", "#Person1#은 친구에게 에게 전화했다.", "#Person1#은 친구에게 전화했다."},
		{"doubled ending", "그는 공부를 합니다 합니다.", "그는 공부를 합니다."},
		{"particle e", "학교에 에 갔습니다.", "학교에 갔습니다."},
		{"no false particle match", "학교에 에너지가 있다.", "학교에 에너지가 있다."},
		{"punctuated predecessor kept", "끝. 끝.", "끝. 끝."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := Default()
	inputs := []string{
		"그는 매우 매우 기뻐했다 기뻐했다.",
		"a a a . . b b!! c",
		"친구에게 에게 에게 말했다 말했다...",
		"  x  ",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestNormalizeCoercesMalformedInput(t *testing.T) {
	n := Default()
	assert.Equal(t, "ab", n.Normalize("a\xffb"))
	assert.Equal(t, "a b", n.Normalize("a\x00 b"))
}

func TestNormalizeComposesHangul(t *testing.T) {
	decomposed := norm.NFD.String("한국어")
	require.NotEqual(t, "한국어", decomposed)
	assert.Equal(t, "한국어", Default().Normalize(decomposed))
}

func TestNilNormalizer(t *testing.T) {
	var n *Normalizer
	assert.Equal(t, "a b.", n.Normalize(" a  a b.."))
}

func TestCustomDuplicateTable(t *testing.T) {
	n, err := New([]rules.Entry{{Pattern: `하였\s+하였`, Replacement: "하였"}})
	require.NoError(t, err)
	assert.Equal(t, "그는 준비하였다.", n.Normalize("그는 준비하였 하였다."))

	_, err = New([]rules.Entry{{Pattern: `(`}})
	assert.Error(t, err)
}

func TestCollapseRepeatedTokens(t *testing.T) {
	assert.Equal(t, "", CollapseRepeatedTokens(""))
	assert.Equal(t, "said", CollapseRepeatedTokens("said said"))
	assert.Equal(t, "said, said", CollapseRepeatedTokens("said, said"))
	assert.Equal(t, "a b a", CollapseRepeatedTokens("a b a"))
}
