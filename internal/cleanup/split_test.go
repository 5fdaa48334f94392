package cleanup

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectiveFinder(t *testing.T) {
	f := ConnectiveFinder{Connectives: []string{"하지만", "그리고"}}

	left, right, ok := f.Find("가 그리고 나 하지만 다.")
	assert.True(t, ok)
	assert.Equal(t, "가 그리고 나.", left)
	assert.Equal(t, "다.", right)

	_, _, ok = f.Find("그리고 시작했다.")
	assert.False(t, ok, "connective at the start has no left side")

	_, _, ok = f.Find("아무 접속사도 없다.")
	assert.False(t, ok)
}

func TestCommaFinder(t *testing.T) {
	f := CommaFinder{}

	left, right, ok := f.Find("하나, 둘 셋 넷 다섯 여섯 일곱 여덟.")
	assert.True(t, ok)
	assert.Equal(t, "하나.", left)
	assert.Equal(t, "둘 셋 넷 다섯 여섯 일곱 여덟.", right)

	_, _, ok = f.Find("하나 둘 셋 넷 다섯 여섯, 일곱.")
	assert.False(t, ok, "comma in the second half is ignored")

	_, _, ok = CommaFinder{MinWords: 35}.Find("하나, 둘 셋 넷 다섯 여섯 일곱 여덟.")
	assert.False(t, ok, "short units are not split at commas")
}

func TestCommaFinderPicksLastCommaInFirstHalf(t *testing.T) {
	left, right, ok := CommaFinder{}.Find("가, 나, 다 라 마 바 사 아 자 차 카 타.")
	assert.True(t, ok)
	assert.Equal(t, "가, 나.", left)
	assert.Equal(t, "다 라 마 바 사 아 자 차 카 타.", right)
}

func TestChain(t *testing.T) {
	c := Chain{
		ConnectiveFinder{Connectives: []string{"그리고"}},
		CommaFinder{},
	}

	left, _, ok := c.Find("가 그리고 나, 다 라 마 바 사 아.")
	assert.True(t, ok)
	assert.Equal(t, "가.", left)

	left, _, ok = c.Find("가, 나 다 라 마 바 사 아.")
	assert.True(t, ok)
	assert.Equal(t, "가.", left)

	_, _, ok = Chain{}.Find("가 나.")
	assert.False(t, ok)
}

func TestSplitUnitRecursive(t *testing.T) {
	f := ConnectiveFinder{Connectives: []string{"그리고"}}
	got := splitUnit(f, nil, "a b 그리고 c d 그리고 e f.", 2)
	assert.Equal(t, []string{"a b.", "c d.", "e f."}, got)
}

func TestSplitUnitStripsLeadingConnectives(t *testing.T) {
	lead := regexp.MustCompile(`^(?:또한\s+)+`)
	got := splitUnit(CommaFinder{}, lead, "가 나, 또한 다 라 마 바 사 아 자 차.", 8)
	assert.Equal(t, []string{"가 나.", "다 라 마 바 사 아 자 차."}, got)
}

func TestSplitUnitPiecesAreFinal(t *testing.T) {
	finder := Chain{
		ConnectiveFinder{Connectives: []string{"그리고", "하지만"}},
		CommaFinder{MinWords: 6},
	}
	units := []string{
		"하나 둘, 셋 넷 그리고 다섯 여섯 일곱 하지만 여덟, 아홉 열 열하나 열둘.",
		"가, 나 다 라 마 바 사 아 자 차 카 타 파 하.",
	}
	for _, u := range units {
		for _, piece := range splitUnit(finder, nil, u, 4) {
			assert.Equal(t, []string{piece}, splitUnit(finder, nil, piece, 4), "piece %q of %q", piece, u)
		}
	}
}

func TestFirstClause(t *testing.T) {
	assert.Equal(t, "가 나.", firstClause("가 나, 다 라."))
	assert.Equal(t, "가 3.5 나.", firstClause("가 3.5 나, 다."))
	assert.Equal(t, "가 나", firstClause("가 나"))
	assert.Equal(t, "가 나.", firstClause("가 나."))
}
