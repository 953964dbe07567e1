package diffparse_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lanes.dev/lanes/internal/diffparse"
	"lanes.dev/lanes/internal/errors"
)

func TestParseSimple(t *testing.T) {
	diff, err := diffparse.Parse("@@ -1,6 +1,7 @@\n1\n2\n3\n+4\n5\n6\n7\n")
	require.NoError(t, err)
	require.Equal(t, 4, diff.OldStart)
	require.Equal(t, 0, diff.OldLines)
	require.Equal(t, 4, diff.NewStart)
	require.Equal(t, 1, diff.NewLines)
	require.Equal(t, 1, diff.NetLines())
}

func TestParseComplex(t *testing.T) {
	diff, err := diffparse.Parse("@@ -5,7 +5,6 @@\n5\n6\n7\n-8\n-9\n+a\n10\n11\n")
	require.NoError(t, err)
	require.Equal(t, 8, diff.OldStart)
	require.Equal(t, 2, diff.OldLines)
	require.Equal(t, 8, diff.NewStart)
	require.Equal(t, 1, diff.NewLines)
	require.Equal(t, -1, diff.NetLines())
}

func TestParseOmittedCounts(t *testing.T) {
	// Counts default to 1 when the header omits them.
	diff, err := diffparse.Parse("@@ -3 +3 @@\n-old\n+new\n")
	require.NoError(t, err)
	require.Equal(t, 3, diff.OldStart)
	require.Equal(t, 1, diff.OldLines)
	require.Equal(t, 3, diff.NewStart)
	require.Equal(t, 1, diff.NewLines)
}

func TestParseMalformed(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := diffparse.Parse("")
		require.ErrorIs(t, err, errors.ErrMalformedDiff)
	})

	t.Run("missing hunk marker", func(t *testing.T) {
		_, err := diffparse.Parse("-1,6 +1,7\n1\n")
		require.ErrorIs(t, err, errors.ErrMalformedDiff)
	})
}

// TestParseNetLines checks that for generated well-formed hunks the parsed
// net line count always equals the algebraic difference of plus and minus
// lines in the body.
func TestParseNetLines(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		oldStart := rapid.IntRange(1, 100).Draw(t, "oldStart")
		newStart := rapid.IntRange(1, 100).Draw(t, "newStart")
		headContext := rapid.IntRange(0, 3).Draw(t, "headContext")
		tailContext := rapid.IntRange(0, 3).Draw(t, "tailContext")
		minus := rapid.IntRange(0, 10).Draw(t, "minus")
		plus := rapid.IntRange(0, 10).Draw(t, "plus")
		if minus == 0 && plus == 0 {
			// An all-context hunk never appears in real diff output.
			plus = 1
		}

		var body strings.Builder
		for i := 0; i < headContext; i++ {
			body.WriteString("ctx\n")
		}
		for i := 0; i < minus; i++ {
			body.WriteString("-gone\n")
		}
		for i := 0; i < plus; i++ {
			body.WriteString("+here\n")
		}
		for i := 0; i < tailContext; i++ {
			body.WriteString("ctx\n")
		}

		oldCount := headContext + minus + tailContext
		newCount := headContext + plus + tailContext
		text := fmt.Sprintf("@@ -%d,%d +%d,%d @@\n%s", oldStart, oldCount, newStart, newCount, body.String())

		diff, err := diffparse.Parse(text)
		require.NoError(t, err)
		require.GreaterOrEqual(t, diff.OldLines, 0)
		require.GreaterOrEqual(t, diff.NewLines, 0)
		require.Equal(t, plus-minus, diff.NetLines())
		require.Equal(t, oldStart+headContext, diff.OldStart)
		require.Equal(t, newStart+headContext, diff.NewStart)
	})
}
