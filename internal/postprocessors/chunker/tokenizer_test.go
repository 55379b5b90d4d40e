package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhitespaceTokenizer_Tokenize(t *testing.T) {
	tok := NewWhitespaceTokenizer()

	t.Run("concatenation reproduces the input", func(t *testing.T) {
		inputs := []string{
			"one two three",
			"  leading and   irregular\tspacing\n",
			"no-spaces",
			"trailing space ",
			"tabs\tand\nnewlines mixed  together",
			"unicode: héllo wörld — ok",
		}
		for _, input := range inputs {
			tokens, err := tok.Tokenize(input)
			require.NoError(t, err)
			assert.Equal(t, input, strings.Join(tokens, ""), "input %q", input)
		}
	})

	t.Run("a token carries its trailing whitespace", func(t *testing.T) {
		tokens, err := tok.Tokenize("alpha  beta gamma")

		require.NoError(t, err)
		require.Len(t, tokens, 3)
		assert.Equal(t, "alpha  ", tokens[0])
		assert.Equal(t, "beta ", tokens[1])
		assert.Equal(t, "gamma", tokens[2])
	})

	t.Run("empty input yields no tokens", func(t *testing.T) {
		tokens, err := tok.Tokenize("")

		require.NoError(t, err)
		assert.Empty(t, tokens)
	})
}
