package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	t.Run("Should accept the forms readers type", func(t *testing.T) {
		cases := map[string]string{
			"Genesis":           "Genesis",
			"Genesis 1":         "Genesis.1",
			"Genesis 1:3":       "Genesis.1.3",
			"Gen.1.3":           "Gen.1.3",
			"1 Kings 3":         "1 Kings.3",
			"Song of Songs 2:3": "Song of Songs.2.3",
			"Berakhot 2a":       "Berakhot.2a",
			"Berakhot 2A:5":     "Berakhot.2a.5",
			"  Exodus 007 ":     "Exodus.7",
		}
		for in, want := range cases {
			q, err := ParseQuery(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, q.Ref(), in)
		}
	})

	t.Run("Should expose the chapter locator", func(t *testing.T) {
		q, err := ParseQuery("Berakhot 2a:5")
		require.NoError(t, err)
		assert.Equal(t, "Berakhot.2a", q.ChapterRef())
	})

	t.Run("Should reject input that is not a reference", func(t *testing.T) {
		for _, bad := range []string{"", "   ", "1:3", "Genesis 1:", "Genesis 1 2 3"} {
			_, err := ParseQuery(bad)
			assert.Error(t, err, bad)
		}
	})
}
