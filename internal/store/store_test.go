package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
)

const corpusJSON = `{
  "translations": [{"id": "en", "name": "English"}, {"id": "fr", "name": "Français", "language": "fr"}],
  "books": [
    {"name": "Genesis", "collection": "tanakh", "structure_type": "CHAPTER_VERSE", "sections": [
      {"section": "1", "translations": {
        "en": [{"source": "בְּרֵאשִׁית", "target": "In the beginning"}, {"source": "וְהָאָרֶץ", "target": "Now the earth"}],
        "fr": [{"source": "בְּרֵאשִׁית", "target": "Au commencement"}]}},
      {"section": "2", "translations": {"en": [{"source": "וַיְכֻלּוּ", "target": {"spans": [{"text": "Thus "}, {"kind": "em", "text": "finished"}]}}]}}
    ]},
    {"name": "Exodus", "collection": "tanakh", "structure_type": "CHAPTER_VERSE", "sections": [
      {"section": "1", "translations": {"en": [{"source": "וְאֵלֶּה", "target": "These are the names"}]}}
    ]},
    {"name": "Berakhot", "collection": "bavli", "structure_type": "DAF_LINE", "sections": [
      {"section": "2a", "translations": {"en": [{"source": "מאימתי", "target": "From when"}]}},
      {"section": "2b", "translations": {"en": [{"source": "תנן", "target": "We learned"}]}},
      {"section": "3a", "translations": {"en": [{"source": "רבי", "target": "Rabbi"}]}}
    ]},
    {"name": "Shabbat", "collection": "bavli", "structure_type": "DAF_LINE", "sections": [
      {"section": "2a", "translations": {"en": [{"source": "יציאות", "target": "Carrying out"}]}}
    ]}
  ]
}`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, ":memory:", WithDefaultTranslation("en"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	stats, err := s.Import(ctx, strings.NewReader(corpusJSON))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Books: 4, Sections: 7, Verses: 9}, stats)
	return s
}

func TestStoreFetchChapter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	t.Run("Should assemble a chapter with neighbours", func(t *testing.T) {
		ch, err := s.FetchChapter(ctx, "Genesis.1", "en")
		require.NoError(t, err)
		require.NotNil(t, ch)

		assert.Equal(t, "Genesis.1", ch.Ref)
		assert.Equal(t, "Genesis", ch.Book)
		assert.Equal(t, "1", ch.ChapterNumber)
		assert.Equal(t, "tanakh", ch.Collection)
		assert.Equal(t, "Genesis.2", ch.NextRef)
		assert.Empty(t, ch.PrevRef)
		require.Len(t, ch.Verses, 2)
		assert.Equal(t, "Now the earth", ch.Verses[1].Target.Text())
		assert.Equal(t, 2, ch.Verses[1].Index)
	})

	t.Run("Should accept legacy locators and ignore the segment", func(t *testing.T) {
		ch, err := s.FetchChapter(ctx, "Genesis 2:1", "en")
		require.NoError(t, err)
		require.NotNil(t, ch)
		assert.Equal(t, "Genesis.2", ch.Ref)
		assert.IsType(t, api.StructuredContent{}, ch.Verses[0].Target)
	})

	t.Run("Should continue into the next book of the collection", func(t *testing.T) {
		ch, err := s.FetchChapter(ctx, "Genesis.2", "en")
		require.NoError(t, err)
		assert.Equal(t, "Exodus.1", ch.NextRef)

		ex, err := s.FetchChapter(ctx, "Exodus.1", "en")
		require.NoError(t, err)
		assert.Equal(t, "Genesis.2", ex.PrevRef)
		assert.Empty(t, ex.NextRef, "Exodus is the last tanakh book in the fixture")
	})

	t.Run("Should step daf sections", func(t *testing.T) {
		ch, err := s.FetchChapter(ctx, "Berakhot.2b", "en")
		require.NoError(t, err)
		assert.Equal(t, ref.DafLine, ch.StructureType)
		assert.Equal(t, "Berakhot.2a", ch.PrevRef)
		assert.Equal(t, "Berakhot.3a", ch.NextRef)

		first, err := s.FetchChapter(ctx, "Berakhot.2a", "en")
		require.NoError(t, err)
		assert.Empty(t, first.PrevRef)

		last, err := s.FetchChapter(ctx, "Berakhot.3a", "en")
		require.NoError(t, err)
		assert.Equal(t, "Shabbat.2a", last.NextRef)
	})

	t.Run("Should fall back to the default translation", func(t *testing.T) {
		fr, err := s.FetchChapter(ctx, "Genesis.1", "fr")
		require.NoError(t, err)
		assert.Equal(t, "fr", fr.ActiveTranslation)
		assert.Equal(t, "Au commencement", fr.Verses[0].Target.Text())

		fallback, err := s.FetchChapter(ctx, "Genesis.2", "fr")
		require.NoError(t, err)
		assert.Equal(t, "en", fallback.ActiveTranslation)
	})

	t.Run("Should return nothing for unknown or malformed locators", func(t *testing.T) {
		for _, loc := range []string{"Genesis.3", "Leviticus.1", "Genesis", "Berakhot.2", "Genesis.2a", ""} {
			ch, err := s.FetchChapter(ctx, loc, "en")
			require.NoError(t, err, loc)
			assert.Nil(t, ch, loc)
		}
	})
}

func TestStoreTranslations(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Translations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "en", got[0].ID)
	assert.Equal(t, "fr", got[1].Language)
}

func TestStoreImport(t *testing.T) {
	t.Run("Should reject sections that break the book grammar", func(t *testing.T) {
		s, err := Open(context.Background(), ":memory:")
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Import(context.Background(), strings.NewReader(`{"books":[
			{"name":"Berakhot","collection":"bavli","structure_type":"DAF_LINE","sections":[{"section":"2"}]}]}`))
		require.Error(t, err)

		ch, err := s.FetchChapter(context.Background(), "Berakhot.2a", "")
		require.NoError(t, err)
		assert.Nil(t, ch, "failed import must roll back")
	})

	t.Run("Should reject books whose sections do not step in order", func(t *testing.T) {
		for name, sections := range map[string]string{
			"gap":       `[{"section":"1"},{"section":"3"}]`,
			"reordered": `[{"section":"2"},{"section":"1"}]`,
			"duplicate": `[{"section":"1"},{"section":"1"}]`,
			"daf gap":   `[{"section":"2a"},{"section":"3a"}]`,
		} {
			t.Run(name, func(t *testing.T) {
				s, err := Open(context.Background(), ":memory:")
				require.NoError(t, err)
				defer s.Close()

				st := "CHAPTER_VERSE"
				if strings.Contains(sections, "a\"") {
					st = "DAF_LINE"
				}
				_, err = s.Import(context.Background(), strings.NewReader(`{"books":[
					{"name":"Psalms","collection":"tanakh","structure_type":"`+st+`","sections":`+sections+`},
					{"name":"Proverbs","collection":"tanakh","structure_type":"CHAPTER_VERSE","sections":[{"section":"1"}]}]}`))
				require.ErrorIs(t, err, ErrSectionOrder)

				ch, err := s.FetchChapter(context.Background(), "Proverbs.1", "")
				require.NoError(t, err)
				assert.Nil(t, ch, "failed import must roll back")
			})
		}
	})

	t.Run("Should link every chapter both ways across a book edge", func(t *testing.T) {
		s, err := Open(context.Background(), ":memory:")
		require.NoError(t, err)
		defer s.Close()
		_, err = s.Import(context.Background(), strings.NewReader(`{"books":[
			{"name":"Psalms","collection":"tanakh","structure_type":"CHAPTER_VERSE","sections":[{"section":"1"},{"section":"2"},{"section":"3"}]},
			{"name":"Proverbs","collection":"tanakh","structure_type":"CHAPTER_VERSE","sections":[{"section":"1"}]}]}`))
		require.NoError(t, err)

		var forward []string
		for at := "Psalms.1"; at != ""; {
			ch, err := s.FetchChapter(context.Background(), at, "")
			require.NoError(t, err)
			require.NotNil(t, ch)
			forward = append(forward, ch.Ref)
			if ch.NextRef != "" {
				next, err := s.FetchChapter(context.Background(), ch.NextRef, "")
				require.NoError(t, err)
				assert.Equal(t, ch.Ref, next.PrevRef)
			}
			at = ch.NextRef
		}
		assert.Equal(t, []string{"Psalms.1", "Psalms.2", "Psalms.3", "Proverbs.1"}, forward)
	})

	t.Run("Should keep a book's position when it is imported again", func(t *testing.T) {
		s := openTestStore(t)
		_, err := s.Import(context.Background(), strings.NewReader(`{"books":[
			{"name":"Genesis","collection":"tanakh","structure_type":"CHAPTER_VERSE","sections":[
				{"section":"1","translations":{"en":[{"source":"x","target":"y"}]}}]}]}`))
		require.NoError(t, err)

		ch, err := s.FetchChapter(context.Background(), "Genesis.1", "en")
		require.NoError(t, err)
		assert.Equal(t, "Exodus.1", ch.NextRef)
		assert.Empty(t, ch.PrevRef)
	})
}
