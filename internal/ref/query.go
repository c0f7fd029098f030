package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Query is a reference typed by a reader, validated and reduced to its
// canonical parts.
type Query struct {
	Book    string
	Section string
	Segment string
}

// Ref returns the canonical locator for the query.
func (q Query) Ref() string {
	return Build(q.Book, q.Section, q.Segment)
}

// ChapterRef returns the locator of the chapter (or daf) the query points into.
func (q Query) ChapterRef() string {
	return Build(q.Book, q.Section, "")
}

// queryGrammar accepts "Genesis", "Genesis 1", "Genesis 1:3", "Gen.1.3",
// "1 Kings 3", "Song of Songs 2:3", "Berakhot 2a" and "Berakhot 2a:5".
//
//nolint:govet // participle grammar tags are not standard struct tags
type queryGrammar struct {
	Prefix  string       `@Number?`
	Words   []string     `@Word+`
	Section *sectionPart `( "."? @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type sectionPart struct {
	Daf     string `(   @Daf`
	Chapter string `  | @Number )`
	Segment string `( ( ":" | "." ) @Number )?`
}

// Daf must come before Number so "2a" is not split into "2" and "a".
var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Daf", Pattern: `[0-9]+[abAB]\b`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `\p{L}[\p{L}'\-]*`},
	{Name: "Punct", Pattern: `[.:]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var queryParser = participle.MustBuild[queryGrammar](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace"),
)

// ParseQuery parses a reference typed by a reader. Unlike Parse it rejects
// input that is not shaped like a reference.
func ParseQuery(input string) (Query, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Query{}, fmt.Errorf("empty reference")
	}

	parsed, err := queryParser.ParseString("", input)
	if err != nil {
		return Query{}, fmt.Errorf("invalid reference %q: %w", input, err)
	}

	book := strings.Join(parsed.Words, " ")
	if parsed.Prefix != "" {
		book = parsed.Prefix + " " + book
	}
	q := Query{Book: book}

	if s := parsed.Section; s != nil {
		if s.Daf != "" {
			q.Section = strings.ToLower(s.Daf)
		} else {
			q.Section = trimNumber(s.Chapter)
		}
		if s.Segment != "" {
			q.Segment = trimNumber(s.Segment)
		}
	}
	return q, nil
}

// trimNumber drops leading zeros ("007" -> "7").
func trimNumber(s string) string {
	if n, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(n)
	}
	return s
}
