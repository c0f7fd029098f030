// Package ref parses, renders and steps canonical corpus locators.
//
// A locator is a dot separated string of the form "Book.Section.Segment",
// for example "Genesis.1.3" or "Berakhot.2a.5". Which grammar the section
// follows is a property of the book (see StructureType), never of the string.
package ref

import (
	"regexp"
	"strconv"
	"strings"
)

// StructureType is the addressing grammar a book declares for its sections.
type StructureType int

const (
	// ChapterVerse sections are integer chapters with integer verses.
	ChapterVerse StructureType = iota
	// DafLine sections are folio number plus side ("2a", "2b") with an optional line.
	DafLine
)

func (s StructureType) String() string {
	if s == DafLine {
		return "DAF_LINE"
	}
	return "CHAPTER_VERSE"
}

// ParseStructureType maps a declared structure_type to its grammar. Anything
// that is not DAF_LINE steps as plain integers.
func ParseStructureType(s string) StructureType {
	if strings.EqualFold(strings.TrimSpace(s), "DAF_LINE") {
		return DafLine
	}
	return ChapterVerse
}

func (s StructureType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StructureType) UnmarshalText(b []byte) error {
	*s = ParseStructureType(string(b))
	return nil
}

// Parts is a locator decomposed into its three components. Missing
// components are empty strings.
type Parts struct {
	Book    string
	Section string
	Segment string
}

var (
	// "Song of Songs 2:3", "Berakhot 2a", "Genesis 1.3"
	legacyRef = regexp.MustCompile(`^(.*\S)\s+([0-9]+[ab]?)(?:[:.]([0-9]+))?$`)
	dafSuffix = regexp.MustCompile(`[0-9]+[ab]$`)
	dafParts  = regexp.MustCompile(`^([0-9]+)([ab])$`)
)

// Normalize rewrites legacy space separated input ("Genesis 1:3") into the
// canonical dot form ("Genesis.1.3"). Canonical input is returned trimmed.
// A dot inside a book name must be followed by a space ("St. John 3:16");
// any other dot marks the input as already canonical.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if m := legacyRef.FindStringSubmatch(s); m != nil && !hasSeparatorDot(m[1]) {
		return Build(m[1], m[2], m[3])
	}
	return s
}

func hasSeparatorDot(book string) bool {
	for i := strings.IndexByte(book, '.'); i >= 0; i = strings.IndexByte(book, '.') {
		if i+1 >= len(book) || book[i+1] != ' ' {
			return true
		}
		book = book[i+1:]
	}
	return false
}

// Parse splits a locator into book, section and segment. It is purely
// syntactic: the book is not looked up and the section is not validated.
func Parse(s string) Parts {
	s = Normalize(s)
	if s == "" {
		return Parts{}
	}
	var fields []string
	for _, f := range strings.Split(s, ".") {
		// "St. John.3": a dot followed by a space belongs to the book name.
		if len(fields) > 0 && strings.HasPrefix(f, " ") {
			fields[len(fields)-1] += "." + f
			continue
		}
		fields = append(fields, f)
	}
	var p Parts
	p.Book = fields[0]
	if len(fields) > 1 {
		p.Section = fields[1]
	}
	if len(fields) > 2 {
		p.Segment = fields[2]
	}
	return p
}

// Build joins locator components, dropping trailing empty ones.
func Build(book, section, segment string) string {
	switch {
	case section == "":
		return book
	case segment == "":
		return book + "." + section
	default:
		return book + "." + section + "." + segment
	}
}

// String returns the canonical dot form.
func (p Parts) String() string {
	return Build(p.Book, p.Section, p.Segment)
}

// Chapter returns the locator truncated to book and section.
func (p Parts) Chapter() string {
	return Build(p.Book, p.Section, "")
}

// IsDaf reports whether a section looks like a folio ("12b").
func IsDaf(section string) bool {
	return dafSuffix.MatchString(section)
}

// ToDisplay renders a locator for people: "Genesis 1:3" (Chapter:Verse),
// "Berakhot 2a:5" (Daf:Line), "Genesis 1" or just "Genesis". Both grammars
// share the same shape, so the output parses back to the same parts.
func ToDisplay(s string) string {
	p := Parse(s)
	switch {
	case p.Section == "":
		return p.Book
	case p.Segment == "":
		return p.Book + " " + p.Section
	}
	return p.Book + " " + p.Section + ":" + p.Segment
}

// NextSection returns the section after the given one. ok is false when the
// section does not parse under the structure type.
func NextSection(section string, st StructureType) (next string, ok bool) {
	if st == DafLine {
		folio, side, ok := splitDaf(section)
		if !ok {
			return "", false
		}
		if side == 'a' {
			return strconv.Itoa(folio) + "b", true
		}
		return strconv.Itoa(folio+1) + "a", true
	}

	n, err := strconv.Atoi(strings.TrimSpace(section))
	if err != nil {
		return "", false
	}
	return strconv.Itoa(n + 1), true
}

// firstFolio is the earliest addressable daf. Folio 1 is not part of the
// printed Talmud, so 2a has no predecessor.
const firstFolio = 2

// PrevSection returns the section before the given one. ok is false at the
// start of a book (chapter 1, daf 2a) or when the section does not parse.
func PrevSection(section string, st StructureType) (prev string, ok bool) {
	if st == DafLine {
		folio, side, ok := splitDaf(section)
		if !ok {
			return "", false
		}
		if side == 'b' {
			return strconv.Itoa(folio) + "a", true
		}
		if folio == firstFolio || folio-1 < 1 {
			return "", false
		}
		return strconv.Itoa(folio-1) + "b", true
	}

	n, err := strconv.Atoi(strings.TrimSpace(section))
	if err != nil || n <= 1 {
		return "", false
	}
	return strconv.Itoa(n - 1), true
}

// ValidSection reports whether section conforms to the structure type.
func ValidSection(section string, st StructureType) bool {
	_, ok := sectionOrdinal(section, st)
	return ok
}

// CompareSections orders two sections of the same book. It returns -1, 0 or
// +1, and ok=false if either side does not parse.
func CompareSections(a, b string, st StructureType) (int, bool) {
	x, ok := sectionOrdinal(a, st)
	if !ok {
		return 0, false
	}
	y, ok := sectionOrdinal(b, st)
	if !ok {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

func sectionOrdinal(section string, st StructureType) (int, bool) {
	if st == DafLine {
		folio, side, ok := splitDaf(section)
		if !ok {
			return 0, false
		}
		ord := folio * 2
		if side == 'b' {
			ord++
		}
		return ord, true
	}
	n, err := strconv.Atoi(section)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func splitDaf(section string) (folio int, side byte, ok bool) {
	m := dafParts.FindStringSubmatch(strings.TrimSpace(section))
	if m == nil {
		return 0, 0, false
	}
	folio, err := strconv.Atoi(m[1])
	if err != nil || folio < 1 {
		return 0, 0, false
	}
	return folio, m[2][0], true
}
