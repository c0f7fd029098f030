// Package settings holds the reader's display preferences and the port used
// to persist them between sessions.
package settings

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var ErrInvalid = errors.New("invalid settings")

// DisplayMode selects which text layers are shown.
type DisplayMode string

const (
	Bilingual  DisplayMode = "bilingual"
	SourceOnly DisplayMode = "source"
	TargetOnly DisplayMode = "target"
)

var modes = []DisplayMode{Bilingual, SourceOnly, TargetOnly}

// Next cycles bilingual -> source -> target -> bilingual.
func (d DisplayMode) Next() DisplayMode {
	for i, m := range modes {
		if m == d {
			return modes[(i+1)%len(modes)]
		}
	}
	return Bilingual
}

func (d DisplayMode) ShowsSource() bool { return d != TargetOnly }
func (d DisplayMode) ShowsTarget() bool { return d != SourceOnly }

const MaxLineSpacing = 3

type Settings struct {
	DisplayMode      DisplayMode `json:"display_mode" validate:"oneof=bilingual source target"`
	LineSpacing      int         `json:"line_spacing" validate:"min=0,max=3"` // blank lines between verses
	ShowVerseNumbers bool        `json:"show_verse_numbers"`
	Theme            string      `json:"theme"`
	Translation      string      `json:"translation"`
	LastRef          string      `json:"last_ref"`
}

func Default() Settings {
	return Settings{
		DisplayMode:      Bilingual,
		LineSpacing:      1,
		ShowVerseNumbers: true,
		Theme:            "catppuccin-mocha",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// AdjustSpacing returns s with line spacing moved by delta, kept in range.
func (s Settings) AdjustSpacing(delta int) Settings {
	s.LineSpacing = max(0, min(MaxLineSpacing, s.LineSpacing+delta))
	return s
}

// Store persists settings. Load returns defaults when nothing was saved.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}
