// Package captions renders ASS caption overlays for finished clips: preset
// stylesheets, positioning, and word-level animation.
package captions

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/pkg/timefmt"
)

//go:embed presets.yaml
var presetsYAML []byte

// PresetOff disables the overlay entirely.
const PresetOff = "off"

// Animation variants.
const (
	AnimationNone       = "none"
	AnimationWordByWord = "wordByWord"
	AnimationPop        = "pop"
)

// Style is one caption preset's full stylesheet.
type Style struct {
	FontName        string `yaml:"font_name"`
	FontSize        int    `yaml:"font_size"`
	PrimaryColor    string `yaml:"primary_color"`
	HighlightColor  string `yaml:"highlight_color"`
	OutlineColor    string `yaml:"outline_color"`
	BackgroundColor string `yaml:"background_color"`
	Bold            bool   `yaml:"bold"`
	Outline         int    `yaml:"outline"`
	Shadow          int    `yaml:"shadow"`
	Position        string `yaml:"position"`  // bottom, center, top
	Animation       string `yaml:"animation"` // none, wordByWord, pop
}

type presetFile struct {
	Presets map[string]Style `yaml:"presets"`
}

var presets = mustLoadPresets()

func mustLoadPresets() map[string]Style {
	var f presetFile
	if err := yaml.Unmarshal(presetsYAML, &f); err != nil {
		panic(fmt.Sprintf("captions: invalid embedded presets: %v", err))
	}
	return f.Presets
}

// Preset resolves a preset by name; empty selects "classic".
// The "off" preset resolves but callers should skip rendering for it.
func Preset(name string) (Style, error) {
	if name == "" {
		name = "classic"
	}
	if name == PresetOff {
		return Style{}, nil
	}
	style, ok := presets[name]
	if !ok {
		return Style{}, fmt.Errorf("unknown caption preset %q", name)
	}
	return style, nil
}

// PresetNames lists the available presets, sorted, including "off".
func PresetNames() []string {
	names := make([]string, 0, len(presets)+1)
	for name := range presets {
		names = append(names, name)
	}
	names = append(names, PresetOff)
	sort.Strings(names)
	return names
}

// Output geometry the stylesheet targets; ASS positions are resolution-relative.
const (
	playResX = 1080
	playResY = 1920
)

// alignment maps a position name to an ASS numpad alignment code.
func alignment(position string) int {
	switch position {
	case "top":
		return 8
	case "center":
		return 5
	default:
		return 2
	}
}

// Render produces a complete ASS document for the entries. Entry times are
// clip-relative seconds.
func Render(entries []models.SubtitleEntry, style Style) string {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", playResX)
	fmt.Fprintf(&sb, "PlayResY: %d\n", playResY)
	sb.WriteString("WrapStyle: 0\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, BackColour, Bold, Italic, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV\n")
	bold := 0
	if style.Bold {
		bold = -1
	}
	borderStyle := 1
	if style.BackgroundColor != "" && style.BackgroundColor != "&H00000000" {
		borderStyle = 4 // opaque box
	}
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,%s,%s,%d,0,%d,%d,%d,%d,60,60,120\n\n",
		style.FontName, style.FontSize,
		style.PrimaryColor, style.OutlineColor, style.BackgroundColor,
		bold, borderStyle, style.Outline, style.Shadow, alignment(style.Position))

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, entry := range entries {
		switch style.Animation {
		case AnimationWordByWord:
			writeWordByWord(&sb, entry, style)
		case AnimationPop:
			writeDialogue(&sb, entry.StartS, entry.EndS,
				`{\t(0,120,\fscx112\fscy112)\t(120,240,\fscx100\fscy100)}`+escapeText(entry.Text))
		default:
			writeDialogue(&sb, entry.StartS, entry.EndS, escapeText(entry.Text))
		}
	}
	return sb.String()
}

// writeWordByWord emits one dialogue line per word duration with the active
// word highlighted.
func writeWordByWord(sb *strings.Builder, entry models.SubtitleEntry, style Style) {
	words := strings.Fields(entry.Text)
	if len(words) == 0 {
		return
	}
	highlight := style.HighlightColor
	if highlight == "" {
		highlight = "&H0000FFFF" // yellow
	}

	total := entry.EndS - entry.StartS
	per := total / float64(len(words))
	for i := range words {
		start := entry.StartS + float64(i)*per
		end := start + per
		if i == len(words)-1 {
			end = entry.EndS
		}

		var line strings.Builder
		for j, word := range words {
			if j > 0 {
				line.WriteString(" ")
			}
			if j == i {
				fmt.Fprintf(&line, `{\c%s}%s{\c%s}`, highlight, escapeText(word), style.PrimaryColor)
			} else {
				line.WriteString(escapeText(word))
			}
		}
		writeDialogue(sb, start, end, line.String())
	}
}

func writeDialogue(sb *strings.Builder, startS, endS float64, text string) {
	fmt.Fprintf(sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
		timefmt.ASS(startS), timefmt.ASS(endS), text)
}

// escapeText neutralizes characters ASS treats specially.
func escapeText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, "{", `\{`)
	text = strings.ReplaceAll(text, "}", `\}`)
	text = strings.ReplaceAll(text, "\n", `\N`)
	return text
}

// Slice rebases full-video subtitle entries onto a clip window: entries
// overlapping [startS, endS] are kept, clamped, and shifted to start at 0.
func Slice(entries []models.SubtitleEntry, startS, endS float64) []models.SubtitleEntry {
	var out []models.SubtitleEntry
	for _, e := range entries {
		if e.EndS <= startS || e.StartS >= endS {
			continue
		}
		s := e.StartS
		if s < startS {
			s = startS
		}
		t := e.EndS
		if t > endS {
			t = endS
		}
		out = append(out, models.SubtitleEntry{
			StartS: s - startS,
			EndS:   t - startS,
			Text:   e.Text,
		})
	}
	return out
}
