package prompt

import (
	"fmt"
	"strings"

	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/llm"
	ragcontext "bibleai-be/pkg/rag/context"
	"bibleai-be/pkg/store"
)

// DefaultHistoryWindow is how many prior turns are sent to the model
const DefaultHistoryWindow = 20

// Input is everything one generation request is built from
type Input struct {
	Mode        router.Mode
	Passages    []ragcontext.ExpandedPassage // grounded only
	History     []store.Turn
	Preferences store.Preferences
	Language    bible.Language
	Message     string
	Fetched     []Fetched // remote translation text for Passages, grounded only
}

// Fetched is passage text retrieved from a remote translation for display
type Fetched struct {
	Reference   string // e.g. "John 3:14-18"
	Translation string
	Text        string
	Notice      string // copyright line quoted with the text
}

// Payload is the provider-agnostic generation request
type Payload struct {
	System  string
	History []llm.Message
	User    llm.Message
}

// Messages flattens the payload for LLMProvider.Chat
func (p Payload) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(p.History)+2)
	out = append(out, llm.Message{Role: "system", Content: p.System})
	out = append(out, p.History...)
	return append(out, p.User)
}

// Builder composes grounded and general prompts
type Builder struct {
	historyWindow int
}

// NewBuilder creates a builder; a non-positive window falls back to DefaultHistoryWindow
func NewBuilder(historyWindow int) *Builder {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Builder{historyWindow: historyWindow}
}

// Build creates the payload. Ungrounded input never carries passages.
func (b *Builder) Build(in Input) Payload {
	grounded := in.Mode == router.ModeGrounded && len(in.Passages) > 0

	var system strings.Builder
	if grounded {
		system.WriteString(groundedInstruction)
	} else {
		system.WriteString(generalInstruction)
	}
	system.WriteString("\n\n")
	system.WriteString(safetyInstruction)
	b.writePreferences(&system, in.Preferences)
	fetched := grounded && len(in.Fetched) > 0
	if fetched {
		fmt.Fprintf(&system, "\n\nWhen %[1]s text is provided, prefer quoting the %[1]s for English.", in.Fetched[0].Translation)
	}
	b.writeLanguage(&system, in.Preferences, in.Language, fetched)

	var user strings.Builder
	if grounded {
		b.writePassages(&user, in.Passages)
		if fetched {
			b.writeFetched(&user, in.Fetched)
		}
	}
	user.WriteString("<user_question>\n")
	user.WriteString(in.Message)
	user.WriteString("\n</user_question>")

	return Payload{
		System:  system.String(),
		History: b.history(in.History),
		User:    llm.Message{Role: "user", Content: user.String()},
	}
}

func (b *Builder) history(turns []store.Turn) []llm.Message {
	if len(turns) > b.historyWindow {
		turns = turns[len(turns)-b.historyWindow:]
	}
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}

func (b *Builder) writePreferences(sb *strings.Builder, prefs store.Preferences) {
	if prefs.IsZero() {
		return
	}

	sb.WriteString("\n\n<preferences>\n")
	if d := prefs.Denomination; d != "" && d != store.DenominationNeutral {
		fmt.Fprintf(sb, "- Denomination: %s. Prioritize this tradition's view on secondary issues while noting alternatives.\n", d)
	}
	if prefs.TranslationKR != "" {
		fmt.Fprintf(sb, "- Korean Bible translation: %s\n", prefs.TranslationFor(bible.Korean))
	}
	if prefs.TranslationEN != "" {
		fmt.Fprintf(sb, "- English Bible translation: %s\n", prefs.TranslationFor(bible.English))
	}
	sb.WriteString("</preferences>")
}

// writeLanguage names the citing translation. A remote translation without
// fetched text is cited as the edition it was searched with.
func (b *Builder) writeLanguage(sb *strings.Builder, prefs store.Preferences, lang bible.Language, fetched bool) {
	instruction, ok := languageInstructions[string(lang)]
	if !ok {
		instruction = languageInstructions[string(bible.English)]
	}
	translation := prefs.TranslationFor(lang)
	if t, ok := bible.LookupTranslation(translation); ok {
		if t.Remote() && !fetched {
			t, _ = bible.LookupTranslation(t.SearchWith)
		}
		translation = fmt.Sprintf("%s (%s)", t.Code, t.Name)
	}

	sb.WriteString("\n\n<language>\n")
	sb.WriteString(instruction)
	fmt.Fprintf(sb, "\nCite verses in %s.\n", translation)
	sb.WriteString("</language>")
}

// writePassages renders each passage as a citable block tagged with reference and translation
func (b *Builder) writePassages(sb *strings.Builder, passages []ragcontext.ExpandedPassage) {
	sb.WriteString("<passages>\n")
	for _, p := range passages {
		fmt.Fprintf(sb, "--- %s / %s (%s) ---\n",
			p.Reference(bible.English), p.Reference(bible.Korean), p.Translation)
		for _, v := range p.Verses {
			marker := "·"
			if v.Direct {
				marker = "★"
			}
			fmt.Fprintf(sb, "  %s v%d: %q  [%s / %s]\n",
				marker, v.Verse.ID.Verse, v.Verse.Text,
				v.Verse.ID.Display(bible.English), v.Verse.ID.Display(bible.Korean))
		}
	}
	sb.WriteString("</passages>\n\n")
}

func (b *Builder) writeFetched(sb *strings.Builder, fetched []Fetched) {
	code := fetched[0].Translation
	fmt.Fprintf(sb, "<fetched_translation>\n--- %s Translation (fetched via API for English display) ---\n", code)
	for _, f := range fetched {
		fmt.Fprintf(sb, "  %s (%s):\n  %q\n", f.Reference, f.Translation, f.Text)
	}
	if notice := fetched[0].Notice; notice != "" {
		fmt.Fprintf(sb, "  [%s Copyright: %s]\n", code, notice)
	}
	sb.WriteString("</fetched_translation>\n\n")
}
