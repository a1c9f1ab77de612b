package narration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"flyover/pkg/llm"
	"flyover/pkg/llm/prompts"
	"flyover/pkg/model"
	"flyover/pkg/tour"
)

// MaxRewrite is the number of stops the writer narrates per tour.
const MaxRewrite = 10

const maxPromptDescription = 200

// Writer asks an LLM for livelier stop narratives than the compiled ones.
type Writer struct {
	llm     llm.Provider
	prompts *prompts.Manager
	city    string
}

// NewWriter creates a writer. city names the area the guide talks about.
func NewWriter(p llm.Provider, pm *prompts.Manager, city string) *Writer {
	if city == "" {
		city = "Orlando"
	}
	return &Writer{llm: p, prompts: pm, city: city}
}

type stopPrompt struct {
	City        string
	Title       string
	Venue       string
	Day         string
	Category    string
	Description string
	Theme       string
	Position    string
}

// Position is the lead-in for stop i (1-based) of total.
func Position(i, total int) string {
	switch {
	case i == 1:
		return "First up"
	case i == total:
		return "And for our final stop"
	default:
		return "Next up"
	}
}

// Rewrite narrates up to MaxRewrite stops in parallel. Stops whose request
// fails get a short positional fallback. Results are narrative-only updates
// ready for tour.AttachAudio.
func (w *Writer) Rewrite(ctx context.Context, wps []model.Waypoint, theme string) []tour.AudioUpdate {
	n := min(len(wps), MaxRewrite)
	updates := make([]tour.AudioUpdate, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			updates[i] = tour.AudioUpdate{Index: i, Narrative: w.narrate(ctx, &wps[i].Location, theme, i+1, n)}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Writer: narratives ready", "stops", n, "theme", theme)
	return updates
}

func (w *Writer) narrate(ctx context.Context, loc *model.Location, theme string, i, total int) string {
	pos := Position(i, total)

	prompt, err := w.prompts.Render("narrate", w.stopPrompt(loc, theme, pos))
	if err != nil {
		slog.Error("Writer: failed to render prompt", "error", err)
		return fallbackNarrative(loc, pos)
	}

	text, err := w.llm.GenerateText(ctx, "narrate", prompt)
	if err != nil {
		slog.Warn("Writer: LLM narration failed, using fallback", "location", loc.ID, "error", err)
		return fallbackNarrative(loc, pos)
	}
	text = llm.Unquote(text)
	if text == "" {
		return fallbackNarrative(loc, pos)
	}
	return text
}

func (w *Writer) stopPrompt(loc *model.Location, theme, pos string) stopPrompt {
	desc := loc.Description
	if r := []rune(desc); len(r) > maxPromptDescription {
		desc = string(r[:maxPromptDescription]) + "..."
	}
	sp := stopPrompt{
		City:        w.city,
		Title:       loc.Title,
		Venue:       loc.Venue,
		Category:    loc.Category,
		Description: desc,
		Theme:       theme,
		Position:    pos,
	}
	if !loc.StartDate.IsZero() {
		sp.Day = loc.StartDate.Weekday().String()
	}
	return sp
}

func fallbackNarrative(loc *model.Location, pos string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s", pos, loc.Title)
	if loc.Venue != "" {
		fmt.Fprintf(&b, " at %s", loc.Venue)
	}
	b.WriteString(".")
	if snippet := strings.TrimSpace(strings.SplitN(loc.Description, ".", 2)[0]); snippet != "" {
		fmt.Fprintf(&b, " %s.", snippet)
	}
	return b.String()
}

// Intro writes a welcome for a tour of n stops. An empty result means the
// caller should use its configured intro.
func (w *Writer) Intro(ctx context.Context, n int, theme string) string {
	prompt, err := w.prompts.Render("intro", map[string]any{"City": w.city, "Stops": n, "Theme": theme})
	if err != nil {
		slog.Error("Writer: failed to render intro prompt", "error", err)
		return ""
	}
	text, err := w.llm.GenerateText(ctx, "intro", prompt)
	if err != nil {
		slog.Warn("Writer: LLM intro failed", "error", err)
		return ""
	}
	return llm.Unquote(text)
}
