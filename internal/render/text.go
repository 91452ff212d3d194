package render

import (
	"fmt"
	"io"
	"strings"
)

// Text renders to a terminal as plain lines. Lists longer than MaxItems are
// cut short with a count of what was left out.
type Text struct {
	w        io.Writer
	MaxItems int
}

var _ Renderer = (*Text)(nil)

// NewText creates a Text renderer writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w, MaxItems: 20}
}

func (t *Text) Regions(v ListView) {
	fmt.Fprintln(t.w, "----")
	switch {
	case v.Disabled:
		fmt.Fprintf(t.w, "%s: loading...\n", v.Heading)
	case v.Selected != "":
		fmt.Fprintf(t.w, "%s: %s (%d available)\n", v.Heading, v.Selected, len(v.Items))
	default:
		fmt.Fprintf(t.w, "%s (%d): %s\n", v.Heading, len(v.Items), t.inline(v.Items))
	}
}

func (t *Text) Stops(v ListView) {
	if v.Disabled {
		fmt.Fprintf(t.w, "%s: choose a region first\n", v.Heading)
		return
	}
	t.list(v)
}

func (t *Text) Buses(v ListView) {
	if v.Disabled {
		return
	}
	t.list(v)
}

func (t *Text) Schedule(v ListView) {
	if v.Disabled {
		return
	}
	t.list(v)
}

func (t *Text) Notice(msg string) {
	if msg != "" {
		fmt.Fprintf(t.w, "! %s\n", msg)
	}
}

func (t *Text) list(v ListView) {
	if v.Empty != "" {
		fmt.Fprintf(t.w, "%s: %s\n", v.Heading, v.Empty)
		return
	}
	if len(v.Items) == 0 {
		if v.Loading {
			fmt.Fprintf(t.w, "%s: loading...\n", v.Heading)
		}
		return
	}

	fmt.Fprintf(t.w, "%s:\n", v.Heading)
	shown, rest := t.cut(v.Items)
	for _, item := range shown {
		marker := " "
		if item == v.Selected {
			marker = "*"
		}
		fmt.Fprintf(t.w, "  %s %s\n", marker, item)
	}
	if rest > 0 {
		fmt.Fprintf(t.w, "    ... and %d more\n", rest)
	}
}

func (t *Text) inline(items []string) string {
	shown, rest := t.cut(items)
	s := strings.Join(shown, ", ")
	if rest > 0 {
		s += fmt.Sprintf(", ... and %d more", rest)
	}
	return s
}

func (t *Text) cut(items []string) ([]string, int) {
	if t.MaxItems <= 0 || len(items) <= t.MaxItems {
		return items, 0
	}
	return items[:t.MaxItems], len(items) - t.MaxItems
}
