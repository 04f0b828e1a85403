package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

const (
	menuRows     = 6
	menuColWidth = 22
)

// Menu displays keyboard shortcut hints in columns beside the logo.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint panel.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints top to bottom, then left to right.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	keyColor := colorName(m.theme.MenuKeyColor)

	lines := make([]strings.Builder, menuRows)
	for i, h := range hints {
		cell := fmt.Sprintf("<%s> %s", h.Key, h.Description)
		pad := max(menuColWidth-len([]rune(cell)), 1)
		line := &lines[i%menuRows]
		_, _ = fmt.Fprintf(line, "[%s::b]<%s>[-:-:-] %s%s",
			keyColor, tview.Escape(h.Key), tview.Escape(h.Description), strings.Repeat(" ", pad))
	}
	for i := range lines {
		if lines[i].Len() == 0 {
			break
		}
		_, _ = fmt.Fprintln(m, lines[i].String())
	}
}
