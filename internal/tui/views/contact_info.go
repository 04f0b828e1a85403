package views

import (
	"cmp"
	"fmt"
	"time"

	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/format"
	"github.com/matheus3301/chatflow/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactInfo displays the details of the open conversation's peer.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactInfo creates a new contact info view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Contact ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (ci *ContactInfo) Name() string { return "Details" }

// Update renders the contact.
func (ci *ContactInfo) Update(c chat.Contact, now time.Time) {
	ci.Clear()

	label := ui.ColorTag(ci.theme.FgColor)
	value := ui.ColorTag(ci.theme.CounterColor)

	seen := format.LastSeen(c.LastActivity, now)
	if !c.LastActivity.IsZero() {
		seen += " (" + c.LastActivity.In(now.Location()).Format("Jan 2 15:04") + ")"
	}
	rows := []struct{ k, v string }{
		{"Name", c.Name},
		{"ID", c.ID},
		{"Status", c.Status},
		{"Email", c.Email},
		{"Phone", c.Phone},
		{"Last seen", seen},
		{"Unread", fmt.Sprint(c.Unread)},
		{"Last message", singleLine(c.LastMessage)},
		{"Avatar", c.Avatar},
	}
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " %s[::b]%-13s[-:-:-] %s%s[-]\n", label, r.k+":", value, tview.Escape(cmp.Or(r.v, "-")))
	}
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(singleLine(c.Name))))
}
