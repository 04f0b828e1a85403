package ui

import (
	"cmp"
	"fmt"

	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/status"
	"github.com/rivo/tview"
)

// UserData holds the header's account and connection summary.
type UserData struct {
	Profile  string
	User     *chat.User
	Contacts int
	Channel  status.State
}

// UserInfo displays the logged-in account in the header.
type UserInfo struct {
	*tview.TextView
	theme *Theme
}

// NewUserInfo creates a new user info panel.
func NewUserInfo(theme *Theme) *UserInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &UserInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the user info.
func (u *UserInfo) Update(data UserData) {
	u.Clear()

	fg := colorName(u.theme.FgColor)
	val := colorName(u.theme.CounterColor)

	name, email, phone := "-", "-", "-"
	if usr := data.User; usr != nil {
		name = cmp.Or(usr.Name, usr.ID, "-")
		email = cmp.Or(usr.Email, "-")
		phone = cmp.Or(usr.Phone, "-")
	}
	channel := cmp.Or(string(data.Channel), string(status.Disconnected))

	rows := []struct{ label, value string }{
		{"Profile:", data.Profile},
		{"User:", name},
		{"Email:", email},
		{"Phone:", phone},
		{"Contacts:", fmt.Sprint(data.Contacts)},
		{"Channel:", channel},
	}
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprint(u, "\n")
		}
		_, _ = fmt.Fprintf(u, "[%s::b]%-9s[-:-:-] [%s]%s[-]", fg, r.label, val, tview.Escape(r.value))
	}
}
