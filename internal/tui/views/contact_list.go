package views

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/directory"
	"github.com/matheus3301/chatflow/internal/format"
	"github.com/matheus3301/chatflow/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactList is the main contact table.
type ContactList struct {
	*tview.Table
	theme    *ui.Theme
	contacts []chat.Contact
	visible  []chat.Contact
	filter   string
	active   string
	now      func() time.Time
}

// NewContactList creates a new contact table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ContactList{
		Table: table,
		theme: theme,
		now:   time.Now,
	}
	cl.render()
	return cl
}

// Name implements ui.Component.
func (cl *ContactList) Name() string { return "Contacts" }

// Update replaces the contact list.
func (cl *ContactList) Update(contacts []chat.Contact) {
	cl.contacts = slices.Clone(contacts)
	cl.render()
}

// SetFilter narrows the list to names containing filter.
func (cl *ContactList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter text.
func (cl *ContactList) Filter() string {
	return cl.filter
}

// SetActive marks the contact whose conversation is open.
func (cl *ContactList) SetActive(id string) {
	cl.active = id
	cl.render()
}

// Bump records an incoming message from a contact that is not open.
func (cl *ContactList) Bump(m chat.Message) {
	for i := range cl.contacts {
		c := &cl.contacts[i]
		if c.ID != m.SenderID {
			continue
		}
		c.Unread++
		c.LastMessage = m.Body
		if m.Kind == chat.KindImage {
			c.LastMessage = "Image"
		}
		c.LastActivity = m.CreatedAt
		cl.render()
		return
	}
}

// ClearUnread resets the unread badge of id.
func (cl *ContactList) ClearUnread(id string) {
	for i := range cl.contacts {
		if cl.contacts[i].ID == id {
			cl.contacts[i].Unread = 0
		}
	}
	cl.render()
}

func (cl *ContactList) render() {
	row, _ := cl.GetSelection()
	cl.Clear()

	headers := []struct {
		text  string
		exp   int
		align int
	}{
		{" NAME", 1, tview.AlignLeft},
		{" LAST MESSAGE", 2, tview.AlignLeft},
		{"SEEN ", 0, tview.AlignRight},
		{"NEW ", 0, tview.AlignRight},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetAlign(h.align).
			SetExpansion(h.exp))
	}

	now := cl.now()
	cl.visible = directory.Filter(cl.contacts, cl.filter)
	for i, c := range cl.visible {
		r := i + 1
		name := singleLine(c.Name)
		nameColor := cl.theme.FgColor
		if c.Status == "online" {
			name = "● " + name
			nameColor = cl.theme.OnlineColor
		}
		if c.ID == cl.active {
			name = "▸ " + name
		}
		unread := ""
		if c.Unread > 0 {
			unread = strconv.Itoa(c.Unread) + " "
		}

		cl.SetCell(r, 0, tview.NewTableCell(" "+tview.Escape(name)).SetExpansion(1).SetTextColor(nameColor))
		cl.SetCell(r, 1, tview.NewTableCell(" "+tview.Escape(singleLine(c.LastMessage))).SetExpansion(2).SetMaxWidth(48).SetTextColor(cl.theme.FgColor))
		cl.SetCell(r, 2, tview.NewTableCell(format.LastSeen(c.LastActivity, now)+" ").SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(r, 3, tview.NewTableCell(unread).SetTextColor(cl.theme.CounterColor).SetAttributes(tcell.AttrBold).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d/%d) /%s ", len(cl.visible), len(cl.contacts), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) ", len(cl.contacts)))
	}

	switch {
	case len(cl.visible) == 0:
		cl.Select(0, 0)
	case row < 1:
		cl.Select(1, 0)
	case row > len(cl.visible):
		cl.Select(len(cl.visible), 0)
	}
}

// SelectedContact returns the contact under the cursor.
func (cl *ContactList) SelectedContact() (chat.Contact, bool) {
	row, _ := cl.GetSelection()
	return cl.ContactByIndex(row)
}

// ContactByID returns the contact with id, filtered out or not.
func (cl *ContactList) ContactByID(id string) (chat.Contact, bool) {
	for _, c := range cl.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Contact{}, false
}

// ContactByIndex returns the Nth visible contact (1-based).
func (cl *ContactList) ContactByIndex(n int) (chat.Contact, bool) {
	if n < 1 || n > len(cl.visible) {
		return chat.Contact{}, false
	}
	return cl.visible[n-1], true
}
