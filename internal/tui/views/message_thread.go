package views

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/format"
	"github.com/matheus3301/chatflow/internal/status"
	"github.com/matheus3301/chatflow/internal/sync"
	"github.com/matheus3301/chatflow/internal/tui/ui"
	"github.com/rivo/tview"
)

const composerLabel = " > "

// MessageThread displays the open conversation and its composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	now      func() time.Time

	snap     sync.Snapshot
	selfID   string
	selected string
	onSend   func(text string)
	onDraft  func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(composerLabel).
		SetFieldWidth(0).
		SetPlaceholder("Type a message, or /image <path>")
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}

	composer.SetChangedFunc(func(text string) {
		if mt.onDraft != nil {
			mt.onDraft(text)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			mt.onSend(text)
		}
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string { return "Thread" }

// SetOnSend sets the callback for Enter in the composer.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnDraft sets the callback for composer edits.
func (mt *MessageThread) SetOnDraft(fn func(text string)) {
	mt.onDraft = fn
}

// Messages returns the message pane (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// Update renders a snapshot of the engine. The composer is left alone: the
// snapshot's draft may be older than what the user has typed since.
func (mt *MessageThread) Update(s sync.Snapshot, selfID string) {
	mt.snap = s
	mt.selfID = selfID
	if mt.selected != "" && mt.indexOf(mt.selected) < 0 {
		mt.selected = ""
	}
	mt.composer.SetLabel(mt.composerState())
	mt.render()
}

// RestoreDraft puts text back into the composer after a failed send, unless
// the user has started typing again.
func (mt *MessageThread) RestoreDraft(text string) bool {
	if text == "" || mt.composer.GetText() != "" {
		return false
	}
	mt.composer.SetText(text)
	return true
}

func (mt *MessageThread) composerState() string {
	switch {
	case mt.snap.Uploading:
		return " ⇡ "
	case mt.snap.Sending:
		return " … "
	default:
		return composerLabel
	}
}

func (mt *MessageThread) render() {
	mt.messages.Clear()

	title := "Messages"
	if p := mt.snap.Peer; p != nil {
		title = singleLine(p.Name)
		if p.Status != "" {
			title += " · " + p.Status
		}
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(title)))

	switch {
	case mt.snap.Peer == nil:
		_, _ = fmt.Fprint(mt.messages, "\n  Select a contact to start chatting.")
		return
	case mt.snap.Phase == status.Loading && len(mt.snap.Messages) == 0:
		_, _ = fmt.Fprint(mt.messages, "\n  Loading messages…")
		return
	case mt.snap.LoadErr != nil && len(mt.snap.Messages) == 0:
		_, _ = fmt.Fprintf(mt.messages, "\n  %sCould not load messages.[-] Press r to retry.",
			ui.ColorTag(mt.theme.FlashErrColor))
		return
	case len(mt.snap.Messages) == 0:
		_, _ = fmt.Fprint(mt.messages, "\n  No messages yet. Say hello!")
		return
	}

	now := mt.now()
	for i, m := range mt.snap.Messages {
		_, _ = fmt.Fprintf(mt.messages, "[\"m%d\"]%s[\"\"]\n", i, mt.line(m, now))
	}
	if i := mt.indexOf(mt.selected); i >= 0 {
		mt.messages.Highlight(fmt.Sprintf("m%d", i))
		mt.messages.ScrollToHighlight()
	} else {
		mt.messages.Highlight()
		mt.messages.ScrollToEnd()
	}
}

func (mt *MessageThread) line(m chat.Message, now time.Time) string {
	sender, color := "", mt.theme.PeerColor
	if m.SenderID == mt.selfID {
		sender, color = "You", mt.theme.SelfColor
	} else if p := mt.snap.Peer; p != nil {
		sender = singleLine(p.Name)
	}

	body := tview.Escape(sanitizeForTerminal(m.Body))
	if m.Kind == chat.KindImage {
		body = "[::u]image[::-] " + tview.Escape(imageRef(m.Body))
	}

	stamp := format.MessageTime(m.CreatedAt, now)
	mark := ""
	switch m.Status {
	case chat.StatusPending:
		color = mt.theme.PendingColor
		mark = " …"
	case chat.StatusFailed:
		color = mt.theme.FlashErrColor
		mark = " !"
	}
	return fmt.Sprintf("%s[::b]%s[-:-:-] %s%s%s[-]\n%s%s[-]\n",
		ui.ColorTag(color), tview.Escape(sender),
		ui.ColorTag(mt.theme.TimestampColor), stamp, mark,
		ui.ColorTag(color), body)
}

// imageRef shortens inline previews, which are data URLs.
func imageRef(body string) string {
	if strings.HasPrefix(body, "data:") {
		if mime, _, ok := strings.Cut(strings.TrimPrefix(body, "data:"), ";"); ok {
			return "(uploading " + mime + ")"
		}
		return "(uploading)"
	}
	return body
}

func (mt *MessageThread) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(mt.snap.Messages, func(m chat.Message) bool { return m.ID == id })
}

// SelectNext moves the message cursor by delta, starting from the newest
// message when nothing is selected.
func (mt *MessageThread) SelectNext(delta int) {
	n := len(mt.snap.Messages)
	if n == 0 {
		return
	}
	i := mt.indexOf(mt.selected)
	if i < 0 {
		i = n
	}
	i = min(max(i+delta, 0), n-1)
	mt.selected = mt.snap.Messages[i].ID
	mt.render()
}

// ClearSelection drops the message cursor.
func (mt *MessageThread) ClearSelection() {
	mt.selected = ""
	mt.render()
}

// Selected returns the message under the cursor.
func (mt *MessageThread) Selected() (chat.Message, bool) {
	i := mt.indexOf(mt.selected)
	if i < 0 {
		return chat.Message{}, false
	}
	return mt.snap.Messages[i], true
}
