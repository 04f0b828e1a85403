package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatflow/internal/status"
	"github.com/matheus3301/chatflow/internal/sync"
	"github.com/matheus3301/chatflow/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the profile, connection and conversation activity.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	now     func() time.Time
	profile string
	channel status.State
	snap    sync.Snapshot
	flash   *ui.FlashMessage
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	sb := &StatusBar{
		TextView: tv,
		theme:    theme,
		now:      time.Now,
		profile:  profile,
		channel:  status.Disconnected,
	}
	sb.render()
	return sb
}

// SetChannel updates the realtime channel state.
func (sb *StatusBar) SetChannel(s status.State) {
	sb.channel = s
	sb.render()
}

// SetSnapshot updates the conversation activity indicators.
func (sb *StatusBar) SetSnapshot(s sync.Snapshot) {
	sb.snap = s
	sb.render()
}

// SetFlash shows msg after the indicators; nil clears it.
func (sb *StatusBar) SetFlash(msg *ui.FlashMessage) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	parts := []string{
		fmt.Sprintf(" [::b]%s[-:-:-]", tview.Escape(sb.profile)),
		string(sb.channel),
		sb.modeText(),
	}
	if act := sb.activity(); act != "" {
		parts = append(parts, act)
	}
	parts = append(parts, sb.now().Format("15:04"))
	if f := sb.flash; f != nil {
		color := sb.theme.FlashInfoColor
		switch f.Level {
		case ui.FlashWarn:
			color = sb.theme.FlashWarnColor
		case ui.FlashErr:
			color = sb.theme.FlashErrColor
		}
		parts = append(parts, ui.ColorTag(color)+tview.Escape(f.Text)+"[-]")
	}
	_, _ = fmt.Fprint(sb, strings.Join(parts, " | "))
}

func (sb *StatusBar) modeText() string {
	if sb.snap.Mode == sync.ModeLive {
		return ui.ColorTag(sb.theme.LiveColor) + "● live[-]"
	}
	return ui.ColorTag(sb.theme.DegradedColor) + "○ polling[-]"
}

func (sb *StatusBar) activity() string {
	var act []string
	if sb.snap.Phase == status.Loading {
		act = append(act, "loading")
	}
	if sb.snap.Sending {
		act = append(act, "sending")
	}
	if sb.snap.Uploading {
		act = append(act, "uploading")
	}
	return strings.Join(act, ", ")
}
