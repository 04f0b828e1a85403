// Package tui is the terminal front end: it renders engine snapshots and
// turns key presses into view model calls.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatflow/internal/auth"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/chat"
	"github.com/matheus3301/chatflow/internal/directory"
	"github.com/matheus3301/chatflow/internal/status"
	intsync "github.com/matheus3301/chatflow/internal/sync"
	"github.com/matheus3301/chatflow/internal/tui/keys"
	"github.com/matheus3301/chatflow/internal/tui/model"
	"github.com/matheus3301/chatflow/internal/tui/ui"
	"github.com/matheus3301/chatflow/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	headerHeight = 7
	promptHeight = 3
	opTimeout    = 30 * time.Second
)

// Options configures the front end.
type Options struct {
	Profile       string
	Notifications bool
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	root     *tview.Flex
	pages    *ui.Pages
	theme    *ui.Theme
	flash    *ui.FlashModel
	registry *keys.Registry
	vm       *model.ViewModel
	logger   *zap.Logger
	opts     Options

	userInfo  *ui.UserInfo
	menu      *ui.Menu
	crumbs    *ui.Crumbs
	prompt    *ui.Prompt
	statusBar *views.StatusBar
	contacts  *views.ContactList
	thread    *views.MessageThread
	info      *views.ContactInfo
	help      *views.HelpView
	authView  *views.AuthView

	promptOn bool
	channel  status.State
	peerID   string

	events <-chan bus.Event
	unsub  func()
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the TUI application. It subscribes to b at once so events
// raised while the services start are not missed.
func New(vm *model.ViewModel, b *bus.Bus, opts Options, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	events, unsub := b.Subscribe("", 256)

	a := &App{
		app:       tview.NewApplication(),
		pages:     ui.NewPages(),
		theme:     theme,
		flash:     ui.NewFlashModel(),
		registry:  keys.NewRegistry(),
		vm:        vm,
		logger:    logger,
		opts:      opts,
		userInfo:  ui.NewUserInfo(theme),
		menu:      ui.NewMenu(theme),
		crumbs:    ui.NewCrumbs(theme),
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(theme, opts.Profile),
		contacts:  views.NewContactList(theme),
		thread:    views.NewMessageThread(theme),
		info:      views.NewContactInfo(theme),
		help:      views.NewHelpView(theme),
		channel:   status.Disconnected,
		events:    events,
		unsub:     unsub,
		ctx:       ctx,
		cancel:    cancel,
	}
	a.authView = views.NewAuthView(theme, views.AuthHandlers{
		Login:    a.login,
		Register: a.register,
		Verify:   a.verify,
	})

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	r := a.registry
	contacts, thread := a.contacts.Name(), a.thread.Name()

	r.AddView(contacts, &keys.Action{Key: tcell.KeyEnter, Description: "Open", Handler: a.openSelected})
	r.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: '/', Description: "Search", Handler: a.showFilter})
	r.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Description: "Refresh", Handler: a.refreshContacts})
	r.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Label: "1-9", Description: "Jump", Handler: func() {}})
	for d := '1'; d <= '9'; d++ {
		n := int(d - '0')
		r.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: d, Hidden: true, Handler: func() { a.openIndex(n) }})
	}
	r.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: a.Stop})

	r.AddView(thread, &keys.Action{Key: tcell.KeyRune, Rune: 'i', Description: "Compose", Handler: a.focusComposer})
	r.AddView(thread, &keys.Action{Key: tcell.KeyRune, Rune: 'k', Description: "Older", Handler: func() { a.thread.SelectNext(-1) }})
	r.AddView(thread, &keys.Action{Key: tcell.KeyRune, Rune: 'j', Description: "Newer", Handler: func() { a.thread.SelectNext(1) }})
	r.AddView(thread, &keys.Action{Key: tcell.KeyRune, Rune: 'x', Description: "Delete", Handler: a.deleteSelected})
	r.AddView(thread, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Description: "Details", Handler: a.showInfo})
	r.AddView(thread, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Description: "Reload", Handler: a.retry})

	r.AddGlobal(&keys.Action{Key: tcell.KeyEscape, Description: "Back", Handler: a.back})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Description: "Command", Handler: a.showCommand})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Description: "Help", Handler: a.showHelp})
}

func (a *App) setupCallbacks() {
	a.contacts.SetSelectedFunc(func(row, _ int) {
		if c, ok := a.contacts.ContactByIndex(row); ok {
			a.open(c)
		}
	})

	a.thread.SetOnDraft(a.vm.SetDraft)
	a.thread.SetOnSend(a.submit)

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.contacts.SetFilter(text)
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand {
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func(mode ui.PromptMode) {
		if mode == ui.PromptFilter {
			a.contacts.SetFilter("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
		a.focusPage()
	})
}

func (a *App) setupLayout() {
	for _, c := range []ui.Component{a.contacts, a.thread, a.info, a.help, a.authView} {
		a.pages.Add(c)
	}

	header := tview.NewFlex().
		AddItem(a.userInfo, 0, 1, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.capture)
}

func (a *App) capture(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}
	if a.promptOn || a.pages.Current() == a.authView.Name() {
		return ev
	}
	if a.app.GetFocus() == a.thread.Composer() {
		if ev.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		return ev
	}
	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

// Run starts the event loop and blocks until the UI exits.
func (a *App) Run() error {
	if self := a.vm.Self(); self != nil {
		a.showMain()
	} else {
		a.showAuth("")
	}
	a.renderStatus()

	go a.loop()
	return a.app.Run()
}

// Stop shuts the UI down. Safe to call more than once.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) loop() {
	defer a.unsub()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case evt := <-a.events:
			a.app.QueueUpdateDraw(func() { a.handle(evt) })
		case <-a.flash.Watch():
			a.app.QueueUpdateDraw(a.renderStatus)
		case <-tick.C:
			a.app.QueueUpdateDraw(a.renderStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

// handle applies a bus event to the views. Runs on the UI goroutine.
func (a *App) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.ConversationUpdated:
		s, ok := evt.Payload.(intsync.Snapshot)
		if !ok {
			return
		}
		a.thread.Update(s, a.vm.SelfID())
		a.statusBar.SetSnapshot(s)
		if s.Peer != nil && s.Peer.ID != a.peerID {
			a.peerID = s.Peer.ID
			a.contacts.SetActive(a.peerID)
		}
	case bus.ConversationNotice:
		if n, ok := evt.Payload.(intsync.Notice); ok {
			s := a.vm.Snapshot()
			a.flash.Problem(s.Notice, n.Err)
			a.thread.RestoreDraft(s.Draft)
		}
	case bus.TransportStateChanged:
		if c, ok := evt.Payload.(status.Change); ok {
			a.channel = c.To
			a.statusBar.SetChannel(c.To)
			a.renderUser()
		}
	case bus.TransportReconnectFailed:
		a.flash.Warn("Realtime connection lost. Falling back to polling.")
	case bus.TransportMessage:
		if m, ok := evt.Payload.(chat.Message); ok {
			a.incoming(m)
		}
	case bus.ContactsUpdated:
		if cs, ok := evt.Payload.([]chat.Contact); ok {
			a.contacts.Update(cs)
			a.renderUser()
		}
	case bus.SessionStarted:
		a.showMain()
	case bus.SessionExpired:
		a.flash.Warn("Your session has expired. Please log in again.")
	case bus.SessionEnded:
		a.peerID = ""
		a.contacts.Update(nil)
		a.contacts.SetActive("")
		a.showAuth("")
	}
}

// incoming bumps the sender's row for messages outside the open conversation.
func (a *App) incoming(m chat.Message) {
	self := a.vm.SelfID()
	if m.SenderID == self || m.SenderID == a.peerID || m.ReceiverID != self {
		return
	}
	a.contacts.Bump(m)
	if a.opts.Notifications {
		name := m.SenderID
		if c, ok := a.contacts.ContactByID(m.SenderID); ok {
			name = c.Name
		}
		a.flash.Info("New message from " + name)
	}
}

func (a *App) showMain() {
	a.renderUser()
	if a.pages.Current() != a.contacts.Name() {
		a.pages.Reset(a.contacts.Name())
	}
	a.refreshContacts()
}

func (a *App) showAuth(email string) {
	a.renderUser()
	a.authView.ShowLogin(email)
	a.pages.Reset(a.authView.Name())
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case a.contacts.Name():
		a.app.SetFocus(a.contacts)
	case a.thread.Name():
		a.app.SetFocus(a.thread.Messages())
	case a.info.Name():
		a.app.SetFocus(a.info)
	case a.help.Name():
		a.app.SetFocus(a.help)
	case a.authView.Name():
		a.app.SetFocus(a.authView.Form())
	}
}

func (a *App) renderUser() {
	a.userInfo.Update(ui.UserData{
		Profile:  a.opts.Profile,
		User:     a.vm.Self(),
		Contacts: len(a.vm.Contacts()),
		Channel:  a.channel,
	})
}

func (a *App) renderStatus() {
	a.statusBar.SetFlash(a.flash.Current())
}

// async runs fn off the UI goroutine and flashes its error.
func (a *App) async(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.logger.Debug("ui action failed", zap.String("op", op), zap.Error(err))
			a.flash.Problem(model.Describe(err), err)
		}
	}()
}

func (a *App) refreshContacts() {
	a.async("load contacts", func(ctx context.Context) error {
		_, err := a.vm.LoadContacts(ctx)
		return err
	})
}

func (a *App) openSelected() {
	if c, ok := a.contacts.SelectedContact(); ok {
		a.open(c)
	}
}

func (a *App) openIndex(n int) {
	if c, ok := a.contacts.ContactByIndex(n); ok {
		a.open(c)
	}
}

func (a *App) open(c chat.Contact) {
	a.contacts.ClearUnread(c.ID)
	a.thread.ClearSelection()
	a.pages.Push(a.thread.Name())
	a.async("open conversation", func(ctx context.Context) error {
		return a.vm.Open(ctx, c)
	})
}

func (a *App) retry() {
	a.async("reload conversation", a.vm.Retry)
}

func (a *App) submit(text string) {
	cmd, isCmd := ParseComposer(text)
	if isCmd && cmd.Name != CmdImage {
		a.flash.Warn(fmt.Sprintf("Unknown command /%s. Try /image <path>.", cmd.Name))
		return
	}
	a.thread.Composer().SetText("")
	a.async("send", func(ctx context.Context) error {
		var err error
		if isCmd {
			err = a.vm.SendImageFile(ctx, cmd.Args)
		} else {
			err = a.vm.SendText(ctx, UnescapeComposer(text))
		}
		if err != nil {
			a.app.QueueUpdateDraw(func() { a.thread.RestoreDraft(text) })
		}
		return err
	})
}

func (a *App) deleteSelected() {
	m, ok := a.thread.Selected()
	if !ok {
		a.flash.Info("Select a message with j/k first.")
		return
	}
	a.async("delete message", func(ctx context.Context) error {
		if err := a.vm.Delete(ctx, m.ID); err != nil {
			return err
		}
		a.flash.Info("Message deleted")
		return nil
	})
}

func (a *App) focusComposer() {
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) showInfo() {
	s := a.vm.Snapshot()
	if s.Peer == nil {
		return
	}
	a.info.Update(*s.Peer, time.Now())
	a.pages.Push(a.info.Name())
}

func (a *App) showHelp() {
	sections := make([]views.HelpSection, 0, 3)
	for _, page := range []string{a.contacts.Name(), a.thread.Name()} {
		sections = append(sections, views.HelpSection{Title: page, Hints: a.registry.Hints(page)})
	}
	sections = append(sections, views.HelpSection{Title: "Commands", Hints: []ui.MenuHint{
		{Key: ":open <name>", Description: "Open a conversation"},
		{Key: ":search <text>", Description: "Filter contacts"},
		{Key: ":refresh", Description: "Reload contacts"},
		{Key: ":logout", Description: "Log out"},
		{Key: ":quit", Description: "Quit"},
		{Key: "/image <path>", Description: "Send an image (in the composer)"},
	}})
	a.help.Update(sections)
	a.pages.Push(a.help.Name())
}

func (a *App) back() {
	if a.pages.Current() == a.contacts.Name() && a.contacts.Filter() != "" {
		a.contacts.SetFilter("")
		return
	}
	a.pages.Pop()
}

func (a *App) showCommand() {
	a.showPrompt(ui.PromptCommand, "")
}

func (a *App) showFilter() {
	a.showPrompt(ui.PromptFilter, a.contacts.Filter())
}

func (a *App) showPrompt(mode ui.PromptMode, text string) {
	a.promptOn = true
	a.prompt.Activate(mode, text)
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptOn = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "":
	case CmdQuit:
		a.Stop()
	case CmdHelp:
		a.showHelp()
	case CmdRefresh:
		a.refreshContacts()
	case CmdSearch:
		a.pages.Reset(a.contacts.Name())
		a.contacts.SetFilter(cmd.Args)
	case CmdOpen:
		matches := directory.Filter(a.vm.Contacts(), cmd.Args)
		if cmd.Args == "" || len(matches) == 0 {
			a.flash.Warn(fmt.Sprintf("No contact matches %q.", cmd.Args))
			return
		}
		a.pages.Reset(a.contacts.Name())
		a.open(matches[0])
	case CmdLogout:
		a.async("logout", func(context.Context) error { return a.vm.Logout() })
	default:
		a.flash.Warn(fmt.Sprintf("Unknown command %q.", cmd.Name))
	}
}

func (a *App) login(email, password string) {
	a.authView.Info("Logging in…")
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		if _, err := a.vm.Login(ctx, email, password); err != nil {
			a.app.QueueUpdateDraw(func() { a.authView.Error(model.Describe(err)) })
		}
	}()
}

func (a *App) register(r views.Registration) {
	a.authView.Info("Creating account…")
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		pending, err := a.vm.Register(ctx, auth.RegisterForm{
			Name:     r.Name,
			Email:    r.Email,
			Phone:    r.Phone,
			Password: r.Password,
			Confirm:  r.Confirm,
		}, r.AvatarPath)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.authView.Error(model.Describe(err))
				return
			}
			note := pending.Message
			if note == "" {
				note = "We sent a 6-digit code to " + pending.Email
			}
			a.authView.ShowVerify(pending.Email, note)
			a.app.SetFocus(a.authView.Form())
		})
	}()
}

func (a *App) verify(email, code string) {
	a.authView.Info("Verifying…")
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		sess, err := a.vm.Verify(ctx, email, strings.TrimSpace(code))
		a.app.QueueUpdateDraw(func() {
			switch {
			case err != nil:
				a.authView.Error(model.Describe(err))
			case sess == nil:
				a.authView.ShowLogin(email)
				a.authView.Info("Email verified. Log in to continue.")
				a.app.SetFocus(a.authView.Form())
			}
		})
	}()
}
