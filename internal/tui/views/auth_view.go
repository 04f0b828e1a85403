package views

import (
	"fmt"

	"github.com/matheus3301/chatflow/internal/tui/ui"
	"github.com/rivo/tview"
)

// AuthMode selects the form shown by AuthView.
type AuthMode int

const (
	AuthLogin AuthMode = iota
	AuthRegister
	AuthVerify
)

// Form labels, also used to read the fields back.
const (
	labelName     = "Name"
	labelEmail    = "Email"
	labelPhone    = "Phone"
	labelPassword = "Password"
	labelConfirm  = "Confirm"
	labelAvatar   = "Avatar path"
	labelCode     = "Code"
)

// Registration is the raw registration form input.
type Registration struct {
	Name       string
	Email      string
	Phone      string
	Password   string
	Confirm    string
	AvatarPath string
}

// AuthHandlers receive form submissions.
type AuthHandlers struct {
	Login    func(email, password string)
	Register func(r Registration)
	Verify   func(email, code string)
}

// AuthView hosts the login, registration and code verification forms.
type AuthView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	mode     AuthMode
	email    string
	handlers AuthHandlers
}

// NewAuthView creates a new auth view showing the login form.
func NewAuthView(theme *ui.Theme, h AuthHandlers) *AuthView {
	form := tview.NewForm()
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetTitleColor(theme.TitleColor)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(message, 2, 0, false)

	av := &AuthView{
		Flex:     flex,
		theme:    theme,
		form:     form,
		message:  message,
		handlers: h,
	}
	av.ShowLogin("")
	return av
}

// Name implements ui.Component.
func (av *AuthView) Name() string { return "Auth" }

// Mode returns the form being shown.
func (av *AuthView) Mode() AuthMode { return av.mode }

// Form returns the active form (for focus management).
func (av *AuthView) Form() *tview.Form { return av.form }

// ShowLogin shows the login form, prefilled with email.
func (av *AuthView) ShowLogin(email string) {
	av.reset(AuthLogin, " Log in ")
	av.form.
		AddInputField(labelEmail, email, 40, nil, nil).
		AddPasswordField(labelPassword, "", 40, '*', nil).
		AddButton("Log in", func() {
			if av.handlers.Login != nil {
				av.handlers.Login(av.text(labelEmail), av.text(labelPassword))
			}
		}).
		AddButton("Create account", func() { av.ShowRegister() })
}

// ShowRegister shows the registration form.
func (av *AuthView) ShowRegister() {
	av.reset(AuthRegister, " Create account ")
	av.form.
		AddInputField(labelName, "", 40, nil, nil).
		AddInputField(labelEmail, "", 40, nil, nil).
		AddInputField(labelPhone, "", 14, tview.InputFieldInteger, nil).
		AddPasswordField(labelPassword, "", 40, '*', nil).
		AddPasswordField(labelConfirm, "", 40, '*', nil).
		AddInputField(labelAvatar, "", 40, nil, nil).
		AddButton("Register", func() {
			if av.handlers.Register != nil {
				av.handlers.Register(Registration{
					Name:       av.text(labelName),
					Email:      av.text(labelEmail),
					Phone:      av.text(labelPhone),
					Password:   av.text(labelPassword),
					Confirm:    av.text(labelConfirm),
					AvatarPath: av.text(labelAvatar),
				})
			}
		}).
		AddButton("Back to login", func() { av.ShowLogin("") })
}

// ShowVerify shows the code form for a pending registration.
func (av *AuthView) ShowVerify(email, note string) {
	av.reset(AuthVerify, " Verify email ")
	av.email = email
	av.form.
		AddTextView(labelEmail, email, 40, 1, false, false).
		AddInputField(labelCode, "", 8, tview.InputFieldInteger, nil).
		AddButton("Verify", func() {
			if av.handlers.Verify != nil {
				av.handlers.Verify(av.email, av.text(labelCode))
			}
		}).
		AddButton("Back to login", func() { av.ShowLogin(av.email) })
	if note != "" {
		av.Info(note)
	}
}

// Info shows a neutral status line under the form.
func (av *AuthView) Info(msg string) {
	av.setMessage(ui.ColorTag(av.theme.FlashInfoColor), msg)
}

// Error shows a failure under the form.
func (av *AuthView) Error(msg string) {
	av.setMessage(ui.ColorTag(av.theme.FlashErrColor), msg)
}

func (av *AuthView) setMessage(tag, msg string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "%s%s[-]", tag, tview.Escape(msg))
}

func (av *AuthView) reset(mode AuthMode, title string) {
	av.mode = mode
	av.form.Clear(true)
	av.form.SetTitle(title)
	av.message.Clear()
}

func (av *AuthView) text(label string) string {
	if f, ok := av.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return f.GetText()
	}
	return ""
}
