package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the colors shared by every view.
type Theme struct {
	BgColor     tcell.Color
	FgColor     tcell.Color
	BorderColor tcell.Color
	TitleColor  tcell.Color

	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color

	CrumbActiveFg   tcell.Color
	CrumbActiveBg   tcell.Color
	CrumbInactiveFg tcell.Color
	CrumbInactiveBg tcell.Color

	MenuKeyColor      tcell.Color
	CounterColor      tcell.Color
	PromptBorderColor tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	// Message thread.
	SelfColor      tcell.Color
	PeerColor      tcell.Color
	PendingColor   tcell.Color
	TimestampColor tcell.Color

	// Presence and channel indicators.
	LiveColor     tcell.Color
	DegradedColor tcell.Color
	OnlineColor   tcell.Color
}

// DefaultTheme returns the dark teal theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:     tcell.ColorBlack,
		FgColor:     tcell.ColorLightGray,
		BorderColor: tcell.ColorTeal,
		TitleColor:  tcell.ColorMediumTurquoise,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorMediumTurquoise,

		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   tcell.ColorGold,
		CrumbInactiveFg: tcell.ColorBlack,
		CrumbInactiveBg: tcell.ColorTeal,

		MenuKeyColor:      tcell.ColorMediumTurquoise,
		CounterColor:      tcell.ColorGold,
		PromptBorderColor: tcell.ColorGold,

		FlashInfoColor: tcell.ColorLightCyan,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,

		SelfColor:      tcell.ColorMediumSpringGreen,
		PeerColor:      tcell.ColorLightSkyBlue,
		PendingColor:   tcell.ColorGray,
		TimestampColor: tcell.ColorSlateGray,

		LiveColor:     tcell.ColorLimeGreen,
		DegradedColor: tcell.ColorOrange,
		OnlineColor:   tcell.ColorLimeGreen,
	}
}
