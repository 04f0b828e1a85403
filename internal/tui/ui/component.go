package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu.
type MenuHint struct {
	Key         string
	Description string
}

// Component is a named page of the TUI.
type Component interface {
	tview.Primitive
	Name() string
}
