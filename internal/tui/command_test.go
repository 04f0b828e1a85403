package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"quit", Command{Name: CmdQuit}},
		{"  Q  ", Command{Name: CmdQuit}},
		{"open  Bob Smith ", Command{Name: CmdOpen, Args: "Bob Smith"}},
		{"s ada", Command{Name: CmdSearch, Args: "ada"}},
		{"logout", Command{Name: CmdLogout}},
		{"frobnicate x", Command{Name: "frobnicate", Args: "x"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseComposer(t *testing.T) {
	tests := []struct {
		in     string
		want   Command
		wantOK bool
	}{
		{"/image ~/cat.png", Command{Name: CmdImage, Args: "~/cat.png"}, true},
		{"/img a b.png", Command{Name: CmdImage, Args: "a b.png"}, true},
		{"hello /image", Command{}, false},
		{"//image is a command", Command{}, false},
		{"/", Command{}, false},
		{"/ spaced", Command{}, false},
		{"plain", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseComposer(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseComposer(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestUnescapeComposer(t *testing.T) {
	if got := UnescapeComposer("//image"); got != "/image" {
		t.Errorf("UnescapeComposer(//image) = %q", got)
	}
	if got := UnescapeComposer("hi"); got != "hi" {
		t.Errorf("UnescapeComposer(hi) = %q", got)
	}
}
