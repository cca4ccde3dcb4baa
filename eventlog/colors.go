package eventlog

import (
	"strings"

	"github.com/fatih/color"

	"github.com/signadot/nodegraph/event"
)

type Colorable struct {
	Type event.Type
	Attr ColorAttr
}

type ColorAttr int

const (
	SourceColor ColorAttr = iota
	TypeColor
	KeyColor
	ValueColor
)

type Colors struct {
	Default func(string, ...any) string
	Map     map[Colorable]func(string, ...any) string
}

func NewColors() *Colors {
	colors := &Colors{
		Default: colorDefault,
		Map:     map[Colorable]func(string, ...any) string{},
	}
	for _, t := range event.Types() {
		able := Colorable{Type: t, Attr: SourceColor}
		colors.Map[able] = color.RGB(128, 168, 196).SprintfFunc()
		able.Attr = KeyColor
		colors.Map[able] = color.RGB(196, 96, 16).SprintfFunc()
		able.Attr = ValueColor
		colors.Map[able] = color.RGB(8, 196, 16).SprintfFunc()
		able.Attr = TypeColor
		switch {
		case t.IsLifecycle():
			colors.Map[able] = color.RGB(96, 96, 96).SprintfFunc()
		case t == event.Modified:
			colors.Map[able] = color.RGB(198, 198, 46).SprintfFunc()
		case t == event.Unmodified:
			colors.Map[able] = color.CyanString
		case t == event.Added || t == event.ChildAdded:
			colors.Map[able] = color.GreenString
		case t == event.Removed || t == event.ChildRemoved:
			colors.Map[able] = color.RedString
		default:
			colors.Map[able] = color.RGB(255, 0, 196).SprintfFunc()
		}
	}
	colors.Map[Colorable{Type: event.CommitFailure, Attr: TypeColor}] = color.New(color.FgRed, color.Bold).SprintfFunc()
	for k, f := range colors.Map {
		colors.Map[k] = func(v string, _ ...any) string {
			return f(strings.ReplaceAll(v, "%", "%%"))
		}
	}
	return colors
}

func colorDefault(v string, _ ...any) string { return v }

func (c *Colors) Color(t event.Type, a ColorAttr, s string) string {
	return c.Get(t, a)(s)
}

func (c *Colors) Get(t event.Type, a ColorAttr) func(string, ...any) string {
	if c == nil {
		return colorDefault
	}
	f := c.Map[Colorable{Type: t, Attr: a}]
	if f == nil {
		return c.Default
	}
	return f
}
