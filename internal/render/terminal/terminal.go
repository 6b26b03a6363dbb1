// Package terminal renders a Console's framebuffer to the terminal using
// tcell, mapping each pair of vertically-stacked pixels onto a single
// half-block character so a 160x144 frame fits in 160 columns by 72 rows.
package terminal

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/embermoth/dmgcore/internal/video"
)

// shadeColors maps a 2-bit DMG shade to the terminal color used to
// represent it, lightest to darkest matching the real panel's palette.
var shadeColors = []tcell.Color{
	tcell.ColorWhite,
	tcell.ColorSilver,
	tcell.ColorGray,
	tcell.ColorBlack,
}

// Key identifies one of the eight DMG buttons, used by callers wiring a
// tcell key event to Console.SetInput.
type Key int

const (
	KeyRight Key = iota
	KeyLeft
	KeyUp
	KeyDown
	KeyA
	KeyB
	KeySelect
	KeyStart
)

// DefaultKeyMapping is the terminal backend's built-in control scheme for
// special keys: arrow keys for the d-pad, Enter for Start. Letter keys are
// mapped separately: Z/X for B/A, A/S for Select/Start.
var DefaultKeyMapping = map[tcell.Key]Key{
	tcell.KeyRight: KeyRight,
	tcell.KeyLeft:  KeyLeft,
	tcell.KeyUp:    KeyUp,
	tcell.KeyDown:  KeyDown,
	tcell.KeyEnter: KeyStart,
}

var defaultRuneMapping = map[rune]Key{
	'z': KeyB,
	'x': KeyA,
	'a': KeySelect,
	's': KeyStart,
}

// View owns a tcell screen and renders successive DMG frames to it.
type View struct {
	screen tcell.Screen
	keys   [8]bool // indexed by Key
	quit   bool
}

// New initializes a tcell screen for DMG frame rendering.
func New() (*View, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal: failed to initialize screen: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	return &View{screen: screen}, nil
}

// Close tears down the terminal screen.
func (v *View) Close() {
	if v.screen != nil {
		v.screen.Fini()
	}
}

// Quit reports whether the user has requested the program exit (Ctrl+C or
// Escape).
func (v *View) Quit() bool { return v.quit }

// PollInput drains pending tcell events, updating the tracked key states
// and returning joypad button/d-pad masks in Console.SetInput's format
// (bit set = pressed): button mask in the low nibble as A,B,Select,Start
// and d-pad mask as Right,Left,Up,Down.
func (v *View) PollInput() (buttons, dpad uint8) {
	for v.screen.HasPendingEvent() {
		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventKey:
			v.processKey(ev)
		case *tcell.EventResize:
			v.screen.Sync()
		}
	}

	if v.keys[KeyA] {
		buttons |= 1 << 0
	}
	if v.keys[KeyB] {
		buttons |= 1 << 1
	}
	if v.keys[KeySelect] {
		buttons |= 1 << 2
	}
	if v.keys[KeyStart] {
		buttons |= 1 << 3
	}
	if v.keys[KeyRight] {
		dpad |= 1 << 0
	}
	if v.keys[KeyLeft] {
		dpad |= 1 << 1
	}
	if v.keys[KeyUp] {
		dpad |= 1 << 2
	}
	if v.keys[KeyDown] {
		dpad |= 1 << 3
	}
	return buttons, dpad
}

func (v *View) processKey(ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape {
		v.quit = true
		return
	}

	if k, ok := DefaultKeyMapping[ev.Key()]; ok {
		v.keys[k] = true
		return
	}
	if ev.Key() == tcell.KeyRune {
		if k, ok := defaultRuneMapping[ev.Rune()]; ok {
			v.keys[k] = true
		}
	}
}

// Render draws one framebuffer to the terminal. Because tcell only
// delivers key-down events, every held key is cleared after each render
// and must be re-pressed by the next PollInput to stay active; a host
// driving this at 60Hz with OS key-repeat sees this as continuous input.
func (v *View) Render(fb *video.Framebuffer) {
	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			top := fb[y*video.FramebufferWidth+x]
			bottom := video.Shade(3)
			if y+1 < video.FramebufferHeight {
				bottom = fb[(y+1)*video.FramebufferWidth+x]
			}
			style := tcell.StyleDefault.Foreground(shadeColors[top]).Background(shadeColors[bottom])
			v.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
	v.screen.Show()

	for i := range v.keys {
		v.keys[i] = false
	}
}
