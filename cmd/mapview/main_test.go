package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestGlyph(t *testing.T) {
	cases := []struct {
		typ  string
		want rune
		fg   tcell.Color
	}{
		{"", ' ', tcell.ColorDefault},
		{"/turf/floor", '.', tcell.ColorGreen},
		{"/mob/test", 't', tcell.ColorRed},
		{"/obj/item/weapon", 'w', tcell.ColorBlue},
		{"/datum/thing", 't', tcell.ColorDefault},
	}
	for _, c := range cases {
		ch, style := glyph(c.typ)
		fg, _, _ := style.Decompose()
		if ch != c.want || fg != c.fg {
			t.Fatalf("glyph(%q): got %q %v want %q %v", c.typ, ch, fg, c.want, c.fg)
		}
	}
}

func TestOffer_KeepsNewest(t *testing.T) {
	ch := make(chan int, 1)
	offer(ch, 1)
	offer(ch, 2)
	if got := <-ch; got != 2 {
		t.Fatalf("offer: got %d want 2", got)
	}
}
