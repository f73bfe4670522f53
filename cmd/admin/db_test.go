package main

import "testing"

func TestParsePos(t *testing.T) {
	x, y, z, err := parsePos(" 3,4,1 ")
	if err != nil || x != 3 || y != 4 || z != 1 {
		t.Fatalf("parsePos: got %d,%d,%d,%v", x, y, z, err)
	}
	for _, bad := range []string{"", "1,2", "0,1,1", "a,b,c"} {
		if _, _, _, err := parsePos(bad); err == nil {
			t.Fatalf("parsePos(%q) accepted", bad)
		}
	}
}
