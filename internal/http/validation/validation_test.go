package validation

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type slotReq struct {
	Color   string `binding:"omitempty,hexcolor6"`
	Weekday int    `binding:"weekday"`
	Start   string `binding:"required,hhmm"`
}

func TestCustomTags(t *testing.T) {
	Register()
	Register()

	cases := []struct {
		name string
		in   slotReq
		ok   bool
	}{
		{"valid", slotReq{Color: "#A1b2C3", Weekday: 6, Start: "08:30"}, true},
		{"empty color", slotReq{Weekday: 0, Start: "23:59"}, true},
		{"short color", slotReq{Color: "#abc", Weekday: 1, Start: "08:30"}, false},
		{"weekday 7", slotReq{Weekday: 7, Start: "08:30"}, false},
		{"bad clock", slotReq{Weekday: 1, Start: "24:00"}, false},
		{"no colon", slotReq{Weekday: 1, Start: "0830"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(tc.in)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v (%s)", err, Message(err))
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
