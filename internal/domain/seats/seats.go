// Package seats maps a boat class to the seat slots a crew of that class
// occupies.
package seats

import (
	"strconv"
	"strings"

	"github.com/okian/oarbit/internal/domain/model"
)

// FallbackClass is used for boat classes that are not recognised.
const FallbackClass = "4+"

// Slot is one seat position in a boat.
type Slot struct {
	SeatNumber int        `json:"seatNumber"`
	Side       model.Side `json:"side"`
	Label      string     `json:"label"`
}

// Config is the seat layout for a boat class.
type Config struct {
	BoatClass string `json:"boatClass"`
	Rowers    int    `json:"rowers"`
	HasCox    bool   `json:"hasCox"`
	Sculling  bool   `json:"sculling"`
	// Fallback is set when BoatClass was not recognised and the layout is
	// the FallbackClass default. Callers should surface a warning.
	Fallback bool   `json:"fallback"`
	Slots    []Slot `json:"slots"`
}

// SeatCount is the number of slots, cox included.
func (c Config) SeatCount() int { return len(c.Slots) }

// Slot returns the slot for a seat number.
func (c Config) Slot(seat int) (Slot, bool) {
	if seat < 1 || seat > len(c.Slots) {
		return Slot{}, false
	}
	return c.Slots[seat-1], true
}

// CoxSeat returns the cox seat number, or 0 when the class has no cox.
func (c Config) CoxSeat() int {
	if !c.HasCox {
		return 0
	}
	return c.Rowers + 1
}

// Supported lists the recognised boat classes, largest first.
func Supported() []string {
	return []string{"8+", "4+", "4x+", "4-", "4x", "2+", "2-", "2x", "1x"}
}

// ForClass returns the seat layout for class. Unknown classes get the
// FallbackClass layout with Fallback set.
func ForClass(class string) Config {
	class = strings.TrimSpace(class)
	rowers, hasCox, sculling, ok := parse(class)
	if !ok {
		cfg := ForClass(FallbackClass)
		cfg.BoatClass = class
		cfg.Fallback = true
		return cfg
	}

	cfg := Config{
		BoatClass: class,
		Rowers:    rowers,
		HasCox:    hasCox,
		Sculling:  sculling,
		Slots:     make([]Slot, 0, rowers+1),
	}
	for n := 1; n <= rowers; n++ {
		cfg.Slots = append(cfg.Slots, Slot{SeatNumber: n, Side: sideFor(n), Label: labelFor(n, rowers)})
	}
	if hasCox {
		cfg.Slots = append(cfg.Slots, Slot{SeatNumber: rowers + 1, Side: model.SideCox, Label: "Cox"})
	}
	return cfg
}

// parse reads "<rowers>[x][+|-]". Only the supported classes are accepted.
func parse(class string) (rowers int, hasCox, sculling, ok bool) {
	switch class {
	case "8+", "4+", "4x+", "4-", "4x", "2+", "2-", "2x", "1x":
	default:
		return 0, false, false, false
	}
	hasCox = strings.HasSuffix(class, "+")
	sculling = strings.Contains(class, "x")
	n, err := strconv.Atoi(class[:1])
	if err != nil {
		return 0, false, false, false
	}
	return n, hasCox, sculling, true
}

func sideFor(seat int) model.Side {
	if seat%2 == 0 {
		return model.SidePort
	}
	return model.SideStarboard
}

func labelFor(seat, rowers int) string {
	switch seat {
	case 1:
		return "Bow"
	case rowers:
		return "Stroke"
	}
	return "Seat " + strconv.Itoa(seat)
}
