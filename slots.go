/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "fmt"

const (
	firstSlotYear  = 2024
	lastSlotYear   = 2026
	boundaryMonth  = 1 // February, zero-based
	defaultSlotIdx = 12
)

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthSlot is one selectable position on the guessing timeline.
type MonthSlot struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

func (s MonthSlot) String() string {
	return s.Month + " " + s.Year
}

// slots covers February 2024 through February 2026 inclusive.
var slots = generateMonthSlots()

func generateMonthSlots() []MonthSlot {
	out := make([]MonthSlot, 0, 25)

	for y := firstSlotYear; y <= lastSlotYear; y++ {
		start, end := 0, 11
		if y == firstSlotYear {
			start = boundaryMonth
		}
		if y == lastSlotYear {
			end = boundaryMonth
		}

		for m := start; m <= end; m++ {
			out = append(out, MonthSlot{Month: monthNames[m], Year: fmt.Sprint(y)})
		}
	}

	return out
}

func validSlot(i int) bool {
	return i >= 0 && i < len(slots)
}

// slotIndex returns the timeline position of month/year, or -1.
func slotIndex(month, year string) int {
	for i, s := range slots {
		if s.Month == month && s.Year == year {
			return i
		}
	}
	return -1
}
