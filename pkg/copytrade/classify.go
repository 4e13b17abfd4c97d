package copytrade

import (
	"math"
	"strconv"
	"strings"
)

// Classify maps a fill to open, reduce or close. Opens are never partial;
// a close tag only counts as a close when the fill unwinds the whole
// pre-fill position.
func Classify(fill FillEvent) Action {
	switch fill.Dir {
	case DirOpenLong, DirOpenShort:
		return ActionOpen
	case DirCloseLong, DirCloseShort:
		start, errStart := parseFloat(fill.StartPosition)
		size, errSize := parseFloat(fill.Sz)
		if errStart == nil && errSize == nil && math.Abs(start) <= size {
			return ActionClose
		}
	}
	return ActionReduce
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
