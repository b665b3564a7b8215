package outwriter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/clifelab/devpulse/core/rollup"
)

// FormatCell renders one report value as text. Nil pointers render as empty
// cells, not as zeros; a missing ratio and a zero ratio mean different
// things.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// truncateCell caps a cell at maxWidth runes, keeping the tail: the
// distinguishing part of repo paths and member keys is at the end.
func truncateCell(cell string, maxWidth int) string {
	runes := []rune(cell)
	if len(runes) > maxWidth {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return cell
}

// bandColors is parallel to rollup.BandLabels, best band first.
var bandColors = []*color.Color{
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgRed, color.Bold),
}

// colorCell colors the fixed score-band labels in table output. Other cells
// pass through unchanged.
func colorCell(column, cell string) string {
	if column != "band" {
		return cell
	}
	for i, label := range rollup.BandLabels {
		if cell == label && i < len(bandColors) {
			return bandColors[i].Sprint(cell)
		}
	}
	return cell
}
