package export

import (
	"strconv"
	"strings"

	"github.com/zonemap/zonemap/pkg/types"
)

// ToDelimitedText renders one "time,price,unit" line per point joined by
// newlines, without a header. The boolean is false when there is nothing to
// export, in which case no file should be offered.
func ToDelimitedText(series []types.PricePoint) ([]byte, bool) {
	if len(series) == 0 {
		return nil, false
	}
	var b strings.Builder
	for i, p := range series {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Time)
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Price, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(p.Unit)
	}
	return []byte(b.String()), true
}

// FileName is the download name of an exported series.
func FileName(zone, date string) string {
	return zone + "_" + date + ".csv"
}
