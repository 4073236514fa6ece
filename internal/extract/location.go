package extract

import (
	"strconv"
	"strings"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

// ParseLocation splits a location spec into a path and a location.
// Accepted forms are file, file:line, file:start-end and file#symbol.
// A bare file resolves to line 1's enclosing block.
func ParseLocation(spec string) (string, document.Location, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", document.Location{}, cgerrors.ValidationError("empty location", nil)
	}

	if i := strings.LastIndex(spec, "#"); i > 0 {
		path, symbol := spec[:i], strings.TrimSpace(spec[i+1:])
		if symbol == "" {
			return "", document.Location{}, cgerrors.ValidationError("empty symbol in "+spec, nil)
		}
		return path, document.AtSymbol(symbol), nil
	}

	i := strings.LastIndex(spec, ":")
	if i <= 0 {
		return spec, document.AtLine(1), nil
	}
	path, lines := spec[:i], spec[i+1:]

	// C:\dir\file has no line suffix
	if lines == "" || !isLineSpec(lines) {
		return spec, document.AtLine(1), nil
	}

	if from, to, ok := strings.Cut(lines, "-"); ok {
		start, err1 := strconv.Atoi(from)
		end, err2 := strconv.Atoi(to)
		if err1 != nil || err2 != nil || start < 1 || end < start {
			return "", document.Location{}, cgerrors.ValidationError("invalid line range "+lines, nil).
				WithSuggestion("use file:start-end with 1 <= start <= end")
		}
		return path, document.Lines(start, end), nil
	}

	line, err := strconv.Atoi(lines)
	if err != nil || line < 1 {
		return "", document.Location{}, cgerrors.ValidationError("invalid line "+lines, nil)
	}
	return path, document.AtLine(line), nil
}

func isLineSpec(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}
