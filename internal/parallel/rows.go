package parallel

// Band is a half-open range of buffer rows [Start, End).
type Band struct {
	Start, End int
}

// Len returns the number of rows in the band.
func (b Band) Len() int {
	return b.End - b.Start
}

// SplitRows divides rows into at most parts contiguous bands of nearly equal
// height. Bands are never shorter than minRows unless rows itself is; the
// union of the bands is exactly [0, rows).
func SplitRows(rows, parts, minRows int) []Band {
	if rows <= 0 {
		return nil
	}
	if minRows < 1 {
		minRows = 1
	}
	if parts < 1 {
		parts = 1
	}
	if maxParts := rows / minRows; parts > maxParts {
		parts = max(maxParts, 1)
	}

	bands := make([]Band, 0, parts)
	base, extra := rows/parts, rows%parts
	start := 0
	for i := range parts {
		h := base
		if i < extra {
			h++
		}
		bands = append(bands, Band{Start: start, End: start + h})
		start += h
	}
	return bands
}
