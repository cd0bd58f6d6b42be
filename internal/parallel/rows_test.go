package parallel

import "testing"

func TestSplitRows(t *testing.T) {
	tests := []struct {
		name                 string
		rows, parts, minRows int
		wantBands            int
	}{
		{"even split", 128, 4, 16, 4},
		{"uneven split", 130, 4, 16, 4},
		{"min rows limits parts", 64, 8, 16, 4},
		{"fewer rows than min", 10, 4, 16, 1},
		{"single part", 128, 1, 16, 1},
		{"zero parts", 128, 0, 16, 1},
		{"zero min rows", 8, 4, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands := SplitRows(tt.rows, tt.parts, tt.minRows)
			if len(bands) != tt.wantBands {
				t.Fatalf("SplitRows(%d, %d, %d) returned %d bands, want %d",
					tt.rows, tt.parts, tt.minRows, len(bands), tt.wantBands)
			}

			next := 0
			for i, b := range bands {
				if b.Start != next {
					t.Errorf("band %d starts at %d, want %d", i, b.Start, next)
				}
				if b.Len() <= 0 {
					t.Errorf("band %d is empty: %+v", i, b)
				}
				next = b.End
			}
			if next != tt.rows {
				t.Errorf("bands cover [0, %d), want [0, %d)", next, tt.rows)
			}
		})
	}
}

func TestSplitRowsBalanced(t *testing.T) {
	bands := SplitRows(130, 4, 1)
	minLen, maxLen := bands[0].Len(), bands[0].Len()
	for _, b := range bands[1:] {
		minLen = min(minLen, b.Len())
		maxLen = max(maxLen, b.Len())
	}
	if maxLen-minLen > 1 {
		t.Errorf("band heights range %d..%d, want difference <= 1", minLen, maxLen)
	}
}

func TestSplitRowsEmpty(t *testing.T) {
	if bands := SplitRows(0, 4, 1); bands != nil {
		t.Errorf("SplitRows(0, ...) = %v, want nil", bands)
	}
}
