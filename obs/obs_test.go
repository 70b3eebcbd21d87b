package obs

import (
	"strings"
	"testing"
)

func TestLoadSensorsParsesAndGroupsBySubdomain(t *testing.T) {
	in := "# comment\n0 0 1 2\n0 0 3 4\n1 0 5 5\n\n"
	got, err := LoadSensors(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadSensors: %v", err)
	}
	if len(got[SubIndex{0, 0}]) != 2 {
		t.Fatalf("expected 2 sensors for subdomain (0,0), got %d", len(got[SubIndex{0, 0}]))
	}
	if len(got[SubIndex{1, 0}]) != 1 {
		t.Fatalf("expected 1 sensor for subdomain (1,0), got %d", len(got[SubIndex{1, 0}]))
	}
	want := Point{X: 1, Y: 2}
	if got[SubIndex{0, 0}][0] != want {
		t.Fatalf("got %+v, want %+v", got[SubIndex{0, 0}][0], want)
	}
}

func TestLoadSensorsRejectsMalformedLine(t *testing.T) {
	if _, err := LoadSensors(strings.NewReader("0 0 1\n")); err == nil {
		t.Fatalf("expected error for short line")
	}
}

func TestLoadMeasurementsReadsRowMajorTable(t *testing.T) {
	in := "1 2\n3 4\n5 6\n"
	m, err := LoadMeasurements(strings.NewReader(in), 3, 2)
	if err != nil {
		t.Fatalf("LoadMeasurements: %v", err)
	}
	if m.At(1, 0) != 3 || m.At(1, 1) != 4 {
		t.Fatalf("row 1 mismatch: got %v %v", m.At(1, 0), m.At(1, 1))
	}
}

func TestLoadMeasurementsRejectsTruncatedTable(t *testing.T) {
	if _, err := LoadMeasurements(strings.NewReader("1 2\n3"), 2, 2); err == nil {
		t.Fatalf("expected error for truncated table")
	}
}

func TestBuildHPlacesSingleOneAtExtendedIndex(t *testing.T) {
	sensors := []Point{{X: 0, Y: 0}, {X: 2, Y: 1}}
	sx, sy := 3, 3
	h := BuildH(sensors, sx, sy)

	if h.Rows != 2 || h.Cols != (sx+2)*(sy+2) {
		t.Fatalf("unexpected H shape: %dx%d", h.Rows, h.Cols)
	}
	for k, p := range sensors {
		wantCol := (p.X+1)*(sy+2) + (p.Y + 1)
		var ones int
		for j := 0; j < h.Cols; j++ {
			v := h.At(k, j)
			if v != 0 {
				ones++
				if j != wantCol || v != 1 {
					t.Fatalf("row %d: unexpected nonzero at col %d = %v", k, j, v)
				}
			}
		}
		if ones != 1 {
			t.Fatalf("row %d: expected exactly one nonzero entry, got %d", k, ones)
		}
	}
}
