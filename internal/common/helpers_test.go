package common

import (
	"reflect"
	"testing"
)

func TestFormatPoints(t *testing.T) {
	for n, want := range map[int]string{0: "0 points", 1: "1 point", 2: "2 points"} {
		if got := FormatPoints(n); got != want {
			t.Errorf("FormatPoints(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatPointsRu(t *testing.T) {
	tests := map[int64]string{
		1:    "1 очко",
		3:    "3 очка",
		5:    "5 очков",
		11:   "11 очков",
		21:   "21 очко",
		112:  "112 очков",
		2350: "2 350 очков",
	}
	for n, want := range tests {
		if got := FormatPointsRu(n); got != want {
			t.Errorf("FormatPointsRu(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{0: "0", 999: "999", 1000: "1 000", 1234567: "1 234 567", -2350: "-2 350"}
	for n, want := range tests {
		if got := FormatNumber(n); got != want {
			t.Errorf("FormatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("привет мир", 6); got != "привет..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 50); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" a, ,b ,c")
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SplitCSV = %v, want %v", got, want)
	}
	if got := SplitCSV(""); len(got) != 0 {
		t.Errorf("SplitCSV(\"\") = %v", got)
	}
}

func TestParseInt64CSV(t *testing.T) {
	got, err := ParseInt64CSV("1, 22,333")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{1, 22, 333}; !reflect.DeepEqual(got, want) {
		t.Errorf("ParseInt64CSV = %v, want %v", got, want)
	}
	if _, err := ParseInt64CSV("1,x"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
