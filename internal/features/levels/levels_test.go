package levels

import (
	"errors"
	"testing"

	"serotonyl.ru/points-bot/internal/common"
)

var table = []Level{
	{Name: "Helper", Threshold: 5},
	{Name: "Trusted", Threshold: 15},
	{Name: "Expert", Threshold: 40},
}

func names(ls []Level) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Name)
	}
	return out
}

func name(l *Level) string {
	if l == nil {
		return "<nil>"
	}
	return l.Name
}

func TestResolve(t *testing.T) {
	tests := []struct {
		points   int
		previous []string
		current  string
		next     string
	}{
		{0, nil, "<nil>", "Helper"},
		{1, nil, "<nil>", "Helper"},
		{4, nil, "<nil>", "Helper"},
		{5, nil, "Helper", "Trusted"},
		{14, nil, "Helper", "Trusted"},
		{15, []string{"Helper"}, "Trusted", "Expert"},
		{40, []string{"Helper", "Trusted"}, "Expert", "<nil>"},
		{1000, []string{"Helper", "Trusted"}, "Expert", "<nil>"},
	}

	for _, tt := range tests {
		info := Resolve(tt.points, table)
		if got := names(info.Previous); len(got) != len(tt.previous) {
			t.Errorf("Resolve(%d).Previous = %v, want %v", tt.points, got, tt.previous)
		} else {
			for i := range got {
				if got[i] != tt.previous[i] {
					t.Errorf("Resolve(%d).Previous = %v, want %v", tt.points, got, tt.previous)
				}
			}
		}
		if got := name(info.Current); got != tt.current {
			t.Errorf("Resolve(%d).Current = %s, want %s", tt.points, got, tt.current)
		}
		if got := name(info.Next); got != tt.next {
			t.Errorf("Resolve(%d).Next = %s, want %s", tt.points, got, tt.next)
		}
	}
}

// Previous + Current + Next всегда идут подряд с начала таблицы,
// Current — наибольший порог <= points, Next — наименьший порог > points.
func TestResolvePartitionsTable(t *testing.T) {
	tables := [][]Level{
		nil,
		{{Name: "Zero", Threshold: 0}},
		{{Name: "Zero", Threshold: 0}, {Name: "One", Threshold: 1}, {Name: "Ten", Threshold: 10}},
		table,
	}

	for ti, tbl := range tables {
		for p := 0; p <= 50; p++ {
			info := Resolve(p, tbl)

			var seq []Level
			seq = append(seq, info.Previous...)
			if info.Current != nil {
				seq = append(seq, *info.Current)
			}
			reached := len(seq)
			if info.Next != nil {
				seq = append(seq, *info.Next)
			}

			for i := range seq {
				if seq[i] != tbl[i] {
					t.Fatalf("table %d, points %d: position %d = %v, want %v", ti, p, i, seq[i], tbl[i])
				}
			}

			for i, l := range tbl {
				want := p > 0 && p >= l.Threshold
				if got := i < reached; got != want {
					t.Fatalf("table %d, points %d: level %s reached = %v, want %v", ti, p, l.Name, got, want)
				}
			}

			if info.Next == nil && reached != len(tbl) {
				t.Fatalf("table %d, points %d: Next is nil but only %d of %d reached", ti, p, reached, len(tbl))
			}
			if info.Next != nil && len(seq) != reached+1 {
				t.Fatalf("table %d, points %d: Next is not the first unreached level", ti, p)
			}
		}
	}
}

func TestResolveEmptyTable(t *testing.T) {
	info := Resolve(10, nil)
	if len(info.Previous) != 0 || info.Current != nil || info.Next != nil {
		t.Fatalf("Resolve on empty table = %+v", info)
	}
}

func TestZeroThresholdNeedsOnePoint(t *testing.T) {
	tbl := []Level{{Name: "Newbie", Threshold: 0}, {Name: "Helper", Threshold: 5}}

	if info := Resolve(0, tbl); info.HasLevel() || name(info.Next) != "Newbie" {
		t.Fatalf("Resolve(0) = current %s next %s", name(info.Current), name(info.Next))
	}
	if info := Resolve(1, tbl); !info.HasLevel() || name(info.Current) != "Newbie" || name(info.Next) != "Helper" {
		t.Fatalf("Resolve(1) = current %s next %s", name(info.Current), name(info.Next))
	}
}

func TestReachedExactly(t *testing.T) {
	if !Resolve(5, table).ReachedExactly(5) {
		t.Error("5 points should reach Helper exactly")
	}
	if Resolve(6, table).ReachedExactly(6) {
		t.Error("6 points should not be a level-up")
	}
	if Resolve(3, table).ReachedExactly(3) {
		t.Error("no level at 3 points")
	}
	if !Resolve(40, table).IsMaxLevel() {
		t.Error("40 points is the max level")
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize([]Level{
		{Name: " Trusted ", Threshold: 15},
		{Name: "Helper", Threshold: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Name != "Helper" || got[1].Name != "Trusted" {
		t.Fatalf("Normalize = %v", names(got))
	}

	bad := [][]Level{
		{{Name: "", Threshold: 1}},
		{{Name: "Neg", Threshold: -1}},
		{{Name: "A", Threshold: 5}, {Name: "B", Threshold: 5}},
	}
	for _, b := range bad {
		if _, err := Normalize(b); !errors.Is(err, common.ErrInvalidLevels) {
			t.Errorf("Normalize(%v) err = %v, want ErrInvalidLevels", b, err)
		}
	}
}

func TestParse(t *testing.T) {
	raw := []byte(`
levels:
  - name: Trusted
    points: 15
    badge_id: "222"
  - name: Helper
    points: 5
    badge_id: "111"
`)
	got, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Helper" || got[0].BadgeID != "111" || got[1].Threshold != 15 {
		t.Fatalf("Parse = %+v", got)
	}

	if _, err := Parse([]byte("levels: [oops")); err == nil {
		t.Fatal("broken YAML should fail")
	}
}
