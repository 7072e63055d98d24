package filters

import (
	"testing"

	"serotonyl.ru/points-bot/internal/platform"
)

func TestCommentFilter(t *testing.T) {
	f := NewCommentFilter(platform.User{ID: "bot", Name: "PointsBot"})
	helper := platform.User{ID: "u1", Name: "helper"}

	tests := []struct {
		name string
		c    *platform.Comment
		want bool
	}{
		{"nil", nil, false},
		{"own by id", &platform.Comment{Author: platform.User{ID: "bot"}, Body: "!solved"}, false},
		{"own by name", &platform.Comment{Author: platform.User{Name: "pointsbot"}, Body: "!solved"}, false},
		{"deleted author", &platform.Comment{Body: "!solved"}, false},
		{"blank body", &platform.Comment{Author: helper, Body: " \n\t"}, false},
		{"regular", &platform.Comment{Author: helper, Body: "!solved"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Check(tt.c, nil); got != tt.want {
				t.Errorf("Check = %v, want %v", got, tt.want)
			}
		})
	}
}
