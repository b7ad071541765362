package site

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNewNavBar はパスの前方一致でアクティブなリンクが決まることをテストします
func TestNewNavBar(t *testing.T) {
	tests := []struct {
		path     string
		signedIn bool
		active   string
	}{
		{path: "/", active: "/"},
		{path: "/pricing", active: "/pricing"},
		{path: "/about/team", active: "/about"},
		{path: "/unknown", active: ""},
		{path: "/courses/c1", signedIn: true, active: "/courses"},
		{path: "/coursesx", signedIn: true, active: ""},
		{path: "/dashboard", signedIn: true, active: "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			nav := NewNavBar(tt.path, tt.signedIn)
			assert.Equal(t, tt.active, nav.Active)
			assert.Equal(t, DefaultScrollThreshold, nav.ScrollThreshold)
			count := 0
			for _, l := range nav.Links {
				if l.Active {
					count++
				}
			}
			assert.LessOrEqual(t, count, 1)
		})
	}
}

// TestProgressBar は割合が0〜100%に丸められることをテストします
func TestProgressBar(t *testing.T) {
	tests := []struct {
		ratio float64
		want  int
		label string
	}{
		{ratio: 0, want: 0, label: "0%"},
		{ratio: 0.4, want: 40, label: "40%"},
		{ratio: 0.666, want: 67, label: "67%"},
		{ratio: 1, want: 100, label: "100%"},
		{ratio: 1.7, want: 100, label: "100%"},
		{ratio: -0.2, want: 0, label: "0%"},
		{ratio: math.NaN(), want: 0, label: "0%"},
	}
	for _, tt := range tests {
		bar := ProgressBar{Ratio: tt.ratio}
		assert.Equal(t, tt.want, bar.Percent())
		assert.Equal(t, tt.label, bar.Label())
	}
}

// TestRotatingLabel は経過時間に応じた文言の切り替えをテストします
func TestRotatingLabel(t *testing.T) {
	l := RotatingLabel{Labels: []string{"Forex", "Crypto", "Stocks"}, Interval: 3 * time.Second}

	assert.Equal(t, "Forex", l.At(0))
	assert.Equal(t, "Forex", l.At(2999*time.Millisecond))
	assert.Equal(t, "Crypto", l.At(3*time.Second))
	assert.Equal(t, "Stocks", l.At(7*time.Second))
	assert.Equal(t, "Forex", l.At(9*time.Second))
	assert.Equal(t, int64(3000), l.IntervalMillis())

	assert.Equal(t, "", RotatingLabel{}.At(time.Second))
	assert.Equal(t, "Forex", RotatingLabel{Labels: []string{"Forex", "Crypto"}}.At(time.Hour))
}

// TestNewFooter は年が表示されることをテストします
func TestNewFooter(t *testing.T) {
	f := NewFooter(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, f.Year)
	assert.NotEmpty(t, f.Columns)
}
