package indicator

import (
	"testing"
)

// TestStdDev_Update tests population standard deviation.
func TestStdDev_Update(t *testing.T) {
	sd := NewStdDev(4)

	for _, v := range []string{"2", "4", "4", "4"} {
		sd.Update(d(v))
	}

	// Mean 3.5, variance (2.25+0.25+0.25+0.25)/4 = 0.75, sqrt ~ 0.8660254
	got := sd.Current()
	want := d("0.86602540")
	if !got.Sub(want).Abs().LessThan(d("0.0001")) {
		t.Errorf("stddev = %s, want ~%s", got, want)
	}
	if !sd.Mean().Equal(d("3.5")) {
		t.Errorf("mean = %s, want 3.5", sd.Mean())
	}
}

// TestStdDev_NotReady tests zero before the window fills.
func TestStdDev_NotReady(t *testing.T) {
	sd := NewStdDev(5)
	sd.Update(d("10"))
	sd.Update(d("12"))

	if sd.Ready() {
		t.Error("should not be ready with 2 of 5 values")
	}
	if !sd.Current().IsZero() {
		t.Errorf("Current() = %s, want 0 before ready", sd.Current())
	}
	if !sd.ZScore(d("11")).IsZero() {
		t.Error("ZScore should be zero before ready")
	}
}

// TestStdDev_ZScore tests deviation scoring against the window.
func TestStdDev_ZScore(t *testing.T) {
	sd := NewStdDev(4)
	for _, v := range []string{"98", "100", "102", "100"} {
		sd.Update(d(v))
	}

	// Mean 100, stddev sqrt(2) ~ 1.4142. z(102.83) ~ +2.
	z := sd.ZScore(d("102.8284271"))
	if z.Sub(d("2")).Abs().GreaterThan(d("0.001")) {
		t.Errorf("z-score = %s, want ~2", z)
	}

	z = sd.ZScore(d("100"))
	if !z.IsZero() {
		t.Errorf("z-score at mean = %s, want 0", z)
	}
}

// TestStdDev_ConstantSeries tests zero spread handling.
func TestStdDev_ConstantSeries(t *testing.T) {
	sd := NewStdDev(3)
	for i := 0; i < 3; i++ {
		sd.Update(d("50"))
	}

	if !sd.Current().IsZero() {
		t.Errorf("stddev of constant series = %s, want 0", sd.Current())
	}
	// Zero spread must not divide by zero.
	if !sd.ZScore(d("55")).IsZero() {
		t.Error("ZScore with zero spread should be 0")
	}
}

// TestStdDev_Reset tests clearing state.
func TestStdDev_Reset(t *testing.T) {
	sd := NewStdDev(2)
	sd.Update(d("1"))
	sd.Update(d("9"))
	sd.Reset()

	if sd.Ready() {
		t.Error("should not be ready after reset")
	}
}
