package feed

import (
	"testing"
	"time"

	"github.com/matheus3301/shiftsync/internal/instant"
	"github.com/matheus3301/shiftsync/internal/model"
)

func TestTotalPay(t *testing.T) {
	at := func(s string) instant.Instant { return instant.MustNormalize(s) }

	tests := []struct {
		name  string
		start string
		end   string
		rate  float64
		want  string
	}{
		{"four hours", "2024-01-10T18:00:00Z", "2024-01-10T22:00:00Z", 25, "100.00"},
		{"fractional rate", "2024-01-10T09:00:00Z", "2024-01-10T16:30:00Z", 12.45, "93.38"},
		{"overnight", "2024-01-10T22:00:00Z", "2024-01-10T06:00:00Z", 15.5, "124.00"},
		{"quarter hour", "2024-01-10T10:00:00Z", "2024-01-10T10:15:00Z", 10, "2.50"},
		{"zero length", "2024-01-10T10:00:00Z", "2024-01-10T10:00:00Z", 20, "0.00"},
		{"float trap", "2024-01-10T10:00:00Z", "2024-01-10T13:00:00Z", 0.1, "0.30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.Shift{StartTime: at(tt.start), EndTime: at(tt.end), PayPerHour: tt.rate}
			got, ok := TotalPay(s)
			if !ok {
				t.Fatal("TotalPay not ok")
			}
			if got.String() != tt.want {
				t.Errorf("TotalPay = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTotalPayMissingTimes(t *testing.T) {
	s := model.Shift{StartTime: instant.Of(time.Now()), PayPerHour: 20}
	if _, ok := TotalPay(s); ok {
		t.Error("TotalPay with no end time should not be ok")
	}
}

func TestCentsString(t *testing.T) {
	for c, want := range map[Cents]string{0: "0.00", 5: "0.05", 100: "1.00", 12345: "123.45", -250: "-2.50"} {
		if got := c.String(); got != want {
			t.Errorf("Cents(%d) = %s, want %s", int64(c), got, want)
		}
	}
}
