package battery

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func writeBattery(t *testing.T, fs afero.Fs, name, capacity, status string) {
	t.Helper()
	dir := DefaultRoot + "/" + name
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if capacity != "" {
		if err := afero.WriteFile(fs, dir+"/capacity", []byte(capacity+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if status != "" {
		if err := afero.WriteFile(fs, dir+"/status", []byte(status+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBattery(t, fs, "AC", "", "")
	writeBattery(t, fs, "BAT1", "20", "Discharging")
	writeBattery(t, fs, "BAT0", "81", "Charging")

	st, err := NewReader(fs, "").Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if st.Name != "BAT0" || st.Capacity != 81 || st.State != "Charging" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestReadErrors(t *testing.T) {
	t.Run("no root", func(t *testing.T) {
		if _, err := NewReader(afero.NewMemMapFs(), "").Read(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("no battery", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeBattery(t, fs, "AC", "", "")
		if _, err := NewReader(fs, "").Read(); !errors.Is(err, ErrNoBattery) {
			t.Errorf("expected ErrNoBattery, got %v", err)
		}
	})
	t.Run("bad capacity", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeBattery(t, fs, "BAT0", "lots", "")
		if _, err := NewReader(fs, "").Read(); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestAnnounce(t *testing.T) {
	tests := []struct {
		capacity, status, want string
	}{
		{"64", "Discharging", "Battery at 64 percent"},
		{"40", "Charging", "Battery at 40 percent and charging"},
		{"100", "Full", "Battery is full"},
		{"55", "", "Battery at 55 percent"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeBattery(t, fs, "BAT0", tt.capacity, tt.status)
			if got := NewReader(fs, "").Announce(); got != tt.want {
				t.Errorf("Announce() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := NewReader(afero.NewMemMapFs(), "").Announce(); got != "Battery status is not available" {
		t.Errorf("unexpected fallback %q", got)
	}
}
