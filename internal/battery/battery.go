// Package battery reads charge level from the Linux power-supply class.
package battery

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DefaultRoot is the sysfs power-supply class directory.
const DefaultRoot = "/sys/class/power_supply"

// ErrNoBattery is returned when no BAT* entry exists under the root.
var ErrNoBattery = errors.New("battery: no battery found")

// Status is one battery reading.
type Status struct {
	Name     string
	Capacity int
	State    string // Charging, Discharging, Full, Not charging, Unknown
}

// Reader reads battery state through an afero filesystem.
type Reader struct {
	fs   afero.Fs
	root string
}

// NewReader returns a reader rooted at root. An empty root uses DefaultRoot.
func NewReader(fs afero.Fs, root string) *Reader {
	if root == "" {
		root = DefaultRoot
	}
	return &Reader{fs: fs, root: root}
}

// Read returns the first battery in name order.
func (r *Reader) Read() (Status, error) {
	entries, err := afero.ReadDir(r.fs, r.root)
	if err != nil {
		return Status{}, fmt.Errorf("battery: list %s: %w", r.root, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "BAT") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return Status{}, ErrNoBattery
	}
	sort.Strings(names)

	dir := path.Join(r.root, names[0])
	raw, err := afero.ReadFile(r.fs, path.Join(dir, "capacity"))
	if err != nil {
		return Status{}, fmt.Errorf("battery: read capacity: %w", err)
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return Status{}, fmt.Errorf("battery: parse capacity: %w", err)
	}

	st := Status{Name: names[0], Capacity: capacity, State: "Unknown"}
	if raw, err := afero.ReadFile(r.fs, path.Join(dir, "status")); err == nil {
		if s := strings.TrimSpace(string(raw)); s != "" {
			st.State = s
		}
	}
	return st, nil
}

// Announce renders the reading as a spoken sentence. Read failures produce a
// sentence too, so it can back an OnCheckBattery callback directly.
func (r *Reader) Announce() string {
	st, err := r.Read()
	if err != nil {
		return "Battery status is not available"
	}

	switch st.State {
	case "Charging":
		return fmt.Sprintf("Battery at %d percent and charging", st.Capacity)
	case "Full":
		return "Battery is full"
	default:
		return fmt.Sprintf("Battery at %d percent", st.Capacity)
	}
}
