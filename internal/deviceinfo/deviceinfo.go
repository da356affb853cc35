// Package deviceinfo reads the small provisioning-time JSON file that
// identifies this particular appliance (spec.md §3's device status
// snapshot: machine id, unique id, firmware version). Provisioning itself
// is out of scope (spec.md §1's Non-goals); this package only reads what
// provisioning already wrote.
package deviceinfo

import (
	"encoding/json"
	"fmt"
	"os"
)

// Info is the provisioning-time identity of this appliance.
type Info struct {
	MachineID       string `json:"machine_id"`
	UniqueID        string `json:"unique_id"`
	FirmwareVersion string `json:"firmware_version"`
}

// Load reads Info from path. A missing file is not an error — it returns
// a zero-value Info so a freshly-flashed board still boots and reports
// an (empty) status snapshot rather than refusing to start.
func Load(path string) (Info, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("deviceinfo: read %s: %w", path, err)
	}
	var info Info
	if err := json.Unmarshal(b, &info); err != nil {
		return Info{}, fmt.Errorf("deviceinfo: parse %s: %w", path, err)
	}
	return info, nil
}
