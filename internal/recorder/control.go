package recorder

import (
	"fmt"
	"os"
	"path/filepath"
)

// StopMarker returns the control-file path whose presence means "channel N
// should not be recording". The marker is shared with external collaborators
// (the HTTP layer toggles it); the supervisor only reads it.
func StopMarker(controlDir string, channel int) string {
	return filepath.Join(controlDir, fmt.Sprintf("stop_ch%d", channel))
}

// IsStopped reports whether the stop marker exists for a channel.
func IsStopped(controlDir string, channel int) bool {
	_, err := os.Stat(StopMarker(controlDir, channel))
	return err == nil
}

// SetStopped creates or removes the stop marker.
func SetStopped(controlDir string, channel int, stopped bool) error {
	path := StopMarker(controlDir, channel)
	if stopped {
		if err := os.MkdirAll(controlDir, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		return f.Close()
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
