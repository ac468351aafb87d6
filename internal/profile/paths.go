// Package profile lays out the per-profile directory tree under
// ~/.shiftsync. A profile is one signed-in user on one machine; each runs
// its own daemon with its own durable store.
package profile

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the root directory.
const HomeEnv = "SHIFTSYNC_HOME"

// DefaultName is used when neither flag, environment nor config names a
// profile.
const DefaultName = "main"

// Root returns $SHIFTSYNC_HOME, or ~/.shiftsync.
func Root() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".shiftsync")
}

// ConfigPath returns the config file path under root.
func ConfigPath(root string) string {
	return filepath.Join(root, "config.toml")
}

// Layout locates one profile's files.
type Layout struct {
	Root string
	Name string
}

// New returns the layout of profile name under root.
func New(root, name string) Layout {
	return Layout{Root: root, Name: name}
}

// Dir returns the profile directory.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, "profiles", l.Name)
}

// SocketPath returns the daemon's UDS socket path.
func (l Layout) SocketPath() string {
	return filepath.Join(l.Dir(), "daemon.sock")
}

// LockPath returns the lock file path.
func (l Layout) LockPath() string {
	return filepath.Join(l.Dir(), "LOCK")
}

// DBPath returns the durable key-value store path.
func (l Layout) DBPath() string {
	return filepath.Join(l.Dir(), "shiftsync.db")
}

// LogDir returns the log directory.
func (l Layout) LogDir() string {
	return filepath.Join(l.Dir(), "logs")
}

// LogPath returns the daemon log file path.
func (l Layout) LogPath() string {
	return filepath.Join(l.LogDir(), "shiftsyncd.log")
}

// RemoteDir returns the default directory for the file-backed remote.
func (l Layout) RemoteDir() string {
	return filepath.Join(l.Dir(), "remote")
}

// EnsureDirs creates the profile directory tree.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.Dir(), l.LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
