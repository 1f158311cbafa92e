package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

const registryFileName = "daemon.json"

// FileRegistry implements domain.DaemonRegistry using a JSON pidfile.
// The CLI reads it to answer "is the daemon up" and to refuse duplicate
// starts.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a pidfile registry under the data directory.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           filepath.Join(dataDir, registryFileName),
		processManager: pm,
	}
}

// Register saves the running daemon's info.
func (r *FileRegistry) Register(info domain.DaemonInfo) error {
	info.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(&info)
}

// Heartbeat updates the liveness timestamp.
func (r *FileRegistry) Heartbeat() error {
	info, err := r.Get()
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("daemon not registered")
	}
	info.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(info)
}

// Get returns the registered daemon info, or nil if none.
func (r *FileRegistry) Get() (*domain.DaemonInfo, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var info domain.DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Clear removes the pidfile.
func (r *FileRegistry) Clear() error {
	err := os.Remove(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Alive reports whether the registered daemon process is running.
func (r *FileRegistry) Alive() bool {
	info, err := r.Get()
	if err != nil || info == nil {
		return false
	}
	return r.processManager.IsRunning(info.PID)
}

func (r *FileRegistry) atomicWrite(info *domain.DaemonInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
