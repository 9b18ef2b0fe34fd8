package container

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/pkg/forkexec"
)

const infoFile = "info.json"

// Status is the recorded state of a container
type Status string

// Container states
const (
	StatusUnknown Status = "unknown"
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusFailed  Status = "failed"
)

// Process is the persisted form of the startup descriptor
type Process struct {
	Args             []string             `json:"args"`
	Env              []string             `json:"env"`
	HostName         string               `json:"hostname"`
	RootFS           string               `json:"rootfs"`
	CloneFlags       uintptr              `json:"cloneFlags"`
	UIDMappings      []forkexec.IDMapping `json:"uidMappings"`
	GIDMappings      []forkexec.IDMapping `json:"gidMappings"`
	Seccomp          []string             `json:"seccomp,omitempty"`
	HandshakeTimeout time.Duration        `json:"handshakeTimeout"`
}

// Info is the container state kept in containers_dir/<id>/info.json
type Info struct {
	ID         string    `json:"id"`
	Image      string    `json:"image"`
	Command    []string  `json:"command"`
	Pid        int       `json:"pid"`
	Status     Status    `json:"status"`
	ExitStatus int       `json:"exitStatus"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Process    *Process  `json:"process,omitempty"`
}

// NewInfo creates the state of a newly created container
func NewInfo(c *Container, img string, command []string) *Info {
	return &Info{
		ID:        c.ID,
		Image:     img,
		Command:   command,
		Status:    StatusCreated,
		CreatedAt: time.Now(),
	}
}

// InfoPath returns the path of the state file
func (c *Container) InfoPath() string {
	return filepath.Join(c.RootDir, infoFile)
}

// SaveInfo writes info to the state file, replacing it atomically
func (c *Container) SaveInfo(info *Info) error {
	data, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return errdefs.New(errdefs.KindEncoding, "save info", c.ID, err)
	}

	path := c.InfoPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errdefs.New(errdefs.KindIO, "save info", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errdefs.New(errdefs.KindIO, "save info", path, err)
	}
	return nil
}

// LoadInfo reads the state of container id in containersDir
func LoadInfo(containersDir, id string) (*Info, error) {
	path := filepath.Join(containersDir, id, infoFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.New(errdefs.KindIO, "load info", path, err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errdefs.New(errdefs.KindEncoding, "load info", path, err)
	}
	return &info, nil
}

// List returns the state of every container in containersDir ordered by
// creation time. Containers without a state file are reported with
// unknown status.
func List(containersDir string) ([]*Info, error) {
	entries, err := os.ReadDir(containersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errdefs.New(errdefs.KindIO, "list", containersDir, err)
	}

	var infos []*Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := LoadInfo(containersDir, entry.Name())
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
			info = &Info{ID: entry.Name(), Status: StatusUnknown}
		default:
			return nil, err
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}
