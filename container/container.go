// Package container allocates containers: a unique id, a directory under
// the containers directory and a writable snapshot of the image as the
// container root file system.
package container

import (
	"os"
	"path/filepath"

	"code.cloudfoundry.org/lager/v3"

	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/image"
	"github.com/yuvaldolev/container/pkg/volume"
)

const fsDir = "fs"

// Container is an allocated container
type Container struct {
	ID      string        `json:"id"`
	RootDir string        `json:"rootDir"`
	FS      volume.Volume `json:"fs"`
}

// Snapshotter creates writable snapshots of volumes
type Snapshotter interface {
	Snapshot(src volume.Volume, dst string) (volume.Volume, error)
}

// Create allocates a container for img in containersDir.
// The container directory is left on disk when the snapshot fails.
func Create(logger lager.Logger, store Snapshotter, img *image.Image, containersDir string) (*Container, error) {
	log := logger.Session("create", lager.Data{"image": img.Name})

	id, err := NewID()
	if err != nil {
		log.Error("generate-id", err)
		return nil, err
	}
	log = log.WithData(lager.Data{"id": id})

	rootDir := filepath.Join(containersDir, id)
	if err := os.Mkdir(rootDir, 0700); err != nil {
		log.Error("mkdir", err)
		return nil, errdefs.New(errdefs.KindIO, "mkdir", rootDir, err)
	}

	fs, err := store.Snapshot(img.Volume, filepath.Join(rootDir, fsDir))
	if err != nil {
		log.Error("snapshot", err)
		return nil, err
	}

	log.Info("created", lager.Data{"fs": fs.Path})
	return &Container{
		ID:      id,
		RootDir: rootDir,
		FS:      fs,
	}, nil
}
