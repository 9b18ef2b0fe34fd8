//go:build linux

package forkexec

import (
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/yuvaldolev/container/errdefs"
)

const (
	// DefaultIDMapOffset and DefaultIDMapCount map the whole 32-bit id range
	// inside the user namespace onto the same ids outside
	DefaultIDMapOffset = 0
	DefaultIDMapCount  = 4294967295
)

// IDMapping is a line of uid_map / gid_map
type IDMapping struct {
	ContainerID uint32
	HostID      uint32
	Size        uint64
}

// IDMap returns the single line mapping "0 <offset> <count>"
func IDMap(offset uint32, count uint64) []IDMapping {
	return []IDMapping{{ContainerID: 0, HostID: offset, Size: count}}
}

// writeIDMaps writes User ID and Group ID mappings for user namespaces
// for a process and it is called from the parent process.
func writeIDMaps(r *Runner, pid int) error {
	pidStr := strconv.Itoa(pid)

	uidMappings := r.UIDMappings
	if uidMappings == nil {
		uidMappings = IDMap(DefaultIDMapOffset, DefaultIDMapCount)
	}
	if err := writeFile("/proc/"+pidStr+"/uid_map", formatIDMappings(uidMappings)); err != nil {
		return err
	}

	gidMappings := r.GIDMappings
	if gidMappings == nil {
		gidMappings = IDMap(DefaultIDMapOffset, DefaultIDMapCount)
	}
	if err := writeFile("/proc/"+pidStr+"/gid_map", formatIDMappings(gidMappings)); err != nil {
		return err
	}
	return nil
}

func formatIDMappings(idMap []IDMapping) []byte {
	var data []byte
	for _, im := range idMap {
		data = strconv.AppendUint(data, uint64(im.ContainerID), 10)
		data = append(data, ' ')
		data = strconv.AppendUint(data, uint64(im.HostID), 10)
		data = append(data, ' ')
		data = strconv.AppendUint(data, im.Size, 10)
		data = append(data, '\n')
	}
	return data
}

// writeFile writes the whole content in a single write, as required by
// the id map files
func writeFile(path string, content []byte) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return errdefs.New(errdefs.KindIO, "open", path, err)
	}
	if _, err := unix.Write(fd, content); err != nil {
		unix.Close(fd)
		return errdefs.New(errdefs.KindIO, "write", path, err)
	}
	if err := unix.Close(fd); err != nil {
		return errdefs.New(errdefs.KindIO, "close", path, err)
	}
	return nil
}
