// Package image resolves image references to btrfs subvolumes under the
// images directory.
package image

import (
	"path/filepath"
	"strings"

	"code.cloudfoundry.org/lager/v3"

	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/pkg/volume"
)

// DefaultTag is used when the reference has no tag
const DefaultTag = "latest"

// Reference is a parsed name[:tag]
type Reference struct {
	Name string
	Tag  string
}

func (r Reference) String() string {
	return r.Name + ":" + r.Tag
}

// Image is a resolved image
type Image struct {
	Name   string        `json:"name"`
	Volume volume.Volume `json:"volume"`
}

// Locator finds a subvolume by path
type Locator interface {
	Locate(path string) (volume.Volume, error)
}

// Parse splits reference into name and tag
func Parse(reference string) (Reference, error) {
	if reference == "" {
		return Reference{}, invalidReference(reference, "empty reference")
	}
	parts := strings.Split(reference, ":")
	var ref Reference
	switch len(parts) {
	case 1:
		ref = Reference{Name: parts[0], Tag: DefaultTag}
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Reference{}, invalidReference(reference, "empty name or tag")
		}
		ref = Reference{Name: parts[0], Tag: parts[1]}
	default:
		return Reference{}, invalidReference(reference, "too many ':'")
	}

	// the reference must stay inside the images directory
	if !validElements(ref.Name) {
		return Reference{}, invalidReference(reference, "invalid name")
	}
	if strings.Contains(ref.Tag, "/") || !validElements(ref.Tag) {
		return Reference{}, invalidReference(reference, "invalid tag")
	}
	return ref, nil
}

// validElements reports whether every / separated element of s is a
// plain file name
func validElements(s string) bool {
	for _, e := range strings.Split(s, "/") {
		if e == "" || e == "." || e == ".." {
			return false
		}
	}
	return true
}

func invalidReference(reference, msg string) error {
	return errdefs.Errorf(errdefs.KindInvalidReference, "parse", "%q: %s", reference, msg)
}

// Path returns the subvolume path of the reference in imagesDir
func (r Reference) Path(imagesDir string) string {
	return filepath.Join(imagesDir, r.Name, r.Tag)
}

// Resolve parses reference and locates its subvolume in imagesDir
func Resolve(logger lager.Logger, store Locator, reference, imagesDir string) (*Image, error) {
	log := logger.Session("resolve", lager.Data{"reference": reference})

	ref, err := Parse(reference)
	if err != nil {
		log.Error("parse", err)
		return nil, err
	}

	path := ref.Path(imagesDir)
	v, err := store.Locate(path)
	if err != nil {
		log.Error("locate", err, lager.Data{"path": path})
		if errdefs.Is(err, errdefs.KindImageNotFound) {
			return nil, errdefs.New(errdefs.KindImageNotFound, "resolve", reference, err)
		}
		return nil, err
	}

	log.Debug("resolved", lager.Data{"path": v.Path})
	return &Image{Name: reference, Volume: v}, nil
}
