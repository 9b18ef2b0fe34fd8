package image

import (
	"path/filepath"
	"testing"

	"code.cloudfoundry.org/lager/v3/lagertest"

	"github.com/yuvaldolev/container/errdefs"
	"github.com/yuvaldolev/container/pkg/volume"
)

type fakeLocator struct {
	paths   []string
	volumes map[string]bool
}

func (f *fakeLocator) Locate(path string) (volume.Volume, error) {
	f.paths = append(f.paths, path)
	if !f.volumes[path] {
		return volume.Volume{}, errdefs.New(errdefs.KindImageNotFound, "locate", path, volume.ErrNotFound)
	}
	return volume.Volume{Path: path}, nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		ref  string
		want Reference
		err  bool
	}{
		{"alpine", Reference{"alpine", "latest"}, false},
		{"alpine:3.18", Reference{"alpine", "3.18"}, false},
		{"alpine:latest", Reference{"alpine", "latest"}, false},
		{"", Reference{}, true},
		{":", Reference{}, true},
		{"alpine:", Reference{}, true},
		{":tag", Reference{}, true},
		{"a:b:c", Reference{}, true},
		{"a::", Reference{}, true},
		{"library/alpine:3.18", Reference{"library/alpine", "3.18"}, false},
		{"../../etc", Reference{}, true},
		{"alpine/..", Reference{}, true},
		{"./alpine", Reference{}, true},
		{"/alpine", Reference{}, true},
		{"alpine//edge", Reference{}, true},
		{"alpine:..", Reference{}, true},
		{"alpine:../x", Reference{}, true},
	}
	for _, tc := range tests {
		got, err := Parse(tc.ref)
		if tc.err {
			if !errdefs.Is(err, errdefs.KindInvalidReference) {
				t.Errorf("Parse(%q) err = %v, want invalid reference", tc.ref, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) err = %v", tc.ref, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := "/var/lib/container/images"
	path := filepath.Join(dir, "alpine", "latest")
	store := &fakeLocator{volumes: map[string]bool{path: true}}
	logger := lagertest.NewTestLogger("test")

	for _, ref := range []string{"alpine", "alpine:latest"} {
		img, err := Resolve(logger, store, ref, dir)
		if err != nil {
			t.Fatalf("Resolve(%q) err = %v", ref, err)
		}
		if img.Name != ref || img.Volume.Path != path {
			t.Errorf("Resolve(%q) = %+v", ref, img)
		}
	}
}

func TestResolve_NotFound(t *testing.T) {
	store := &fakeLocator{}
	_, err := Resolve(lagertest.NewTestLogger("test"), store, "busybox:1.0", "/images")
	if !errdefs.Is(err, errdefs.KindImageNotFound) {
		t.Fatalf("err = %v, want image not found", err)
	}
	if len(store.paths) != 1 || store.paths[0] != "/images/busybox/1.0" {
		t.Errorf("located %v", store.paths)
	}
}

func TestResolve_InvalidBeforeLookup(t *testing.T) {
	store := &fakeLocator{}
	_, err := Resolve(lagertest.NewTestLogger("test"), store, "a:b:c", "/images")
	if !errdefs.Is(err, errdefs.KindInvalidReference) {
		t.Fatalf("err = %v, want invalid reference", err)
	}
	if len(store.paths) != 0 {
		t.Errorf("located %v before parsing", store.paths)
	}
}
