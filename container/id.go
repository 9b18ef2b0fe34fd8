package container

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/yuvaldolev/container/errdefs"
)

// IDLength is the number of hex characters in a container id
const IDLength = 12

// NewID generates a container id from the first hex characters of a
// random v4 uuid
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", errdefs.New(errdefs.KindIO, "generate id", "", err)
	}
	text, err := u.MarshalText()
	if err != nil {
		return "", errdefs.New(errdefs.KindEncoding, "generate id", "", err)
	}
	text = bytes.ReplaceAll(text, []byte("-"), nil)
	return string(text[:IDLength]), nil
}
