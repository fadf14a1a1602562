// Package artifact renders signed delivery notes and stores the resulting
// documents in content-addressed storage.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

// ErrNotStored is returned by Fetch when nothing was uploaded under name.
var ErrNotStored = errors.New("artifact not stored")

// Ref locates a stored artifact. ContentID is derived from the bytes, so
// uploading identical content always yields the same ContentID.
type Ref struct {
	Locator   string `json:"url"`
	ContentID string `json:"cid"`
}

// Store is the content-addressed storage contract. Uploads are idempotent by
// name: uploading again under the same name replaces the previous object.
type Store interface {
	Upload(ctx context.Context, data []byte, name string) (Ref, error)
	Fetch(ctx context.Context, name string) (Ref, error)
}

// ContentID is the hex SHA-256 of data.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NoteName is the object name of a delivery note document.
func NoteName(id uint64) string {
	return strconv.FormatUint(id, 10) + ".pdf"
}
