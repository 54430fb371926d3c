package camera

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

// MaxFileSize is the largest image accepted from file selection (5 MiB).
const MaxFileSize = 5 * 1024 * 1024

// Origin records how an Artifact was produced.
type Origin int

const (
	OriginCaptured Origin = iota
	OriginSelected
)

func (o Origin) String() string {
	if o == OriginSelected {
		return "selected"
	}
	return "captured"
}

// Artifact is an encoded image ready for the prediction service. Data must not
// be modified after construction.
type Artifact struct {
	ID        string
	Name      string
	MIMEType  string
	Data      []byte
	Origin    Origin
	Width     int
	Height    int
	CreatedAt time.Time
}

// Size returns the payload length in bytes.
func (a *Artifact) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// Digest returns a BLAKE2b-256 hash of the payload.
func (a *Artifact) Digest() [32]byte {
	if a == nil {
		return [32]byte{}
	}
	return blake2b.Sum256(a.Data)
}

// DataURL encodes the artifact as a base64 data URL.
func (a *Artifact) DataURL() string {
	if a == nil {
		return ""
	}
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

func (a *Artifact) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s, %s, %s)", a.Name, a.MIMEType, humanize.IBytes(uint64(len(a.Data))), a.Origin)
}

// File is a user-selected image as declared by the picker.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// Validate checks the declared MIME type and size. Size falls back to the
// length of Data when unset.
func (f File) Validate() error {
	if !strings.HasPrefix(f.MIMEType, "image/") {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, f.MIMEType)
	}
	size := f.Size
	if size <= 0 {
		size = int64(len(f.Data))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(MaxFileSize))
	}
	return nil
}

func newArtifact(name, mimeType string, data []byte, origin Origin, now time.Time) *Artifact {
	a := &Artifact{
		ID:        uuid.NewString(),
		Name:      name,
		MIMEType:  mimeType,
		Data:      data,
		Origin:    origin,
		CreatedAt: now,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		a.Width, a.Height = cfg.Width, cfg.Height
	}
	return a
}

// capturedName formats the file name given to captured frames.
func capturedName(now time.Time) string {
	return "plant-scan-" + now.UTC().Format(time.RFC3339) + ".jpg"
}

// ParseDataURL decodes a base64 data URL produced by DataURL into a selected
// artifact. The declared MIME type is validated like a picked file.
func ParseDataURL(name, s string) (*Artifact, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("camera: not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("camera: malformed data url")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, fmt.Errorf("camera: data url is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("camera: decode data url: %w", err)
	}
	f := File{Name: name, MIMEType: mimeType, Size: int64(len(data)), Data: data}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return newArtifact(name, mimeType, data, OriginSelected, time.Now()), nil
}
