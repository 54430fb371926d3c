package presenter

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/soocke/leafscan-go/domain/camera"
)

// LoadFile reads path into a camera.File. The MIME type is taken from the
// extension and sniffed from the content when the extension is unknown.
// Oversized files are not read; Validate rejects them.
func LoadFile(path string) (camera.File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return camera.File{}, fmt.Errorf("open image: %w", err)
	}
	if fi.IsDir() {
		return camera.File{}, errors.New("open image: is a directory")
	}
	f := camera.File{
		Name:     filepath.Base(path),
		Size:     fi.Size(),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
	}
	if f.Size > camera.MaxFileSize {
		return f, nil
	}
	if f.Data, err = os.ReadFile(path); err != nil {
		return camera.File{}, fmt.Errorf("open image: %w", err)
	}
	if f.MIMEType == "" {
		f.MIMEType = http.DetectContentType(f.Data)
	}
	if mt, _, err := mime.ParseMediaType(f.MIMEType); err == nil {
		f.MIMEType = mt
	}
	return f, nil
}
