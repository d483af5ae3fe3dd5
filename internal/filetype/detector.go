package filetype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ErrNotPDF is returned when a downloaded file is not a PDF.
var ErrNotPDF = errors.New("not a PDF document")

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
}

// Detect detects the actual file type using magic bytes, not filename
func Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	log.Debug().Str("mime", mtype.String()).Str("ext", mtype.Extension()).Str("file", filePath).Msg("detected file type")
	return &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}, nil
}

// RequirePDF fails with ErrNotPDF unless the file at path is a PDF. arXiv
// answers some missing-PDF requests with an HTML page and status 200.
func RequirePDF(filePath string) error {
	info, err := Detect(filePath)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(info.MIMEType, "application/pdf") {
		return fmt.Errorf("%w: %s is %s", ErrNotPDF, filePath, info.MIMEType)
	}
	return nil
}

// ImageExtension sniffs raw image bytes and returns the format extension
// without the dot ("png", "jpg", ...), or "" when the bytes are not an image.
func ImageExtension(data []byte) string {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return ""
	}
	return strings.TrimPrefix(mtype.Extension(), ".")
}

// ExtensionForMIME maps an image media type such as "image/jpeg" to a format
// extension ("jpeg"). Unknown types give "".
func ExtensionForMIME(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	sub, ok := strings.CutPrefix(mediaType, "image/")
	if !ok || sub == "" {
		return ""
	}
	switch sub {
	case "svg+xml":
		return "svg"
	case "x-ms-bmp", "x-bmp":
		return "bmp"
	}
	return strings.TrimPrefix(sub, "x-")
}
