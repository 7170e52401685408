package sniffer

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeBMP  MediaType = "bmp"
	TypeWEBP MediaType = "webp"
)

// headLen matches the number of bytes mimetype inspects by default.
const headLen = 3072

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type      MediaType
	MIME      string
	Extension string
}

var allowed = map[string]Result{
	"image/jpeg": {Type: TypeJPEG, MIME: "image/jpeg", Extension: ".jpg"},
	"image/png":  {Type: TypePNG, MIME: "image/png", Extension: ".png"},
	"image/bmp":  {Type: TypeBMP, MIME: "image/bmp", Extension: ".bmp"},
	"image/webp": {Type: TypeWEBP, MIME: "image/webp", Extension: ".webp"},
}

// Detect reads the head of r and classifies it. The consumed head is returned
// so callers can stitch it back in front of the remaining stream.
func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, headLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectBytes(head)
	return result, head, err
}

// DetectBytes classifies content by its signature. Only the allow-listed
// image types are recognised; everything else is ErrUnknownType.
func DetectBytes(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrUnknownType
	}
	return classify(mimetype.Detect(data))
}

func DetectFile(path string) (Result, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Result{}, err
	}
	return classify(mtype)
}

func classify(mtype *mimetype.MIME) (Result, error) {
	if mtype == nil {
		return Result{}, ErrUnknownType
	}
	result, ok := allowed[mtype.String()]
	if !ok {
		return Result{}, ErrUnknownType
	}
	return result, nil
}

// ExtensionMIME maps a stored file extension back to its MIME type.
func ExtensionMIME(ext string) string {
	for mime, result := range allowed {
		if result.Extension == ext {
			return mime
		}
	}
	return "application/octet-stream"
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
