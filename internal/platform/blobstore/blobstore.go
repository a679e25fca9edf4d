// Package blobstore stores chat attachments. Files are validated against an
// allowlist of document and image types, by extension, declared type and
// sniffed content, and capped in size.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("file type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// DefaultMaxFileSize is 5 MB.
const DefaultMaxFileSize = 5 << 20

const (
	typeJPEG = "image/jpeg"
	typePNG  = "image/png"
	typePDF  = "application/pdf"
	typeDOC  = "application/msword"
	typeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// AllowedExtensions maps each accepted file extension to its canonical type.
var AllowedExtensions = map[string]string{
	".jpg":  typeJPEG,
	".jpeg": typeJPEG,
	".png":  typePNG,
	".pdf":  typePDF,
	".doc":  typeDOC,
	".docx": typeDOCX,
}

// sniffed lists what http.DetectContentType reports for each canonical type.
// Word files have no dedicated signature: .doc is an OLE container and .docx
// a zip archive.
var sniffed = map[string][]string{
	typeJPEG: {typeJPEG},
	typePNG:  {typePNG},
	typePDF:  {typePDF},
	typeDOC:  {"application/octet-stream"},
	typeDOCX: {"application/zip", "application/octet-stream"},
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Upload is an incoming file.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// Object describes a stored file.
type Object struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	StoredName  string    `json:"storedName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Store interface {
	Save(ctx context.Context, up Upload) (*Object, error)
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedName string) error
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// sniff reads the first 512 bytes of r for content detection and returns a
// reader that replays them.
func sniff(r io.Reader) ([]byte, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	head = head[:n]
	return head, io.MultiReader(bytes.NewReader(head), r), nil
}

// Classify checks a file name, the client-declared content type and the
// leading bytes of the file, and returns the canonical content type and
// extension.
func Classify(fileName, declared string, head []byte) (contentType, ext string, err error) {
	if strings.TrimSpace(fileName) == "" {
		return "", "", ErrMissingFileName
	}

	ext = strings.ToLower(filepath.Ext(fileName))
	want, ok := AllowedExtensions[ext]
	if !ok {
		return "", "", ErrInvalidContentType
	}

	if declared != "" {
		base, _, perr := mime.ParseMediaType(declared)
		if perr != nil {
			return "", "", ErrInvalidContentType
		}
		if base != want && base != "application/octet-stream" {
			return "", "", ErrInvalidContentType
		}
	}

	detected, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	for _, accepted := range sniffed[want] {
		if detected == accepted {
			return want, ext, nil
		}
	}
	return "", "", ErrInvalidContentType
}
