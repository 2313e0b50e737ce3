// Package media turns a locally picked image into a fetchable URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"lostfound/pkg/apperror"
)

const Namespace = "images/"

var (
	ErrCancelled        = errors.New("media: picking cancelled")
	ErrPermissionDenied = &apperror.AppError{Err: apperror.ErrPermission, Message: "Permissions to access images were denied"}
	ErrNoImageData      = &apperror.AppError{Err: apperror.ErrValidation, Message: "image has no data", Field: "image"}
)

// Handle points at a picked image. Data carries the inline bytes when the
// picker provided them (base64 in JSON).
type Handle struct {
	URI  string `json:"uri"`
	Data []byte `json:"base64,omitempty"`
}

// Name is the trailing path segment of the URI.
func (h *Handle) Name() string {
	p := h.URI
	if u, err := url.Parse(h.URI); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(filepath.ToSlash(p))
	if name == "." || name == "/" || name == "" {
		return "image"
	}
	return name
}

type Picker interface {
	RequestPermission(ctx context.Context) (bool, error)
	// Pick returns ErrCancelled when nothing was chosen.
	Pick(ctx context.Context) (*Handle, error)
}

// StaticPicker hands out a handle the client picked on its side. A nil
// Handle reads as a cancelled pick. Inline data over MaxBytes is rejected
// when MaxBytes is positive.
type StaticPicker struct {
	Handle   *Handle
	MaxBytes int64
}

func (p StaticPicker) RequestPermission(_ context.Context) (bool, error) {
	return true, nil
}

func (p StaticPicker) Pick(_ context.Context) (*Handle, error) {
	if p.Handle == nil {
		return nil, ErrCancelled
	}
	if p.MaxBytes > 0 && int64(len(p.Handle.Data)) > p.MaxBytes {
		return nil, TooLarge(p.MaxBytes)
	}
	return p.Handle, nil
}

// FilePicker picks a single file from the local disk.
type FilePicker struct {
	Path string
}

func (p FilePicker) RequestPermission(_ context.Context) (bool, error) {
	if p.Path == "" {
		return true, nil
	}
	f, err := os.Open(p.Path)
	if errors.Is(err, os.ErrPermission) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	f.Close()
	return true, nil
}

func (p FilePicker) Pick(_ context.Context) (*Handle, error) {
	if p.Path == "" {
		return nil, ErrCancelled
	}
	abs, err := filepath.Abs(p.Path)
	if err != nil {
		return nil, err
	}
	return &Handle{URI: "file://" + filepath.ToSlash(abs)}, nil
}

// FormPicker picks the multipart file part named Field of a request.
type FormPicker struct {
	Request  *http.Request
	Field    string
	MaxBytes int64
}

func (p FormPicker) RequestPermission(_ context.Context) (bool, error) {
	return true, nil
}

func (p FormPicker) Pick(_ context.Context) (*Handle, error) {
	file, header, err := p.Request.FormFile(p.Field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, fmt.Errorf("media: can't read form file: %w", err)
	}
	defer file.Close()

	data, err := readLimited(file, p.MaxBytes)
	if err != nil {
		return nil, err
	}
	return &Handle{URI: header.Filename, Data: data}, nil
}

func readLimited(f multipart.File, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("media: can't read image: %w", err)
	}
	if int64(len(data)) > max {
		return nil, TooLarge(max)
	}
	return data, nil
}

// TooLarge is the validation error for an image over max bytes.
func TooLarge(max int64) error {
	return apperror.ValidationFailed("image", "image is larger than "+humanize.IBytes(uint64(max)))
}

// ReadFileURI opens file:// URIs and plain paths.
func ReadFileURI(_ context.Context, uri string) ([]byte, error) {
	p := uri
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		p = filepath.FromSlash(u.Path)
	} else if strings.Contains(uri, "://") {
		return nil, fmt.Errorf("media: unsupported URI %q", uri)
	}
	return os.ReadFile(p)
}
