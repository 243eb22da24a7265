package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/services"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 64 << 20
	multipartMemory  = 8 << 20
)

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// decodeOptionalBody is decodeBody for endpoints whose body may be empty.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decodeBody(w, r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return common.Invalid("body", "expected a multipart form")
	}
	return nil
}

// formUpload opens the named file part. A missing part yields nil; the
// returned close func is always safe to call.
func formUpload(r *http.Request, field string) (*services.Upload, func(), error) {
	file, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, common.Invalid(field, "unreadable file")
	}
	return uploadFromPart(file, hdr), func() { _ = file.Close() }, nil
}

func uploadFromPart(file multipart.File, hdr *multipart.FileHeader) *services.Upload {
	contentType := hdr.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &services.Upload{
		Name:        hdr.Filename,
		ContentType: contentType,
		Body:        file,
		Size:        hdr.Size,
	}
}

// parseCents reads a decimal amount such as "1500" or "1499.90" into cents.
func parseCents(field, raw string) (int64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, common.Invalid(field, "required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, common.Invalid(field, "not a number")
	}
	return int64(math.Round(v * 100)), nil
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(raw string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b
}
