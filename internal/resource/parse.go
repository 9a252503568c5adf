package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/ir"
)

// FileField is the multipart field carrying an optional upload.
const FileField = "image"

// maxFieldBytes bounds a single multipart text field.
const maxFieldBytes = 1 << 20

var (
	errInvalidBody  = errors.New("invalid request body")
	errInvalidField = errors.New("invalid field name")
)

// submission is a parsed write request.
type submission struct {
	fields ir.Record

	// upload is the public path of a stored file, if one was sent.
	upload string
}

// parseBody reads the request body into an ordered record. Multipart file
// parts named FileField are stored through files, which may be nil to
// ignore uploads.
func parseBody(r *http.Request, files *attach.Store) (submission, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return parseJSON(r.Body, true)
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return submission{}, errInvalidBody
	}

	switch {
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		return parseJSON(r.Body, false)
	case mt == "multipart/form-data":
		return parseMultipart(r, params["boundary"], files)
	case mt == "application/x-www-form-urlencoded":
		return parseURLEncoded(r.Body)
	default:
		return submission{}, errInvalidBody
	}
}

// parseJSON decodes a JSON object. With allowEmpty an empty body is an
// empty record.
func parseJSON(body io.Reader, allowEmpty bool) (submission, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return submission{}, fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	if allowEmpty && len(bytes.TrimSpace(data)) == 0 {
		return submission{}, nil
	}

	var rec ir.Record
	if err := rec.UnmarshalJSON(data); err != nil {
		return submission{}, errInvalidBody
	}
	return submission{fields: rec}, nil
}

// parseURLEncoded decodes a form body, keeping the order of first
// occurrence.
func parseURLEncoded(body io.Reader) (submission, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return submission{}, fmt.Errorf("%w: %w", errInvalidBody, err)
	}

	var sub submission
	for _, pair := range strings.Split(string(data), "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return submission{}, errInvalidBody
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return submission{}, errInvalidBody
		}
		if sub.fields.Has(key) {
			return submission{}, errInvalidField
		}
		sub.fields.Set(key, ir.Text(val))
	}
	return sub, nil
}

// parseMultipart streams the parts in order. Text parts become Text
// values; the first file part named FileField is stored.
func parseMultipart(r *http.Request, boundary string, files *attach.Store) (sub submission, err error) {
	if boundary == "" {
		return submission{}, errInvalidBody
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return submission{}, errInvalidBody
	}

	defer func() {
		if err != nil && sub.upload != "" {
			files.Remove(sub.upload)
			sub.upload = ""
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return sub, nil
		}
		if err != nil {
			return sub, fmt.Errorf("%w: %w", errInvalidBody, err)
		}

		name := part.FormName()
		if part.FileName() != "" {
			if name != FileField || files == nil || sub.upload != "" {
				part.Close()
				continue
			}
			public, err := files.SaveReader(part.FileName(), part)
			part.Close()
			if err != nil {
				return sub, err
			}
			sub.upload = public
			continue
		}

		if name == "" {
			part.Close()
			continue
		}
		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		part.Close()
		if err != nil {
			return sub, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		if len(value) > maxFieldBytes {
			return sub, fmt.Errorf("%w: field %q too long", errInvalidBody, name)
		}
		if sub.fields.Has(name) {
			return sub, errInvalidField
		}
		sub.fields.Set(name, ir.Text(string(value)))
	}
}
