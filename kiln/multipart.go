package kiln

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"

	"github.com/mitchellh/mapstructure"

	"github.com/kiln-dev/kiln/kerrors"
)

// FilePart is one uploaded file from a multipart/form-data body.
type FilePart struct {
	Filename string
	Header   map[string][]string
	Data     []byte
}

// MultipartForm is the parsed fields/files view of a multipart body.
// Fields and files are kept in two separate maps, each keyed by part
// name; there is no single map holding both. Each value is a list
// preserving arrival order, so repeated field/file names accumulate
// rather than overwrite.
type MultipartForm struct {
	Fields map[string][]string
	Files  map[string][]FilePart
}

// fieldsAsMap projects the first value of each field into a
// map[string]any for mapstructure decoding via DecodeForm.
func (f *MultipartForm) fieldsAsMap() map[string]any {
	out := make(map[string]any, len(f.Fields))
	for k, v := range f.Fields {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Multipart parses the request body as multipart/form-data, memoized
// after the first call. It fails with kerrors.Validation if the
// Content-Type is not multipart/form-data or carries no boundary, and
// with kerrors.PayloadTooLarge if any single file part exceeds
// maxFileBytes. Parts with a missing or malformed Content-Disposition
// are silently skipped, per spec.md §4.4 and the open question in §9.1
// that preserves this lenient behavior rather than rejecting such
// requests outright.
func (r *Request) Multipart() (*MultipartForm, error) {
	r.multipartOnce.Do(func() {
		r.multipartVal, r.multipartErr = r.parseMultipart()
	})
	return r.multipartVal, r.multipartErr
}

func (r *Request) parseMultipart() (*MultipartForm, error) {
	contentType := r.raw.Header.Get("Content-Type")
	base, params, err := mime.ParseMediaType(contentType)
	if err != nil || base != "multipart/form-data" {
		return nil, kerrors.ValidationErr("request is not multipart/form-data")
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return nil, kerrors.ValidationErr("multipart request missing boundary")
	}

	form := &MultipartForm{
		Fields: make(map[string][]string),
		Files:  make(map[string][]FilePart),
	}

	reader := multipart.NewReader(r.raw.Body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, kerrors.Wrap(kerrors.Validation, "failed to read multipart body", err)
		}

		name := part.FormName()
		if name == "" {
			// Missing/malformed Content-Disposition: skip the part
			// silently (spec.md §4.4, §9.1).
			_, _ = io.Copy(io.Discard, part)
			continue
		}

		if filename := part.FileName(); filename != "" {
			data, err := readCapped(part, r.maxFileBytes)
			if err != nil {
				return nil, err
			}
			form.Files[name] = append(form.Files[name], FilePart{
				Filename: filename,
				Header:   map[string][]string(part.Header),
				Data:     data,
			})
			continue
		}

		data, err := readCapped(part, r.maxBodyBytes)
		if err != nil {
			return nil, err
		}
		form.Fields[name] = append(form.Fields[name], string(data))
	}

	return form, nil
}

func readCapped(r io.Reader, max int64) ([]byte, error) {
	limited := io.LimitReader(r, max+1)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, limited); err != nil {
		return nil, kerrors.Wrap(kerrors.Unexpected, "failed to read multipart part", err)
	}
	if int64(buf.Len()) > max {
		return nil, kerrors.PayloadTooLargeErr("Payload Too Large").WithData(map[string]any{
			"limitBytes": max,
		})
	}
	return buf.Bytes(), nil
}

func decodeMapstructure(src map[string]any, out any) error {
	if err := mapstructure.Decode(src, out); err != nil {
		return kerrors.Wrap(kerrors.Validation, "failed to decode form data", err)
	}
	return nil
}
