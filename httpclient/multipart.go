package httpclient

import (
	"bytes"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/textproto"
	"slices"
)

// MultipartBody is a multipart/form-data request body. Fields are written
// in key order, before the files.
type MultipartBody struct {
	Fields map[string]string
	Files  []FileField
}

// FileField is one file part. Reader is read when Data is nil, and
// ContentType defaults to application/octet-stream.
type FileField struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
	Reader      io.Reader
}

func (m *MultipartBody) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, k := range slices.Sorted(maps.Keys(m.Fields)) {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", err
		}
	}
	for _, f := range m.Files {
		if err := f.writeTo(w); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (f FileField) writeTo(w *multipart.Writer) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     f.FieldName,
		"filename": f.FileName,
	}))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	src := f.Reader
	if f.Data != nil {
		src = bytes.NewReader(f.Data)
	}
	if src == nil {
		return nil
	}
	_, err = io.Copy(part, src)
	return err
}
