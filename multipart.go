package aeris

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
)

// MultipartOptions configures the multipart parser (spec.md §4.7).
type MultipartOptions struct {
	// SpoolMaxSize is the per-part in-memory threshold; a part larger
	// than this moves into a SpooledFile from Pool, which keeps data in
	// memory up to its own limit and then spills to a temporary file.
	// Zero, or a nil Pool, keeps every part in memory.
	SpoolMaxSize int64

	// MaxFieldSize aborts a part once it exceeds this many bytes,
	// regardless of spooling, with a 400 (spec.md §4.7).
	MaxFieldSize int64

	Pool *SpoolPool
}

// ParseMultipart parses a multipart/form-data body into a
// MultipartContent, moving each part larger than Options.SpoolMaxSize into
// Options.Pool per spec.md §4.7.
// A "_charset_" part (RFC 7578 §4.6) sets the default charset applied to
// subsequent parts that don't declare their own.
func ParseMultipart(contentType string, body io.Reader, opts MultipartOptions) (*MultipartContent, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, BadRequest("invalid multipart Content-Type: " + err.Error())
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, BadRequest("multipart Content-Type is missing a boundary")
	}

	mr := multipart.NewReader(body, boundary)

	content := &MultipartContent{Type: contentType}
	defaultCharset := ""

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, BadRequest("malformed multipart body: " + err.Error())
		}

		fp, raw, isCharsetPart, err := readFormPart(part, opts)
		part.Close()
		if err != nil {
			return nil, err
		}

		if isCharsetPart {
			defaultCharset = string(raw)
			continue
		}

		if fp.Charset == "" {
			fp.Charset = defaultCharset
		}

		content.Parts = append(content.Parts, fp)
	}

	return content, nil
}

// readFormPart buffers a single multipart.Part, honoring MaxFieldSize and
// spilling to disk past SpoolMaxSize.
func readFormPart(part *multipart.Part, opts MultipartOptions) (*FormPart, []byte, bool, error) {
	name := part.FormName()
	fileName := part.FileName()
	isCharset := name == "_charset_" && fileName == ""

	fp := &FormPart{
		Name:        name,
		FileName:    fileName,
		ContentType: part.Header.Get("Content-Type"),
	}

	limited := part
	var total int64
	var buf []byte
	var spooled *SpooledFile

	chunk := make([]byte, 32*1024)
	for {
		n, err := limited.Read(chunk)
		if n > 0 {
			total += int64(n)
			if opts.MaxFieldSize > 0 && total > opts.MaxFieldSize {
				if spooled != nil {
					spooled.Close()
				}
				return nil, nil, false, BadRequest("multipart field exceeds max_field_size")
			}

			if spooled != nil {
				if _, werr := spooled.Write(chunk[:n]); werr != nil {
					spooled.Close()
					return nil, nil, false, werr
				}
			} else {
				buf = append(buf, chunk[:n]...)
				if opts.Pool != nil && int64(len(buf)) > opts.SpoolMaxSize && opts.SpoolMaxSize > 0 {
					spooled = opts.Pool.New()
					if _, werr := spooled.Write(buf); werr != nil {
						spooled.Close()
						return nil, nil, false, werr
					}
					buf = nil
				}
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if spooled != nil {
				spooled.Close()
			}
			return nil, nil, false, err
		}
	}

	if isCharset {
		return fp, buf, true, nil
	}

	if spooled != nil {
		fp.File = spooled
	} else {
		fp.Data = buf
	}

	return fp, nil, false, nil
}
