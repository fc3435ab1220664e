package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/http/httpguts"

	"aeris.dev/aeris"
)

// GzipPool runs gzip compression on a bounded set of worker goroutines
// (spec.md §7 "the gzip middleware offloads compression onto a bounded
// worker pool"). The request goroutine waits for its job's result (see
// Compress) and stops waiting once its context is cancelled. It reuses *gzip.Writer values
// via sync.Pool the same way the teacher's Air.gzipWriterPool did.
type GzipPool struct {
	jobs    chan gzipJob
	writers sync.Pool
}

type gzipJob struct {
	data   []byte
	result chan gzipResult
}

type gzipResult struct {
	data []byte
	err  error
}

// NewGzipPool starts workers goroutines, each serving compression jobs at
// the given gzip level (gzip.DefaultCompression if 0).
func NewGzipPool(workers, level int) *GzipPool {
	if workers <= 0 {
		workers = 1
	}
	if level == 0 {
		level = gzip.DefaultCompression
	}

	p := &GzipPool{jobs: make(chan gzipJob, workers*4)}
	p.writers.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, level)
		return w
	}

	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *GzipPool) run() {
	for job := range p.jobs {
		w := p.writers.Get().(*gzip.Writer)
		var buf bytes.Buffer
		w.Reset(&buf)

		_, err := w.Write(job.data)
		if err == nil {
			err = w.Close()
		}
		p.writers.Put(w)

		job.result <- gzipResult{data: buf.Bytes(), err: err}
	}
}

// Compress gzips data on a pool worker, blocking the caller until the
// result is ready or ctx is cancelled.
func (p *GzipPool) Compress(ctx context.Context, data []byte) ([]byte, error) {
	result := make(chan gzipResult, 1)
	select {
	case p.jobs <- gzipJob{data: data, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-result:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GzipConfig configures the Gzip middleware.
type GzipConfig struct {
	// MinContentLength is the smallest in-memory body size, in bytes,
	// worth compressing. Bodies smaller than this are served as-is.
	MinContentLength int64

	// MIMETypes restricts compression to these content types; empty
	// means compress any type.
	MIMETypes []string
}

// Gzip returns a middleware that gzip-compresses in-memory response
// bodies when the client's Accept-Encoding allows it, using pool to keep
// the work off the request goroutine. Streamed, spooled, and SSE bodies
// are left untouched, matching the host framework's own restriction to
// bodies it can fully measure up front.
func Gzip(pool *GzipPool, config GzipConfig) aeris.MiddlewareFunc {
	return func(req *aeris.Request, next aeris.Handler) (*aeris.Response, error) {
		resp, err := next(req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return resp, nil
		}

		if !httpguts.HeaderValuesContainsToken(req.Header.Values("Accept-Encoding"), "gzip") {
			addVaryAcceptEncoding(resp)
			return resp, nil
		}

		mem, ok := resp.Body.(*aeris.InMemoryContent)
		if !ok {
			addVaryAcceptEncoding(resp)
			return resp, nil
		}
		if int64(len(mem.Data)) < config.MinContentLength {
			addVaryAcceptEncoding(resp)
			return resp, nil
		}
		if len(config.MIMETypes) > 0 && !containsMIMEType(config.MIMETypes, mem.Type) {
			addVaryAcceptEncoding(resp)
			return resp, nil
		}
		if httpguts.HeaderValuesContainsToken(resp.Header.Values("Content-Encoding"), "gzip") {
			addVaryAcceptEncoding(resp)
			return resp, nil
		}

		compressed, cerr := pool.Compress(req.Context(), mem.Data)
		if cerr != nil {
			addVaryAcceptEncoding(resp)
			return resp, nil
		}

		resp.Header.Add("Content-Encoding", "gzip")
		resp.Header.Delete("Content-Length")
		if et := resp.Header.Get("ETag"); et != "" {
			resp.Header.Set("ETag", strings.TrimSuffix(et, `"`)+`-gzip"`)
		}
		resp.Body = &aeris.InMemoryContent{Type: mem.Type, Data: compressed}
		addVaryAcceptEncoding(resp)
		return resp, nil
	}
}

func addVaryAcceptEncoding(resp *aeris.Response) {
	if !httpguts.HeaderValuesContainsToken(resp.Header.Values("Vary"), "Accept-Encoding") {
		resp.Header.Add("Vary", "Accept-Encoding")
	}
}

func containsMIMEType(types []string, mimeType string) bool {
	for _, t := range types {
		if t == mimeType {
			return true
		}
	}
	return false
}
