package api

// this code based on https://github.com/unrolled/logger, but expanded
// to optionally dump the req/resp body

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// HTTPLogger can be used to log http requests
type HTTPLogger struct {
	*log.Logger
	// log request and response bodies
	DumpBody bool
}

// NewHTTPLogger returns a http logger that writes to stdout
func NewHTTPLogger(prefix string) *HTTPLogger {
	return &HTTPLogger{
		Logger:   log.New(os.Stdout, prefix, log.LstdFlags),
		DumpBody: true,
	}
}

// Handler wraps an HTTP handler and logs the request as necessary.
func (l *HTTPLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var reqBody []byte
		if l.DumpBody && r.Body != nil {
			var err error
			reqBody, err = io.ReadAll(r.Body)
			if err != nil {
				l.Printf("Error reading request body: %v", err)
			}
			r.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		crw := newCustomResponseWriter(w, l.DumpBody)
		next.ServeHTTP(crw, r)

		if l.DumpBody {
			l.Printf("(%s) \"%s %s\" %d %v -> %s -> %s", r.RemoteAddr, r.Method, r.RequestURI,
				crw.status, time.Since(start), reqBody, bytes.TrimSpace(crw.buf.Bytes()))
		} else {
			l.Printf("(%s) \"%s %s\" %d %v %dB", r.RemoteAddr, r.Method, r.RequestURI,
				crw.status, time.Since(start), crw.size)
		}
	})
}

type customResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
	dump   bool
	buf    bytes.Buffer
}

func (c *customResponseWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *customResponseWriter) Write(b []byte) (int, error) {
	size, err := c.ResponseWriter.Write(b)
	if c.dump {
		c.buf.Write(b)
	}
	c.size += size
	return size, err
}

func (c *customResponseWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func newCustomResponseWriter(w http.ResponseWriter, dump bool) *customResponseWriter {
	// When WriteHeader is not called, it's safe to assume the status will be 200.
	return &customResponseWriter{
		ResponseWriter: w,
		status:         200,
		dump:           dump,
	}
}
