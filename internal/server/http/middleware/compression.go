package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/offramp/internal/server/http/dto"
)

// MaxRequestBody caps order API payloads after decompression.
const MaxRequestBody int64 = 64 << 10

// LimitRequestBody bounds every request body to limit bytes and inflates
// gzip encoded bodies so handlers always read plain JSON.
func LimitRequestBody(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = MaxRequestBody
	}
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		raw := http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		if !strings.Contains(strings.ToLower(c.GetHeader("Content-Encoding")), "gzip") {
			c.Request.Body = raw
			c.Next()
			return
		}

		inflated, err := gzip.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed gzip body"})
			return
		}
		c.Request.Body = &gzipBody{Reader: io.LimitReader(inflated, limit+1), inflated: inflated, raw: raw, limit: limit}
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}

// gzipBody fails reads past limit so a small compressed payload cannot expand
// without bound.
type gzipBody struct {
	io.Reader
	inflated *gzip.Reader
	raw      io.ReadCloser
	limit    int64
	read     int64
}

func (b *gzipBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	b.read += int64(n)
	if b.read > b.limit {
		return n, &http.MaxBytesError{Limit: b.limit}
	}
	return n, err
}

func (b *gzipBody) Close() error {
	_ = b.inflated.Close()
	return b.raw.Close()
}
