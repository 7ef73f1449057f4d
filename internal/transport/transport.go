package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"habla/internal/services"
)

const defaultUserAgent = "habla/0.1"

// Progress reports bytes moved for one stream. BytesTotal is zero when
// the server did not declare a length.
type Progress struct {
	BytesDone  int64
	BytesTotal int64
}

// Downloader fetches one stream into a destination file.
type Downloader interface {
	// Download writes the stream at url into dest. When dest already holds
	// a partial file and the server supports ranges, the download resumes
	// from the existing offset. Returns total bytes present in dest and
	// whether the server advertised resume support.
	Download(ctx context.Context, url, dest string, onProgress func(Progress)) (int64, bool, error)
}

// headerTransport injects standing headers into every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// HTTP is the production Downloader.
type HTTP struct {
	client *http.Client
}

// Option configures the HTTP downloader.
type Option func(*HTTP)

// WithClient overrides the underlying HTTP client.
func WithClient(client *http.Client) Option {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTP constructs a downloader with sane defaults.
func NewHTTP(opts ...Option) *HTTP {
	h := &HTTP{
		client: &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{"User-Agent": defaultUserAgent},
				base:    http.DefaultTransport,
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTP) Download(ctx context.Context, url, dest string, onProgress func(Progress)) (int64, bool, error) {
	var offset int64
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return offset, false, classifyNetErr(err)
	}
	defer resp.Body.Close()

	resumable := resp.Header.Get("Accept-Ranges") == "bytes" || resp.StatusCode == http.StatusPartialContent

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// Server honored the range; keep the existing bytes.
	case resp.StatusCode == http.StatusOK:
		// Full body; any partial file is stale.
		offset = 0
	default:
		return offset, resumable, classifyStatus(resp.StatusCode)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return offset, resumable, fmt.Errorf("open destination: %w", err)
	}
	defer out.Close()

	total := offset
	declared := int64(0)
	if resp.ContentLength > 0 {
		declared = offset + resp.ContentLength
	}

	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return total, resumable, err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return total, resumable, fmt.Errorf("write destination: %w", writeErr)
			}
			total += int64(n)
			if onProgress != nil {
				onProgress(Progress{BytesDone: total, BytesTotal: declared})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return total, resumable, classifyNetErr(readErr)
		}
	}

	if declared > 0 && total < declared {
		return total, resumable, services.Wrap(services.ErrTransient, "download", "",
			fmt.Sprintf("short read: got %d of %d bytes", total, declared), nil)
	}
	if err := out.Close(); err != nil {
		return total, resumable, fmt.Errorf("close destination: %w", err)
	}
	return total, resumable, nil
}

// classifyStatus maps HTTP status codes onto the retry taxonomy. Server
// errors and throttling are transient; missing or locked content is not.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return services.Wrap(services.ErrNotFound, "download", "",
			fmt.Sprintf("stream removed or unavailable (HTTP %d)", code), nil)
	case code == http.StatusUnauthorized || code == http.StatusForbidden ||
		code == http.StatusUnavailableForLegalReasons:
		return services.Wrap(services.ErrValidation, "download", "",
			fmt.Sprintf("access denied (HTTP %d): content may require login or be geo-blocked", code), nil)
	case code == http.StatusTooManyRequests || code >= 500:
		return services.Wrap(services.ErrTransient, "download", "",
			fmt.Sprintf("server error (HTTP %d)", code), nil)
	default:
		return fmt.Errorf("download: unexpected HTTP status %d", code)
	}
}

func classifyNetErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "download", "", "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "download", "", "network failure", err)
}

// Backoff returns the delay before the given retry attempt (1-based).
// Exponential with a small base so a budget of three attempts stays
// under a couple of seconds total.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := 500 * time.Millisecond << (attempt - 1)
	if delay > 8*time.Second {
		delay = 8 * time.Second
	}
	return delay
}
