// Package http reads remote containers through HTTP range requests.
//
// A Source fetches only the byte ranges the archive asks for: the header
// and directory at open time, then each entry body on first load.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
)

// ErrRangeUnsupported is returned when the server ignores Range headers.
var ErrRangeUnsupported = errors.New("http: range requests not supported")

// Source implements random access reads via HTTP range requests.
// It satisfies lump.ByteSource.
type Source struct {
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	size         int64
	etag         string
	lastModified string
	sourceID     string
	conditional  bool
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header on each request, e.g. Authorization.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier used for caching.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithConditionalHeaders pins range reads to the content seen at open time
// using If-Match or If-Unmodified-Since. Servers that reject the condition
// with 412 are retried without it.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.conditional = true
	}
}

// NewSource probes url for its size and range support.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if err := s.probe(ctx); err != nil {
		return nil, err
	}
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	return s, nil
}

// Size returns the size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote content.
func (s *Source) SourceID() string {
	return s.sourceID
}

// ReadAt fetches len(p) bytes at off. Reads that run past the end return
// the available bytes with io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := int(min(int64(len(p)), s.size-off))

	resp, err := s.get(context.Background(), off, off+int64(want)-1)
	if err != nil {
		return 0, err
	}
	defer drain(resp.Body)

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, fmt.Errorf("read range %d-%d: %w", off, off+int64(want)-1, err)
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// get issues a ranged GET for [off, end] and returns a 206 response.
func (s *Source) get(ctx context.Context, off, end int64) (*nethttp.Response, error) {
	resp, err := s.do(ctx, off, end, s.conditional)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == nethttp.StatusPreconditionFailed && s.conditional {
		drain(resp.Body)
		if resp, err = s.do(ctx, off, end, false); err != nil {
			return nil, err
		}
	}
	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return resp, nil
	case nethttp.StatusRequestedRangeNotSatisfiable:
		drain(resp.Body)
		return nil, io.EOF
	case nethttp.StatusOK:
		drain(resp.Body)
		return nil, ErrRangeUnsupported
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}
}

func (s *Source) do(ctx context.Context, off, end int64, conditional bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	if conditional {
		if s.etag != "" {
			req.Header.Set("If-Match", s.etag)
		} else if s.lastModified != "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return s.client.Do(req)
}

// probe learns the content size from the Content-Range of a one-byte read.
func (s *Source) probe(ctx context.Context) error {
	resp, err := s.do(ctx, 0, 0, false)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("range probe failed: %s", resp.Status)
	}
	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

func (s *Source) defaultSourceID() string {
	switch {
	case s.etag != "":
		return fmt.Sprintf("url:%s|etag:%s", s.url, s.etag)
	case s.lastModified != "":
		return fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.lastModified, s.size)
	default:
		return fmt.Sprintf("url:%s|size:%d", s.url, s.size)
	}
}

// drain consumes and closes a response body so the connection is reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain for connection reuse
	_ = body.Close()
}

// parseContentRange extracts the total size from "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
