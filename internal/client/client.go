// Package client talks to a filedrop server: it uploads a local file and
// saves the newest stored file the way a browser would.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxUploadBytes is the client-side upload cap.
const MaxUploadBytes int64 = 2_000_000

const (
	uploadPath   = "/upload/uploadfile"
	downloadPath = "/download/downloadfile"

	// fallbackName is used when the server suggests no usable filename.
	fallbackName = "download"
)

// ErrFileTooLarge is returned by Upload when the file exceeds MaxUploadBytes.
// No request is sent in that case.
var ErrFileTooLarge = errors.New("file exceeds client upload limit")

// Result is the outcome shown to the user after an upload or download.
type Result struct {
	StatusCode int
	// Message is the server text with its outcome prefix, or a local message.
	Message string
	// FileID is the correlation token sent with an upload.
	FileID string
	// Path is where a download was saved.
	Path string
	Size int64
}

// OK reports whether the server answered with a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is a filedrop HTTP client.
type Client struct {
	http      *resty.Client
	routeBase string
	fs        afero.Fs
}

// Option configures a Client.
type Option func(*Client)

// WithFs sets the filesystem uploads are read from and downloads written to.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) { c.fs = fs }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// New returns a Client for the server at baseURL with endpoints under routeBase.
func New(baseURL, routeBase string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5*time.Minute).
			SetHeader("User-Agent", "filedrop-client/1.0").
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)),
		routeBase: strings.TrimRight(routeBase, "/"),
		fs:        afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends the file at path with a fresh correlation token. Files over
// MaxUploadBytes are refused locally with ErrFileTooLarge and a Result
// carrying the message to show.
func (c *Client) Upload(ctx context.Context, path string) (*Result, error) {
	st, err := c.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() > MaxUploadBytes {
		return &Result{
			Message: fmt.Sprintf("Max allowed upload size is %s. You attempted to upload %s.",
				humanize.Comma(MaxUploadBytes), humanize.Comma(st.Size())),
			Size: st.Size(),
		}, ErrFileTooLarge
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	token := uuid.NewString()
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"FileID": token}).
		SetFileReader("file", filepath.Base(path), f).
		Post(c.routeBase + uploadPath)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}

	prefix := "Upload failed: "
	if resp.IsSuccess() {
		prefix = "Upload success: "
	}
	return &Result{
		StatusCode: resp.StatusCode(),
		Message:    prefix + resp.String(),
		FileID:     token,
		Size:       st.Size(),
	}, nil
}

// Download fetches the newest stored file and saves it in dir under the
// filename suggested by the server, replacing a file of the same name.
// A non-2xx answer is returned as a Result, not an error.
func (c *Client) Download(ctx context.Context, dir string) (*Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(c.routeBase + downloadPath)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		text, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return &Result{
			StatusCode: resp.StatusCode(),
			Message:    "Download failed: " + string(text),
		}, nil
	}

	name := suggestedFilename(resp.Header().Get("Content-Disposition"))
	dest := filepath.Join(dir, name)
	n, err := c.save(body, dir, dest)
	if err != nil {
		return nil, err
	}
	return &Result{
		StatusCode: resp.StatusCode(),
		Message:    fmt.Sprintf("Saved %s (%s bytes)", dest, humanize.Comma(n)),
		Path:       dest,
		Size:       n,
	}, nil
}

// save writes r next to dest and renames it into place once complete.
func (c *Client) save(r io.Reader, dir, dest string) (int64, error) {
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(c.fs, dir, ".filedrop-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = c.fs.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := c.fs.Rename(tmpName, dest); err != nil {
		_ = c.fs.Remove(tmpName)
		return 0, fmt.Errorf("rename %s: %w", dest, err)
	}
	return n, nil
}

// suggestedFilename extracts the filename parameter of a Content-Disposition
// header, decoding the RFC 2231 filename* form. Only the base name is kept.
func suggestedFilename(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallbackName
	}
	name := filepath.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return fallbackName
	}
	return name
}

// DefaultBaseURL returns FILEDROP_URL or the local default.
func DefaultBaseURL() string {
	if v := os.Getenv("FILEDROP_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
