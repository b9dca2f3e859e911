// Package peer talks to other filey instances: liveness probes, remote file
// listings, downloads and local subnet discovery.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/VintageWander/filey/internal/apperr"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/pkg/protocol"
	"github.com/VintageWander/filey/pkg/retry"
)

// Client queries peers over HTTP. It is safe for concurrent use.
type Client struct {
	port        int
	timeout     time.Duration
	retryConfig retry.Config
	httpClient  *http.Client
}

// Config holds client configuration.
type Config struct {
	Port        int           // defaults to protocol.PeerPort
	Timeout     time.Duration // per probe or listing; defaults to 2s
	RetryConfig retry.Config  // used by ListFiles and Download
	HTTPClient  *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = protocol.PeerPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.HTTPClient == nil {
		// No client-wide timeout: downloads may run long, and probes and
		// listings carry their own deadline.
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	return &Client{
		port:        cfg.Port,
		timeout:     cfg.Timeout,
		retryConfig: cfg.RetryConfig,
		httpClient:  cfg.HTTPClient,
	}
}

// RemoteError is an error envelope returned by a reachable peer.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("peer replied %d: %s", e.StatusCode, e.Message)
}

func (c *Client) url(address, path string, query url.Values) string {
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(address, strconv.Itoa(c.port)),
		Path:     path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Probe asks address for its OS tag. Any failure, including a timeout, a
// non-filey reply or an unknown OS tag, is PeerUnreachable. Probes are never
// retried.
func (c *Client) Probe(ctx context.Context, address string) (protocol.PeerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tag, err := getJSON[protocol.OSType](ctx, c, c.url(address, "/info", nil))
	metrics.RecordPeerProbe(err == nil)
	if err != nil {
		return protocol.PeerInfo{}, apperr.E(apperr.PeerUnreachable, "peer.probe "+address, unwrapRetry(err))
	}
	return protocol.PeerInfo{Address: address, OSType: tag}, nil
}

// ListFiles fetches the public files of address. Transport failures are
// retried within the call's timeout.
func (c *Client) ListFiles(ctx context.Context, address string) ([]protocol.FileSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	files, err := retry.Do(ctx, c.retryConfig, func(ctx context.Context) ([]protocol.FileSummary, error) {
		return getJSON[[]protocol.FileSummary](ctx, c, c.url(address, "/files", nil))
	})
	if err != nil {
		return nil, apperr.E(apperr.PeerUnreachable, "peer.files "+address, err)
	}
	if files == nil {
		files = []protocol.FileSummary{}
	}
	return files, nil
}

var errNoData = errors.New("envelope has no data")

// getJSON fetches an envelope and returns its data. A missing or null data
// field is an error. Transport errors are
// marked retryable unless the context has ended.
func getJSON[T any](ctx context.Context, c *Client, u string) (T, error) {
	var zero T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return zero, err
		}
		return zero, retry.Retryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, remoteError(resp)
	}

	var env protocol.Envelope[*T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decode %s: %w", u, err)
	}
	if env.Data == nil {
		return zero, fmt.Errorf("decode %s: %w", u, errNoData)
	}
	return *env.Data, nil
}

func remoteError(resp *http.Response) error {
	var env protocol.Envelope[json.RawMessage]
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &env); err != nil || env.Message == "" {
		env.Message = http.StatusText(resp.StatusCode)
	}
	return &RemoteError{StatusCode: resp.StatusCode, Message: env.Message}
}

func unwrapRetry(err error) error {
	var r retry.RetryableError
	if errors.As(err, &r) {
		return r.Err
	}
	return err
}

// DownloadOptions selects the disposition and an optional byte range.
type DownloadOptions struct {
	Mode   protocol.Mode
	Offset int64
	Length int64 // 0 reads to the end
}

// Download describes a finished transfer.
type Download struct {
	Name    string // filename from Content-Disposition
	Mime    string
	Written int64
	Partial bool
}

// Download streams file id from address into w. Only establishing the
// response is retried; a transfer that fails midway is returned as is.
func (c *Client) Download(ctx context.Context, address string, id uuid.UUID, opts DownloadOptions, w io.Writer) (Download, error) {
	op := "peer.download " + address
	mode := opts.Mode
	if mode == "" {
		mode = protocol.ModeView
	}
	u := c.url(address, "/files/"+id.String(), url.Values{"mode": {string(mode)}})

	resp, err := retry.Do(ctx, c.retryConfig, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if opts.Offset > 0 || opts.Length > 0 {
			if opts.Length > 0 {
				req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", opts.Offset, opts.Offset+opts.Length-1))
			} else {
				req.Header.Set("Range", fmt.Sprintf("bytes=%d-", opts.Offset))
			}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, retry.Retryable(err)
		}
		return resp, nil
	})
	if err != nil {
		return Download{}, apperr.E(apperr.PeerUnreachable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return Download{}, fmt.Errorf("%s: %w", op, remoteError(resp))
	}

	d := Download{
		Mime:    resp.Header.Get("Content-Type"),
		Partial: resp.StatusCode == http.StatusPartialContent,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		d.Name = params["filename"]
	}

	d.Written, err = io.Copy(w, resp.Body)
	if err != nil {
		return d, apperr.E(apperr.PeerUnreachable, op, err)
	}
	return d, nil
}
