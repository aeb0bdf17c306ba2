// Package media downloads attachments referenced by messaging providers.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"grievance/backend/internal/config"
)

// ErrTooLarge is returned when the attachment exceeds the size ceiling.
var ErrTooLarge = errors.New("media exceeds size limit")

// Downloader fetches attachments with a bounded timeout and size.
type Downloader struct {
	Client   *http.Client
	MaxBytes int64
	// Username and Password are sent as basic auth when set (Twilio media URLs require it).
	Username string
	Password string
}

func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = config.DefaultOutboundTimeout
	}
	return &Downloader{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: config.MaxMediaBytes,
	}
}

// WithBasicAuth returns a copy of d that authenticates as user.
func (d *Downloader) WithBasicAuth(user, password string) *Downloader {
	c := *d
	c.Username = user
	c.Password = password
	return &c
}

// Fetch returns the body and its content type.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	if d.Username != "" {
		req.SetBasicAuth(d.Username, d.Password)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > d.MaxBytes {
		return nil, "", ErrTooLarge
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return data, strings.TrimSpace(mime), nil
}
