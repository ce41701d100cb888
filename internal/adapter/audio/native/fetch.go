package native

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tejashwikalptaru/beatify/internal/domain"
)

const fetchTimeout = 30 * time.Second

// openSource resolves src to a decoded Source. Local paths are opened from
// disk; http(s) URLs are downloaded into memory up to maxBytes.
func openSource(ctx context.Context, client *http.Client, src string, maxBytes int64) (Source, error) {
	if isRemote(src) {
		data, err := fetch(ctx, client, src, maxBytes)
		if err != nil {
			return nil, domain.NewDecodeError(src, "", err.Error(), domain.ErrUnsupportedFormat)
		}
		return decodeSource(src, bytes.NewReader(data), nil)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, domain.NewDecodeError(src, "", "failed to open file", err)
	}
	s, err := decodeSource(src, f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func fetch(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching source: unexpected status %s", resp.Status)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("source is %d bytes, limit is %d", resp.ContentLength, maxBytes)
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("source exceeds limit of %d bytes", maxBytes)
	}
	return data, nil
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func stripQuery(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 && isRemote(src) {
		return src[:i]
	}
	return src
}
