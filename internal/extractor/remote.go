// internal/extractor/remote.go
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	commonhttp "shoe-size-analytics/internal/common/http"
)

const maxRemoteTextBytes = 16 << 20

// Remote delegates extraction to an Apache Tika compatible server
// (PUT <url> with the raw document, plain text back). It is used for legacy
// .doc files that Local cannot read.
type Remote struct {
	url     string
	client  *commonhttp.Client
	formats map[Format]bool
}

func NewRemote(url string, timeout time.Duration, formats ...Format) *Remote {
	if len(formats) == 0 {
		formats = []Format{FormatDOC}
	}
	accept := make(map[Format]bool, len(formats))
	for _, f := range formats {
		accept[f] = true
	}
	return &Remote{
		url:     url,
		client:  commonhttp.NewClient(timeout, commonhttp.WithRetries(2, 250*time.Millisecond)),
		formats: accept,
	}
}

func (r *Remote) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	if !r.formats[FormatOf(filename)] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Accept", "text/plain; charset=utf-8")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-File-Name", filename)

	resp, err := r.client.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("extraction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteTextBytes))
	if err != nil {
		return "", fmt.Errorf("read extraction response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: %s rejected by extraction service", ErrCorruptDocument, filename)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrEmptyDocument
	}
	return string(body), nil
}
