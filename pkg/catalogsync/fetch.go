package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/version"
)

// DefaultTimeout bounds a single remote fetch.
const DefaultTimeout = 10 * time.Second

// maxCatalogSize caps the size of a fetched catalog document.
const maxCatalogSize = 32 << 20

var errUnexpectedStatus = errors.New("unexpected status")

// Fetcher retrieves catalog documents. Sources are http(s) URLs, file://
// URLs or plain filesystem paths. Each fetch is a single attempt.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// FetcherOpt configures a [Fetcher].
type FetcherOpt func(*Fetcher)

// WithTimeout bounds each fetch. Zero or negative values select
// [DefaultTimeout].
func WithTimeout(d time.Duration) FetcherOpt {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) FetcherOpt {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a new [Fetcher].
func NewFetcher(opts ...FetcherOpt) *Fetcher {
	f := &Fetcher{
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch retrieves and parses the catalog at source. Retrieval failures are
// returned as a [*RemoteUnavailableError]. A document that is retrieved but
// fails validation is returned as a plain error.
func (f *Fetcher) Fetch(ctx context.Context, source string) (*catalog.Snapshot, error) {
	data, err := f.FetchBytes(ctx, source)
	if err != nil {
		return nil, err
	}

	snap, err := catalog.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("remote catalog %s: %w", source, err)
	}

	return snap, nil
}

// FetchBytes retrieves the raw document at source.
func (f *Fetcher) FetchBytes(ctx context.Context, source string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		data []byte
		err  error
	)

	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err = f.fetchHTTP(ctx, source)
	default:
		data, err = readLocal(source)
	}

	if err != nil {
		return nil, &RemoteUnavailableError{Source: source, Err: err}
	}

	slog.DebugContext(ctx, "fetched catalog",
		slog.String("source", source),
		slog.Int("bytes", len(data)),
	)

	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			slog.DebugContext(ctx, "close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", errUnexpectedStatus, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return data, nil
}

func readLocal(source string) ([]byte, error) {
	path := source

	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}

		path = u.Path
	}

	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return data, nil
}
