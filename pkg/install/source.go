package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/version"
)

// ErrNoPayload is returned by a [PayloadSource] that has nothing for a rule.
// [Chain] moves on to the next source when it sees it.
var ErrNoPayload = errors.New("no payload")

// DefaultFetchTimeout bounds a single payload download.
const DefaultFetchTimeout = 10 * time.Second

const maxPayloadSize = 8 << 20

var errUnexpectedStatus = errors.New("unexpected status")

// PayloadSource provides the payload of a rule.
type PayloadSource interface {
	Payload(ctx context.Context, r *catalog.Rule) ([]byte, error)
}

// PayloadSourceFunc adapts a function to [PayloadSource].
type PayloadSourceFunc func(ctx context.Context, r *catalog.Rule) ([]byte, error)

// Payload calls f.
func (f PayloadSourceFunc) Payload(ctx context.Context, r *catalog.Rule) ([]byte, error) {
	return f(ctx, r)
}

// DirSource reads payloads from a catalog rules directory, using each rule's
// content path.
type DirSource struct {
	Dir string
}

// Payload implements [PayloadSource].
func (s DirSource) Payload(_ context.Context, r *catalog.Rule) ([]byte, error) {
	if s.Dir == "" {
		return nil, ErrNoPayload
	}

	path := filepath.Join(s.Dir, filepath.FromSlash(r.ContentPath()))

	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is validated relative to Dir.
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoPayload, path)
	}

	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return data, nil
}

// InlineSource returns the rule's inline content.
type InlineSource struct{}

// Payload implements [PayloadSource].
func (InlineSource) Payload(_ context.Context, r *catalog.Rule) ([]byte, error) {
	if r.Content == "" {
		return nil, ErrNoPayload
	}

	return []byte(r.Content), nil
}

// URLSource downloads payloads. A rule's own URL takes precedence; otherwise
// the payload file name is appended to BaseURL when it is set.
type URLSource struct {
	Client  *http.Client
	BaseURL string
	Timeout time.Duration
}

// Payload implements [PayloadSource].
func (s URLSource) Payload(ctx context.Context, r *catalog.Rule) ([]byte, error) {
	u := r.URL
	if u == "" && s.BaseURL != "" {
		u = strings.TrimSuffix(s.BaseURL, "/") + "/" + r.ContentPath()
	}

	if u == "" {
		return nil, ErrNoPayload
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download payload: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			slog.DebugContext(ctx, "close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download payload %s: %w: %s", u, errUnexpectedStatus, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return data, nil
}

// Chain tries each source in order and returns the first payload found.
type Chain []PayloadSource

// Payload implements [PayloadSource].
func (c Chain) Payload(ctx context.Context, r *catalog.Rule) ([]byte, error) {
	var errs []error

	for _, src := range c {
		data, err := src.Payload(ctx, r)
		if err == nil {
			return data, nil
		}

		if !errors.Is(err, ErrNoPayload) {
			return nil, err
		}

		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w for rule %q", ErrNoPayload, r.Name)
	}

	return nil, fmt.Errorf("rule %q: %w", r.Name, errors.Join(errs...))
}

// NewSource builds the default chain: inline content, then the rules
// directory, then remote URLs.
func NewSource(rulesDir, baseURL string, timeout time.Duration) Chain {
	return Chain{
		InlineSource{},
		DirSource{Dir: rulesDir},
		URLSource{BaseURL: baseURL, Timeout: timeout},
	}
}
