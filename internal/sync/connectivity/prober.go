package connectivity

import (
	"context"
	"io"
	"net/http"
	"net/url"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	syncpkg "github.com/kimhsiao/menuscan/backend/internal/sync"
)

// Connectivity modes.
const (
	ModeProbe   = "probe"
	ModeOnline  = "online"
	ModeOffline = "offline"
)

// Prober checks whether the sync server can be reached.
type Prober interface {
	Probe(ctx context.Context) bool
}

// StaticProber always reports the same status.
type StaticProber bool

// Probe returns the fixed status.
func (p StaticProber) Probe(context.Context) bool {
	return bool(p)
}

// HTTPProber issues GET URL. Any response below 500 counts as reachable.
type HTTPProber struct {
	URL    string
	Client syncpkg.Doer
}

// Probe reports whether the server answered.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}

// NewProber builds the prober for a connectivity mode. In probe mode an empty
// base URL means there is no server, so the prober always reports offline.
func NewProber(mode, baseURL, healthPath string, client syncpkg.Doer) (Prober, error) {
	switch mode {
	case ModeOnline:
		return StaticProber(true), nil
	case ModeOffline:
		return StaticProber(false), nil
	case ModeProbe, "":
		if baseURL == "" {
			return StaticProber(false), nil
		}
		base, err := url.Parse(baseURL)
		if err != nil || !base.IsAbs() {
			return nil, apperrors.Newf(apperrors.ErrConfig, "invalid server base URL %q", baseURL)
		}
		ref, err := url.Parse(healthPath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, "invalid health path", err)
		}
		return &HTTPProber{URL: syncpkg.JoinURL(base, ref), Client: client}, nil
	}
	return nil, apperrors.Newf(apperrors.ErrConfig, "unknown connectivity mode %q", mode)
}
