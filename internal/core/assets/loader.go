// Package assets resolves avatar asset ids, fetches glTF/GLB documents over
// HTTP or from disk and hands out private copies of their node hierarchy.
package assets

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/core/scene"
)

const (
	DefaultTimeout = 10 * time.Second
	MaxAssetSize   = 64 << 20
)

type Config struct {
	// BaseURL prefixes relative asset ids. It may be an http(s) URL or a
	// directory; empty means ids are paths relative to the working directory.
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout}
}

// Loader caches one parsed template per resolved location and returns a
// fresh clone on every Load. Concurrent loads of the same location share a
// single fetch.
type Loader struct {
	config Config
	client *http.Client
	logger log.Log

	mu        sync.RWMutex
	templates map[uint64]*scene.Node
	group     singleflight.Group
}

func NewLoader(config Config, logger log.Log) *Loader {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Loader{
		config:    config,
		client:    &http.Client{Timeout: config.Timeout},
		logger:    logger.With(log.String("component", "assets")),
		templates: make(map[uint64]*scene.Node),
	}
}

// Resolve maps an asset id to the location it is fetched from.
func (l *Loader) Resolve(assetID string) (string, error) {
	id := strings.TrimSpace(assetID)
	if id == "" {
		return "", ErrEmptyAssetID
	}
	if isHTTP(id) {
		return id, nil
	}
	// Ids come from remote peers and must stay inside the base.
	rel := strings.TrimLeft(id, "/")
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", errors.Wrapf(ErrUnsafeAssetID, "%q", id)
	}

	base := l.config.BaseURL
	if base == "" {
		return filepath.Clean(filepath.FromSlash(rel)), nil
	}
	if isHTTP(base) {
		u, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return "", errors.Wrap(err, "invalid asset base url")
		}
		ref, err := url.Parse(rel)
		if err != nil {
			return "", errors.Wrapf(err, "invalid asset id %q", id)
		}
		if ref.IsAbs() || ref.Host != "" {
			return "", errors.Wrapf(ErrUnsafeAssetID, "%q", id)
		}
		resolved := u.ResolveReference(ref)
		if resolved.Host != u.Host || !strings.HasPrefix(resolved.Path, u.Path) {
			return "", errors.Wrapf(ErrUnsafeAssetID, "%q", id)
		}
		return resolved.String(), nil
	}
	return filepath.Join(base, filepath.FromSlash(rel)), nil
}

// Load returns a private copy of the asset's scene tree.
func (l *Loader) Load(ctx context.Context, assetID string) (*scene.Node, error) {
	location, err := l.Resolve(assetID)
	if err != nil {
		return nil, err
	}
	key := xxhash.Sum64String(location)

	l.mu.RLock()
	tmpl, ok := l.templates[key]
	l.mu.RUnlock()
	if ok {
		return tmpl.Clone(), nil
	}

	v, err, shared := l.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		l.mu.RLock()
		tmpl, ok := l.templates[key]
		l.mu.RUnlock()
		if ok {
			return tmpl, nil
		}

		data, err := l.fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		root, err := Parse(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", location)
		}

		l.mu.Lock()
		l.templates[key] = root
		l.mu.Unlock()

		l.logger.Info("Asset cached",
			log.String("asset", assetID),
			log.String("location", location),
			log.Int("bytes", len(data)),
		)
		return root, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("Asset load shared", log.String("asset", assetID))
	}
	return v.(*scene.Node).Clone(), nil
}

// Cached is the number of parsed templates held.
func (l *Loader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// Purge drops every cached template.
func (l *Loader) Purge() {
	l.mu.Lock()
	l.templates = make(map[uint64]*scene.Node)
	l.mu.Unlock()
}

func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	if !isHTTP(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrap(err, "open asset")
		}
		defer f.Close()
		return readLimited(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build asset request")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", location)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrFetchFailed, "GET %s: %s", location, resp.Status)
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAssetSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read asset")
	}
	if len(data) > MaxAssetSize {
		return nil, ErrAssetTooLarge
	}
	return data, nil
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
