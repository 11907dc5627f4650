// Copyright 2025 AltAuthor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package image normalizes image references into a form embeddable in a
// vision model request. Remote bitmaps and data URIs pass through unchanged;
// SVG documents are rasterized to PNG and inlined as a data URI.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/internal/utils"
)

const (
	defaultCacheTTL  = 30 * time.Minute
	defaultRasterDim = 512
	maxRasterDim     = 2048
)

// Resolver turns an image reference into an embeddable string. Safe for
// concurrent use: transient rasterization files are keyed by a per-request
// unique token, so concurrent requests for the same source never collide.
type Resolver struct {
	cacheDir string
	client   *http.Client
	cache    *gocache.Cache
}

type ResolverOptions struct {
	CacheDir   string        // transient PNG directory, default: os.TempDir()/altauthor-svg
	HTTPClient *http.Client  // default: 15s timeout client
	CacheTTL   time.Duration // in-memory data-URI cache TTL, default: 30m
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(os.TempDir(), "altauthor-svg")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	return &Resolver{
		cacheDir: opts.CacheDir,
		client:   opts.HTTPClient,
		cache:    gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// Resolve returns an embeddable image reference. SVG references are
// rasterized; everything else passes through unchanged. Rasterization
// failure is fatal for the request: no retry, the error propagates.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", fmt.Errorf("resolve image: empty reference")
	}
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	if !isSVG(ref) {
		return ref, nil
	}
	if cached, ok := r.cache.Get(ref); ok {
		return cached.(string), nil
	}
	uri, err := r.rasterize(ctx, ref)
	if err != nil {
		return "", err
	}
	r.cache.Set(ref, uri, gocache.DefaultExpiration)
	return uri, nil
}

// isSVG reports whether the reference path names a vector document. The
// query string is ignored so signed CDN URLs are detected too.
func isSVG(reference string) bool {
	u, err := url.Parse(reference)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(reference), ".svg")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".svg")
}

// rasterize fetches the SVG, renders it to PNG via a transient on-disk file
// and returns the PNG as an inline data URI. The transient file is removed
// regardless of success; cleanup failure is logged, never propagated.
func (r *Resolver) rasterize(ctx context.Context, ref string) (string, error) {
	log.Info("converting SVG to PNG: %s", ref)
	raw, err := r.fetch(ctx, ref)
	if err != nil {
		return "", utils.WrapError(err, "fetch svg")
	}
	pngData, err := renderPNG(raw)
	if err != nil {
		return "", utils.WrapError(err, "rasterize svg")
	}

	if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
		return "", utils.WrapError(err, "create svg cache dir")
	}
	pngPath := filepath.Join(r.cacheDir, uuid.NewString()+".png")
	defer func() {
		if rmErr := os.Remove(pngPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("failed to remove transient PNG %s: %v", pngPath, rmErr)
		}
	}()
	if err := os.WriteFile(pngPath, pngData, 0644); err != nil {
		return "", utils.WrapError(err, "write transient png")
	}
	encoded, err := os.ReadFile(pngPath)
	if err != nil {
		return "", utils.WrapError(err, "read transient png")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(encoded), nil
}

func (r *Resolver) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d fetching %s", resp.StatusCode, ref)
	}
	return io.ReadAll(resp.Body)
}

// renderPNG rasterizes SVG bytes to PNG bytes in memory.
func renderPNG(svg []byte) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg))
	if err != nil {
		return nil, err
	}
	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = defaultRasterDim, defaultRasterDim
	}
	if w > maxRasterDim || h > maxRasterDim {
		scale := float64(maxRasterDim) / float64(max(w, h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
