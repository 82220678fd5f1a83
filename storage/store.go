/*
	This file implements reading and writing of decoded tiles at resolved
	locations.  A location is either a filesystem path (optionally with a
	"file://" prefix) or an HTTP/HTTPS URL.  Reads fall back to a caller
	supplied background tile on any failure; writes propagate failures.
*/

package storage

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/janelia-flyem/stacktile/stacktile"
)

const filePrefix = "file://"

// Store moves decoded tiles between memory and their storage locations.
// The zero value is not usable; use NewStore.
type Store struct {
	client *http.Client
}

// NewStore returns a Store using the default HTTP client.  No timeouts
// are imposed internally; callers partition long-running work by z-range
// instead.
func NewStore() *Store {
	return &Store{client: http.DefaultClient}
}

// NewStoreWithClient returns a Store using the given HTTP client for
// network locations.
func NewStoreWithClient(client *http.Client) *Store {
	return &Store{client: client}
}

func isNetworkLocation(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

func localPath(loc string) string {
	return strings.TrimPrefix(loc, filePrefix)
}

// ReadTile reads and decodes the tile at the given location into a
// width x height buffer.  On any failure (missing file, network error,
// HTTP status, decode error) it returns the passed fallback tile, so
// callers can detect substitution by pointer identity.  Failures are
// logged, never returned: a missing tile is an expected condition in
// sparse tile sets.
func (s *Store) ReadTile(loc string, width, height int, fallback *stacktile.Tile) *stacktile.Tile {
	var data []byte
	if isNetworkLocation(loc) {
		resp, err := s.client.Get(loc)
		if err != nil {
			stacktile.Warningf("Unable to GET tile at %s: %v\n", loc, err)
			return fallback
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			stacktile.Debugf("Tile GET %s returned status %d\n", loc, resp.StatusCode)
			io.Copy(io.Discard, resp.Body)
			return fallback
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			stacktile.Warningf("Unable to read tile body from %s: %v\n", loc, err)
			return fallback
		}
	} else {
		path := localPath(loc)
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				stacktile.Debugf("No tile file at %s\n", path)
			} else {
				stacktile.Warningf("Unable to read tile file %s: %v\n", path, err)
			}
			return fallback
		}
	}

	bg := stacktile.Background(0)
	if fallback != nil && len(fallback.Pix) > 0 {
		bg = fallback.Pix[0]
	}
	tile, err := decodeTile(data, width, height, bg)
	if err != nil {
		stacktile.Warningf("Unable to decode tile at %s: %v\n", loc, err)
		return fallback
	}
	return tile
}

// WriteTile encodes the tile per the write options and stores it at the
// given location.  Filesystem writes create parent directories as
// needed; network locations receive the encoded bytes as a POST.  Any
// failure is returned and is fatal to the caller.
func (s *Store) WriteTile(t *stacktile.Tile, loc string, opts WriteOptions) error {
	data, err := encodeTile(t, opts)
	if err != nil {
		return fmt.Errorf("unable to encode %s tile for %s: %v", opts.Format, loc, err)
	}
	if isNetworkLocation(loc) {
		resp, err := s.client.Post(loc, "application/octet-stream", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("unable to POST tile to %s: %v", loc, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("tile POST to %s returned status %d", loc, resp.StatusCode)
		}
		return nil
	}
	path := localPath(loc)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("unable to create tile directory %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write tile file %s: %v", path, err)
	}
	return nil
}
