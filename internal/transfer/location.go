// Package transfer routes copy requests between the local filesystem and
// remote Agave storage systems: upload, download, and remote-to-remote relay
// through a local staging directory.
package transfer

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// RemotePrefix marks a location as "system/path" on an Agave storage system.
const RemotePrefix = "agave://"

// ErrCopyDirection is returned for origin/destination pairs a strategy does
// not handle. Local to local is never supported.
var ErrCopyDirection = errors.New("transfer: unsupported copy direction")

// Location is a parsed copy endpoint. Remote paths are "system/path" with the
// prefix stripped; local paths are kept verbatim.
type Location struct {
	Remote bool
	Path   string
}

// ParseLocation classifies s by the agave:// prefix.
func ParseLocation(s string) Location {
	if rest, ok := strings.CutPrefix(s, RemotePrefix); ok {
		return Location{Remote: true, Path: rest}
	}

	return Location{Path: s}
}

func (l Location) String() string {
	if l.Remote {
		return RemotePrefix + l.Path
	}

	return l.Path
}

// Base returns the last "/"-separated segment of the path, which may be
// empty when the path ends in "/".
func (l Location) Base() string {
	i := strings.LastIndex(l.Path, "/")

	return l.Path[i+1:]
}

// Direction is the strategy selected for a copy.
type Direction int

// Copy strategies.
const (
	Upload Direction = iota + 1
	Download
	Relay
)

func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	case Relay:
		return "relay"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalText encodes the strategy by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Classify selects the strategy for copying origin to dest.
func Classify(origin, dest Location) (Direction, error) {
	switch {
	case !origin.Remote && dest.Remote:
		return Upload, nil
	case origin.Remote && !dest.Remote:
		return Download, nil
	case origin.Remote && dest.Remote:
		return Relay, nil
	default:
		return 0, fmt.Errorf("%w: %s to %s is local to local (prefix one side with %s)",
			ErrCopyDirection, origin, dest, RemotePrefix)
	}
}

// remoteName is the file name a remote path refers to, cleaned of
// trailing slashes.
func remoteName(syspath string) string {
	return path.Base(strings.TrimRight(syspath, "/"))
}
