// Package stream resolves items from the remote content streams an account
// draws from: video files, title and description lines, tags and thumbnails.
package stream

import (
	"errors"
	"fmt"
)

type Type string

const (
	Video       Type = "video"
	Title       Type = "title"
	Description Type = "description"
	Tags        Type = "tags"
	Thumbnail   Type = "thumbnail"
)

// ErrNotFound marks the end of a stream: there is no item at the index.
var ErrNotFound = errors.New("stream item not found")

// ResolutionError is a failure to fetch or parse a stream item. Unlike
// ErrNotFound it says nothing about whether the stream is exhausted.
type ResolutionError struct {
	Stream Type
	Ref    string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s stream %s: %v", e.Stream, e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Spec describes how one stream of one account is addressed.
type Spec struct {
	Type Type
	Base string

	// Name and Extensions drive the file naming convention of binary
	// streams: index 0 is "<Name><ext>", index k is "<Name> (k)<ext>".
	Name       string
	Extensions []string

	// StartIndex is the index addressed by a zero cursor.
	StartIndex int

	// Manifest optionally lists video file names, one per line.
	Manifest string

	// Cycle wraps text indices past the end of the list.
	Cycle bool

	// Indexed makes the tags stream advance one line per upload instead of
	// using the whole list every time.
	Indexed bool
}

// Item is one resolved stream element.
type Item struct {
	Stream Type
	Index  int

	// Name is the logical item name, e.g. "vid (3).mp4" or the manifest
	// entry. It is stable across base URL moves.
	Name string
	Ref  string

	Text string
	Tags []string

	// Path is set once a binary item is downloaded.
	Path string
}

// Fingerprint identifies the item for duplicate detection.
func (i *Item) Fingerprint() string {
	return string(i.Stream) + ":" + i.Name
}
