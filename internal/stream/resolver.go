package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/samber/lo"
)

// Resolver maps (stream, index) pairs to items. Remote lists are fetched
// once per Resolver, so a Resolver should live for a single run.
type Resolver struct {
	router *Router
	lists  map[string][]string
}

func NewResolver(router *Router) *Resolver {
	return &Resolver{
		router: router,
		lists:  make(map[string][]string),
	}
}

// Resolve returns the item at index, ErrNotFound past the end of the
// stream, or a *ResolutionError when the stream could not be read.
func (r *Resolver) Resolve(ctx context.Context, spec Spec, index int) (*Item, error) {
	if index < 0 {
		return nil, ErrNotFound
	}

	switch spec.Type {
	case Video:
		if spec.Manifest != "" {
			return r.resolveManifest(ctx, spec, index)
		}
		return r.resolveNamed(ctx, spec, index)
	case Thumbnail:
		return r.resolveNamed(ctx, spec, index)
	case Title, Description:
		return r.resolveLine(ctx, spec, index)
	case Tags:
		return r.resolveTags(ctx, spec, index)
	default:
		return nil, &ResolutionError{Stream: spec.Type, Ref: spec.Base, Err: errors.New("unknown stream type")}
	}
}

func (r *Resolver) resolveNamed(ctx context.Context, spec Spec, index int) (*Item, error) {
	names := lo.Map(spec.Extensions, func(ext string, _ int) string {
		return ItemName(spec.Name, index, ext)
	})
	return r.probe(ctx, spec, index, names)
}

func (r *Resolver) resolveManifest(ctx context.Context, spec Spec, index int) (*Item, error) {
	lines, err := r.list(ctx, spec.Type, spec.Manifest)
	if err != nil {
		return nil, err
	}

	entries := lo.Filter(lines, func(line string, _ int) bool {
		return path.Ext(line) == "" || hasExtension(line, spec.Extensions)
	})
	if index >= len(entries) {
		return nil, ErrNotFound
	}

	return r.probe(ctx, spec, index, candidateNames(entries[index], spec.Extensions))
}

// probe returns the first of names that exists under the spec base.
func (r *Resolver) probe(ctx context.Context, spec Spec, index int, names []string) (*Item, error) {
	src, err := r.router.sourceFor(spec.Base)
	if err != nil {
		return nil, &ResolutionError{Stream: spec.Type, Ref: spec.Base, Err: err}
	}

	for _, name := range names {
		ref := Join(spec.Base, name)
		ok, err := src.Exists(ctx, ref)
		if err != nil {
			return nil, &ResolutionError{Stream: spec.Type, Ref: ref, Err: err}
		}
		if ok {
			return &Item{Stream: spec.Type, Index: index, Name: name, Ref: ref}, nil
		}
	}

	return nil, ErrNotFound
}

func (r *Resolver) resolveLine(ctx context.Context, spec Spec, index int) (*Item, error) {
	lines, err := r.list(ctx, spec.Type, spec.Base)
	if err != nil {
		return nil, err
	}

	pos, ok := position(index, len(lines), spec.Cycle)
	if !ok {
		return nil, ErrNotFound
	}

	return &Item{
		Stream: spec.Type,
		Index:  index,
		Name:   fmt.Sprintf("line %d", pos),
		Ref:    spec.Base,
		Text:   lines[pos],
	}, nil
}

func (r *Resolver) resolveTags(ctx context.Context, spec Spec, index int) (*Item, error) {
	lines, err := r.list(ctx, spec.Type, spec.Base)
	if err != nil {
		return nil, err
	}

	if !spec.Indexed {
		tags := SplitTags(strings.Join(lines, "\n"))
		if len(tags) == 0 {
			return nil, ErrNotFound
		}
		return &Item{Stream: Tags, Index: 0, Name: "all", Ref: spec.Base, Tags: tags}, nil
	}

	pos, ok := position(index, len(lines), spec.Cycle)
	if !ok {
		return nil, ErrNotFound
	}

	return &Item{
		Stream: Tags,
		Index:  index,
		Name:   fmt.Sprintf("line %d", pos),
		Ref:    spec.Base,
		Text:   lines[pos],
		Tags:   SplitTags(lines[pos]),
	}, nil
}

func position(index, n int, cycle bool) (int, bool) {
	if n == 0 {
		return 0, false
	}
	if index < n {
		return index, true
	}
	if !cycle {
		return 0, false
	}
	return index % n, true
}

func (r *Resolver) list(ctx context.Context, stream Type, ref string) ([]string, error) {
	if lines, ok := r.lists[ref]; ok {
		return lines, nil
	}

	src, err := r.router.sourceFor(ref)
	if err != nil {
		return nil, &ResolutionError{Stream: stream, Ref: ref, Err: err}
	}

	body, err := src.Open(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, &ResolutionError{Stream: stream, Ref: ref, Err: errors.New("list does not exist")}
	}
	if err != nil {
		return nil, &ResolutionError{Stream: stream, Ref: ref, Err: err}
	}
	defer func() { _ = body.Close() }()

	lines, err := readLines(body)
	if err != nil {
		return nil, &ResolutionError{Stream: stream, Ref: ref, Err: err}
	}

	r.lists[ref] = lines
	return lines, nil
}

// Download copies a binary item into dir and records the local path on it.
func (r *Resolver) Download(ctx context.Context, item *Item, dir string) error {
	src, err := r.router.sourceFor(item.Ref)
	if err != nil {
		return &ResolutionError{Stream: item.Stream, Ref: item.Ref, Err: err}
	}

	f, err := os.CreateTemp(dir, string(item.Stream)+"-*"+path.Ext(item.Name))
	if err != nil {
		return &ResolutionError{Stream: item.Stream, Ref: item.Ref, Err: fmt.Errorf("failed to create local file: %w", err)}
	}

	if err := copyTo(ctx, src, item.Ref, f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return &ResolutionError{Stream: item.Stream, Ref: item.Ref, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return &ResolutionError{Stream: item.Stream, Ref: item.Ref, Err: err}
	}

	item.Path = f.Name()
	return nil
}

func copyTo(ctx context.Context, src Source, ref string, f *os.File) error {
	if dl, ok := src.(fileDownloader); ok {
		return dl.DownloadFile(ctx, ref, f)
	}

	body, err := src.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	return nil
}
