package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"ytrunner/pkg/httputil"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newTestResolver(t *testing.T, handler http.Handler) (*Resolver, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	router := NewRouter()
	src := NewHTTPSource(httputil.NewRetryClient(server.Client(), httputil.RetryConfig{MaxRetries: -1}))
	router.Register("http", src)
	router.Register("https", src)
	return NewResolver(router), server.URL
}

func videoSpec(base string) Spec {
	return Spec{Type: Video, Base: base, Name: "vid", Extensions: VideoExtensions}
}

func TestResolveVideoNaming(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"vid.mp4":     "zero",
		"vid (1).mov": "one",
		"vid (2).mp4": "two",
	})
	resolver, base := newTestResolver(t, http.FileServer(http.Dir(dir)))

	tests := []struct {
		name     string
		index    int
		wantName string
		wantErr  error
	}{
		{name: "unsuffixedFirst", index: 0, wantName: "vid.mp4"},
		{name: "extensionFallback", index: 1, wantName: "vid (1).mov"},
		{name: "suffixed", index: 2, wantName: "vid (2).mp4"},
		{name: "endOfStream", index: 3, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := resolver.Resolve(context.Background(), videoSpec(base), tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if item.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", item.Name, tt.wantName)
			}
			if item.Index != tt.index {
				t.Errorf("Index = %d, want %d", item.Index, tt.index)
			}
		})
	}
}

func TestResolveHeadNotAllowedFallsBackToGet(t *testing.T) {
	var gets int32
	resolver, base := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		atomic.AddInt32(&gets, 1)
		if r.URL.Path != "/vid.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("video"))
	}))

	item, err := resolver.Resolve(context.Background(), videoSpec(base), 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if item.Name != "vid.mp4" {
		t.Errorf("Name = %q, want vid.mp4", item.Name)
	}
	if atomic.LoadInt32(&gets) == 0 {
		t.Error("expected a GET probe after 405")
	}
}

func TestResolveServerErrorIsResolutionError(t *testing.T) {
	resolver, base := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := resolver.Resolve(context.Background(), videoSpec(base), 0)

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want *ResolutionError", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("server error must not look like end of stream")
	}
	if resErr.Stream != Video {
		t.Errorf("Stream = %q, want %q", resErr.Stream, Video)
	}
}

func TestResolveTextLines(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"titles.txt": "A\n\n  B  \nC\n",
	})
	resolver, base := newTestResolver(t, http.FileServer(http.Dir(dir)))

	tests := []struct {
		name     string
		index    int
		cycle    bool
		wantText string
		wantErr  error
	}{
		{name: "first", index: 0, wantText: "A"},
		{name: "blankLinesDropped", index: 1, wantText: "B"},
		{name: "last", index: 2, wantText: "C"},
		{name: "pastEnd", index: 3, wantErr: ErrNotFound},
		{name: "pastEndCycles", index: 4, cycle: true, wantText: "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Spec{Type: Title, Base: base + "/titles.txt", Cycle: tt.cycle}
			item, err := resolver.Resolve(context.Background(), spec, tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if item.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", item.Text, tt.wantText)
			}
		})
	}
}

func TestResolveMissingListIsResolutionError(t *testing.T) {
	resolver, base := newTestResolver(t, http.NotFoundHandler())

	_, err := resolver.Resolve(context.Background(), Spec{Type: Description, Base: base + "/missing.txt"}, 0)

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want *ResolutionError", err)
	}
}

func TestResolveOversizedListIsResolutionError(t *testing.T) {
	dir := t.TempDir()
	line := strings.Repeat("x", 1023) + "\n"
	writeFiles(t, dir, map[string]string{
		"titles.txt": strings.Repeat(line, maxListBytes/len(line)+1),
	})
	resolver, base := newTestResolver(t, http.FileServer(http.Dir(dir)))

	_, err := resolver.Resolve(context.Background(), Spec{Type: Title, Base: base + "/titles.txt"}, 0)

	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Stream != Title {
		t.Fatalf("error = %v, want title *ResolutionError", err)
	}
	if !errors.Is(err, errListTooLarge) {
		t.Errorf("error = %v, want errListTooLarge", err)
	}
}

func TestResolveTags(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"tags.txt": "#go, shorts  funny\nshorts,#daily\n",
	})
	resolver, base := newTestResolver(t, http.FileServer(http.Dir(dir)))

	tests := []struct {
		name    string
		spec    Spec
		index   int
		want    []string
		wantErr error
	}{
		{
			name:  "constantUsesWholeList",
			spec:  Spec{Type: Tags, Base: base + "/tags.txt"},
			index: 7,
			want:  []string{"go", "shorts", "funny", "daily"},
		},
		{
			name:  "indexedUsesLine",
			spec:  Spec{Type: Tags, Base: base + "/tags.txt", Indexed: true},
			index: 1,
			want:  []string{"shorts", "daily"},
		},
		{
			name:    "indexedPastEnd",
			spec:    Spec{Type: Tags, Base: base + "/tags.txt", Indexed: true},
			index:   2,
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := resolver.Resolve(context.Background(), tt.spec, tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(item.Tags, tt.want) {
				t.Errorf("Tags = %v, want %v", item.Tags, tt.want)
			}
		})
	}
}

func TestResolveManifest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"list.txt":   "intro.mp4\nnotes.pdf\nclip\n",
		"intro.mp4":  "a",
		"clip.webm":  "b",
		"ignored.md": "c",
	})
	resolver, base := newTestResolver(t, http.FileServer(http.Dir(dir)))

	spec := videoSpec(base)
	spec.Manifest = base + "/list.txt"

	want := []string{"intro.mp4", "clip.webm"}
	for i, name := range want {
		item, err := resolver.Resolve(context.Background(), spec, i)
		if err != nil {
			t.Fatalf("Resolve(%d) error = %v", i, err)
		}
		if item.Name != name {
			t.Errorf("Resolve(%d).Name = %q, want %q", i, item.Name, name)
		}
	}

	if _, err := resolver.Resolve(context.Background(), spec, len(want)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve past manifest end error = %v, want ErrNotFound", err)
	}
}

func TestResolveLocalDirectoryAndDownload(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"thumb (1).jpg": "jpeg-bytes",
	})

	resolver := NewResolver(NewRouter())
	spec := Spec{Type: Thumbnail, Base: dir, Name: "thumb", Extensions: ImageExtensions, StartIndex: 1}

	item, err := resolver.Resolve(context.Background(), spec, 1)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if err := resolver.Download(context.Background(), item, t.TempDir()); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(item.Path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("downloaded content = %q", data)
	}
	if filepath.Ext(item.Path) != ".jpg" {
		t.Errorf("downloaded path %q lost its extension", item.Path)
	}

	if _, err := resolver.Resolve(context.Background(), spec, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(2) error = %v, want ErrNotFound", err)
	}
}

func TestResolveUnknownSchemeIsResolutionError(t *testing.T) {
	resolver := NewResolver(NewRouter())

	_, err := resolver.Resolve(context.Background(), videoSpec("ftp://example.com/videos"), 0)

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want *ResolutionError", err)
	}
}
