package cellfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*inotify).readEvents"),
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
	)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Cell
	}{
		{"empty", "", nil},
		{"no markers", "console.log(1)\n", []Cell{{Code: "console.log(1)"}}},
		{
			"titled cells",
			"// %% setup\nconst nums = [1, 2, 3]\n\n// %%\nnums.map(n => n * 2)\n",
			[]Cell{{Title: "setup", Code: "const nums = [1, 2, 3]"}, {Code: "nums.map(n => n * 2)"}},
		},
		{
			"preamble and indentation",
			"// header comment\n\n//%% loop\n\nfor (;;) {\n  break\n}\n\n\n",
			[]Cell{{Code: "// header comment"}, {Title: "loop", Code: "for (;;) {\n  break\n}"}},
		},
		{"empty cell kept", "// %% a\n// %% b\nx\n", []Cell{{Title: "a"}, {Title: "b", Code: "x"}}},
		{"crlf", "// %%\r\na = 1\r\n", []Cell{{Code: "a = 1"}}},
		{"blank preamble dropped", "\n\n// %%\n1\n", []Cell{{Code: "1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Parse(tt.src)); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	cells := []Cell{
		{Title: "setup", Code: "function sq(n) {\n  return n * n\n}"},
		{},
		{Code: "sq(4)"},
	}
	src := Format(cells)
	assert.Equal(t, "// %% setup\nfunction sq(n) {\n  return n * n\n}\n\n// %%\n\n// %%\nsq(4)\n", src)
	if diff := cmp.Diff(cells, Parse(src)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.js")
	require.NoError(t, os.WriteFile(path, []byte("// %%\n1\n// %%\n2\n"), 0644))

	cells, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cells, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.js"))
	assert.Error(t, err)
}

func TestWatcherReportsSettledWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.js")
	require.NoError(t, os.WriteFile(path, []byte("// %%\n1\n"), 0644))

	changes := make(chan string, 10)
	w, err := NewWatcher(path, 50*time.Millisecond, func(p string) { changes <- p })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.js"), []byte("x"), 0644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("// %%\n2\n"), 0644))
	}

	select {
	case got := <-changes:
		assert.Equal(t, w.Path(), got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, w.Close(), "closing twice is fine")
}
