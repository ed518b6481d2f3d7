package errors

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: ExitOK},
		{name: "unrecognized reference", err: UnrecognizedReference("nope").Build(), expected: ExitUsage},
		{name: "nothing to reuse", err: NewError(CategoryNotFound, "no mirrored documents").Build(), expected: ExitUsage},
		{name: "config error", err: ConfigError("bad config").Build(), expected: ExitConfig},
		{name: "rate limited", err: RateLimited("https://x").Build(), expected: ExitRemote},
		{name: "push failed", err: GitError("push failed").Build(), expected: ExitRemote},
		{name: "backend error", err: BackendError("zensical failed").Build(), expected: ExitBuild},
		{name: "wrapped classified", err: fmt.Errorf("outer: %w", RemoteFailure("https://x", 500).Build()), expected: ExitRemote},
		{name: "internal", err: InternalError("bug").Build(), expected: ExitInternal},
		{name: "unclassified error", err: fmt.Errorf("unknown error"), expected: ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	ref := UnrecognizedReference("nope").Build()
	assert.Equal(t, "unrecognized document reference: nope (expected https://<host>/docs/<id>/ or a 36 character id)", quiet.FormatError(ref))
	assert.Equal(t, ref.Error(), verbose.FormatError(ref))

	invalid := ValidationError("unsupported backend.type").WithContext("value", "jekyll").Build()
	assert.Equal(t, "unsupported backend.type: jekyll", quiet.FormatError(invalid))
	assert.Equal(t, "bad config", quiet.FormatError(ConfigError("bad config").Build()))

	assert.Equal(t, "backend: build failed", quiet.FormatError(BackendError("build failed").Build()))
	assert.Equal(t, "Error: boom", quiet.FormatError(fmt.Errorf("boom")))
	assert.Empty(t, quiet.FormatError(nil))
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(nil)
	assert.Equal(t, -1, code)

	adapter.HandleError(ConfigError("bad config").WithContext("path", "docs2static.yaml").Build())
	assert.Equal(t, ExitConfig, code)
	assert.Equal(t, "bad config\n", out.String())
	assert.Contains(t, logs.String(), "category=config")
	assert.Contains(t, logs.String(), "path=docs2static.yaml")

	// Non fatal classified errors are printed, not logged.
	logs.Reset()
	out.Reset()
	adapter.HandleError(BackendError("build failed").Build())
	assert.Equal(t, ExitBuild, code)
	assert.Empty(t, logs.String())
	assert.Equal(t, "backend: build failed\n", out.String())
}
