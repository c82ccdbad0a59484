//nolint:varnamelen // Test files use idiomatic short variable names (t, g, etc.)
package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/internal/config"
	"github.com/joe/filemon/internal/monitoring"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "filemon.yaml")
	g.Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := t.TempDir()
	path := writeConfig(t, `
log_level: debug
store:
  kind: sqlite
  path: `+filepath.Join(root, "events.db")+`
providers:
  docs:
    kind: local
    root: `+root+`
    behaviors: [logging, caching, retry]
  backup:
    kind: memory
    lifetime: transient
locations:
  - name: docs
    provider: docs
    pattern: "**/*.txt"
    rate_limit: medium
    processors:
      - type: log
      - type: archive
        archive_provider: backup
        archive_root: archived
  - name: batch
    provider: docs
    on_demand: true
`)

	cfg, err := config.Load(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.LogLevel).To(Equal("debug"))
	g.Expect(cfg.Store.Kind).To(Equal("sqlite"))
	g.Expect(cfg.Providers).To(HaveLen(2))
	g.Expect(cfg.Providers["docs"].Behaviors).To(Equal([]string{"logging", "caching", "retry"}))
	g.Expect(cfg.Locations).To(HaveLen(2))
	g.Expect(cfg.Locations[0].RateLimit).To(Equal("medium"))
	g.Expect(cfg.Locations[1].OnDemand).To(BeTrue())
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	path := writeConfig(t, `
providers:
  mem:
    kind: memory
locations:
  - name: mem
    provider: mem
`)

	cfg, err := config.Load(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.LogLevel).To(Equal(config.DefaultLogLevel))
	g.Expect(cfg.Store.Kind).To(Equal(config.DefaultStoreKind))
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown provider kind",
			content: `
providers:
  bad:
    kind: carrier-pigeon
`,
			wantErr: "unknown kind",
		},
		{
			name: "location references missing provider",
			content: `
locations:
  - name: docs
    provider: nope
`,
			wantErr: "unknown provider",
		},
		{
			name: "duplicate location name",
			content: `
providers:
  mem:
    kind: memory
locations:
  - name: docs
    provider: mem
  - name: docs
    provider: mem
`,
			wantErr: "duplicate name",
		},
		{
			name: "sqlite store without path",
			content: `
store:
  kind: sqlite
`,
			wantErr: "requires a path",
		},
		{
			name: "unknown rate limit",
			content: `
providers:
  mem:
    kind: memory
locations:
  - name: docs
    provider: mem
    rate_limit: ludicrous
`,
			wantErr: "unknown rate limit",
		},
		{
			name: "archive processor with unknown provider",
			content: `
providers:
  mem:
    kind: memory
locations:
  - name: docs
    provider: mem
    processors:
      - type: archive
        archive_provider: nope
`,
			wantErr: "unknown provider",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			_, err := config.Load(writeConfig(t, tt.content))
			g.Expect(err).To(HaveOccurred())
			g.Expect(err.Error()).To(ContainSubstring(tt.wantErr))
		})
	}
}

func TestBuildEngine_ScansConfiguredLocation(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := t.TempDir()
	g.Expect(os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o600)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "skip.log"), []byte("no"), 0o600)).To(Succeed())

	cfg, err := config.Load(writeConfig(t, `
providers:
  docs:
    kind: local
    root: `+root+`
    behaviors: [logging]
locations:
  - name: docs
    provider: docs
    pattern: "**/*.txt"
    processors:
      - type: log
`))
	g.Expect(err).ShouldNot(HaveOccurred())

	logger, err := config.NewLogger(cfg.LogLevel)
	g.Expect(err).ShouldNot(HaveOccurred())

	engine, cleanup, err := cfg.BuildEngine(logger)
	g.Expect(err).ShouldNot(HaveOccurred())

	t.Cleanup(func() { g.Expect(cleanup()).To(Succeed()) })

	scan, err := engine.ScanLocation(context.Background(), "docs", monitoring.ScanOptions{WaitForProcessing: true}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(scan.Events).To(HaveLen(1))
	g.Expect(scan.Events[0].FilePath).To(Equal("hello.txt"))
	g.Expect(scan.Events[0].Type).To(Equal(monitoring.EventAdded))
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := config.NewLogger("shouting")
	g.Expect(err).To(HaveOccurred())
	g.Expect(strings.Contains(err.Error(), "log level")).To(BeTrue())
}
