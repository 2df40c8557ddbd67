package integration

import (
	"context"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// ctx is cancelled when the suite ends, stopping any server still running
var ctx context.Context

func TestCatalogAPIIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog API Integration Suite")
}

var _ = BeforeSuite(func() {
	// server logs go to the ginkgo writer so they show only for failing specs
	slog.SetDefault(slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelDebug})))

	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())
	DeferCleanup(cancel)
})

// specDir returns a directory removed when the current spec ends
func specDir() string {
	return GinkgoT().TempDir()
}

// writeFile replaces the contents of path
func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
