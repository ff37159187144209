package repo_test

import (
	"testing"

	"github.com/hamed0406/healthgate/internal/repo"
	"github.com/hamed0406/healthgate/internal/repo/memory"
	pg "github.com/hamed0406/healthgate/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.ReportStore = memory.New(1)
	var _ repo.AlertStore = memory.New(1)

	var _ repo.ReportStore = (*pg.Store)(nil)
	var _ repo.AlertStore = (*pg.Store)(nil)
}
