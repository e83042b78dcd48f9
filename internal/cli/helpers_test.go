package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meatlens/backend/internal/reference"
)

// writeReference seeds the env with the built-in tables so approvals persist
func writeReference(t *testing.T, env testEnv) {
	t.Helper()
	tables, err := reference.Default()
	require.NoError(t, err)
	data, err := reference.Marshal(tables)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "reference.json"), data, 0o644))
}
