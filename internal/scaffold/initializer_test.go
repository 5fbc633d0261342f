package scaffold

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/locbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name    string
		force   bool
		setup   func(path string)
		wantErr bool
	}{
		{
			name:  "fresh initialization",
			setup: func(string) {},
		},
		{
			name:  "force replaces existing file",
			force: true,
			setup: func(path string) {
				os.WriteFile(path, []byte("old content"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), config.DefaultPath)
			tt.setup(path)

			err := Initialize(path, tt.force)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, Template(), content)
		})
	}
}

// The template documents the defaults, so loading it must give the same
// values as config.Default apart from the placeholder PLC host.
func TestTemplate_MatchesDefaults(t *testing.T) {
	for _, v := range []string{"LOCBRIDGE_PLC_HOST", "LOCBRIDGE_LOCATOR_HOST", "LOCBRIDGE_LOCATOR_PASSWORD", "REDIS_URL", "LOCBRIDGE_LOG_LEVEL"} {
		t.Setenv(v, "")
	}
	path := filepath.Join(t.TempDir(), config.DefaultPath)
	require.NoError(t, os.WriteFile(path, Template(), 0644))

	got, err := config.Load(path)
	require.NoError(t, err)

	want := config.Default()
	want.PLC.Host = "192.168.0.10"
	assert.Equal(t, want, got)
	assert.Equal(t, 500*time.Millisecond, got.Sync.PollInterval)
	assert.Equal(t, uint16(32), got.CurrentPoseAddress())
}

func TestHandleForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultPath)

	require.NoError(t, handleForce(path), "missing file is not an error")

	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	require.NoError(t, handleForce(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
