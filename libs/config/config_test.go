package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	t.Setenv("CFG_TEST_STRING", "")
	assert.Equal(t, "fallback", String("CFG_TEST_STRING", "fallback"))

	t.Setenv("CFG_TEST_STRING", "value")
	assert.Equal(t, "value", String("CFG_TEST_STRING", "fallback"))
}

func TestRequiredString(t *testing.T) {
	t.Setenv("CFG_TEST_REQUIRED", "")
	_, err := RequiredString("CFG_TEST_REQUIRED")
	require.Error(t, err)

	t.Setenv("CFG_TEST_REQUIRED", "postgres://")
	v, err := RequiredString("CFG_TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "postgres://", v)
}

func TestPort(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{value: "8080"},
		{value: "0", wantErr: true},
		{value: "70000", wantErr: true},
		{value: "http", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CFG_TEST_PORT", tt.value)
			_, err := Port("CFG_TEST_PORT", "8081")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTypedValues(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "12")
	t.Setenv("CFG_TEST_BAD_INT", "-3")
	t.Setenv("CFG_TEST_BOOL", "yes")
	t.Setenv("CFG_TEST_DURATION", "250ms")
	t.Setenv("CFG_TEST_LIST", " a, ,b ,c")

	assert.Equal(t, 12, Int("CFG_TEST_INT", 1))
	assert.Equal(t, 1, Int("CFG_TEST_BAD_INT", 1))
	assert.True(t, Bool("CFG_TEST_BOOL", false))
	assert.True(t, Bool("CFG_TEST_BOOL_UNSET", true))
	assert.Equal(t, 250*time.Millisecond, Duration("CFG_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, Duration("CFG_TEST_DURATION_UNSET", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, List("CFG_TEST_LIST", ""))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CFG_TEST_DOTENV=from-file\nCFG_TEST_DOTENV_KEEP=from-file\n"), 0o600))

	t.Setenv("CFG_TEST_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("CFG_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("CFG_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("CFG_TEST_DOTENV_KEEP"))
}
