package browser

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "ru-RU", opts.Locale)
	assert.Equal(t, "Europe/Moscow", opts.TimezoneID)
	assert.NotEmpty(t, opts.ProfileRoot)
	assert.Empty(t, opts.CookiesPath)
}

func TestCookieRecordParsing(t *testing.T) {
	data := `[
		{"name": "session", "value": "abc", "domain": ".market.test", "path": "/", "expires": 1893456000, "httpOnly": true, "secure": true},
		{"name": "theme", "value": "dark", "domain": ".market.test"}
	]`

	var records []cookieRecord
	require.NoError(t, json.Unmarshal([]byte(data), &records))
	require.Len(t, records, 2)

	assert.Equal(t, "session", records[0].Name)
	assert.Equal(t, ".market.test", records[0].Domain)
	assert.True(t, records[0].HTTPOnly)
	assert.Equal(t, "", records[1].Path)
}

func TestCleanStaleProfiles(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, profilePrefix+"dead-run")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	keep := filepath.Join(root, "unrelated-dir")
	require.NoError(t, os.MkdirAll(keep, 0o755))

	b := &Browser{opts: &Options{ProfileRoot: root}, logger: slog.Default()}
	b.CleanStaleProfiles()

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}
