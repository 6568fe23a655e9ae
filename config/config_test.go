package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTOML = `
[paths]
data_dir = "/var/lib/tsay"
token = "/etc/tsay/token"

[storage]
backend = "gcs"
bucket = "tsay-sessions"

[server]
port = 8080

[domains.main]
guild = 1111
control_channel = 2222
vote_channel = 3333
announce_channel = 4444
event_channel = 5555
member_role = 6666
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(New(), writeConfig(t, validTOML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/tsay", cfg.Paths.DataDir)
	assert.Equal(t, "./logs", cfg.Paths.LogsDir)
	assert.Equal(t, "/etc/tsay/token", cfg.Paths.Token)
	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, "tsay-sessions", cfg.Storage.Bucket)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Reminders.Hour)
	assert.Equal(t, "America/New_York", cfg.Reminders.Timezone)

	require.Contains(t, cfg.Domains, "main")
	assert.Equal(t, Domain{
		Guild:           "1111",
		ControlChannel:  "2222",
		VoteChannel:     "3333",
		AnnounceChannel: "4444",
		EventChannel:    "5555",
		MemberRole:      "6666",
	}, cfg.Domains["main"])
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("TSAYBOT_STORAGE_BACKEND", "sqlite")
	t.Setenv("TSAYBOT_DATA_DIR", "/srv/data")

	cfg, err := Load(New(), writeConfig(t, validTOML))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/srv/data", cfg.Paths.DataDir)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no domains",
			content: "[paths]\ndata_dir = \"/tmp\"\n",
			want:    "Domains",
		},
		{
			name: "missing role",
			content: `[domains.main]
guild = 1
control_channel = 2
vote_channel = 3
announce_channel = 4
event_channel = 5
`,
			want: "MemberRole",
		},
		{
			name: "gcs without bucket",
			content: `[storage]
backend = "gcs"
[domains.main]
guild = 1
control_channel = 2
vote_channel = 3
announce_channel = 4
event_channel = 5
member_role = 6
`,
			want: "Bucket",
		},
		{
			name: "unknown backend",
			content: `[storage]
backend = "s3"
[domains.main]
guild = 1
control_channel = 2
vote_channel = 3
announce_channel = 4
event_channel = 5
member_role = 6
`,
			want: "Backend",
		},
		{
			name: "bad hour",
			content: `[reminders]
hour = 24
[domains.main]
guild = 1
control_channel = 2
vote_channel = 3
announce_channel = 4
event_channel = 5
member_role = 6
`,
			want: "Hour",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(New(), writeConfig(t, "[domains\nguild ="))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestReadToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.txt")
	require.NoError(t, os.WriteFile(path, []byte("  secret-token\n"), 0o600))

	token, err := ReadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = ReadToken(empty)
	require.Error(t, err)
}
