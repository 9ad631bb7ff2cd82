package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:8080", "-g", ":6000", "-s", "postgres", "-m", "mongodb://db:27017", "-n", "tk",
			"-d", "dsn", "-u", "user", "-p", "password", "-b", "bucket", "-r", "us-west-1",
			"-e", "http://endpoint", "-x", "15", "-l", "debug",
		},
			expected: &Config{
				EndpointAddrHTTP: "127.0.0.1:8080",
				EndpointAddrGRPC: ":6000",
				Store:            "postgres",
				MongoURI:         "mongodb://db:27017",
				MongoDatabase:    "tk",
				DatabaseDSN:      "dsn",
				S3RootUser:       "user",
				S3RootPassword:   "password",
				S3Bucket:         "bucket",
				S3Region:         "us-west-1",
				S3BaseEndpoint:   "http://endpoint",
				ExportInterval:   15 * time.Minute,
				LogLevel:         "debug",
			}},
		{name: "config flag is ignored", args: []string{"cmd", "-c", "conf.json", "-s", "memory"},
			expected: &Config{Store: "memory"}},
		{name: "bad interval panics", args: []string{"cmd", "-x", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
