// ABOUTME: Tests for the intake-gateway command helpers
// ABOUTME: Covers flag parsing, config paths, generated config files, logging and history rendering

package main

import (
	"bufio"
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/auth"
	"github.com/2389/intake-gateway/internal/config"
	"github.com/2389/intake-gateway/internal/session"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestParseTokenArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    tokenArgs
		wantErr string
	}{
		{
			name: "defaults",
			args: []string{"--name", "ana"},
			want: tokenArgs{name: "ana", role: auth.RoleViewer, ttl: defaultTokenTTL},
		},
		{
			name: "equals form",
			args: []string{"--name=bruno", "--role=admin", "--ttl=24h"},
			want: tokenArgs{name: "bruno", role: auth.RoleAdmin, ttl: 24 * time.Hour},
		},
		{
			name: "short flags",
			args: []string{"-n", "carla", "-r", "admin"},
			want: tokenArgs{name: "carla", role: auth.RoleAdmin, ttl: defaultTokenTTL},
		},
		{name: "missing name", args: nil, wantErr: "--name flag is required"},
		{name: "blank name", args: []string{"--name", "  "}, wantErr: "--name flag is required"},
		{name: "missing value", args: []string{"--name"}, wantErr: "requires a value"},
		{name: "bad role", args: []string{"--name", "ana", "--role", "owner"}, wantErr: "role must be"},
		{name: "bad ttl", args: []string{"--name", "ana", "--ttl", "-1h"}, wantErr: "invalid --ttl"},
		{name: "unknown flag", args: []string{"--foo"}, wantErr: "unknown flag"},
		{name: "positional", args: []string{"ana"}, wantErr: "unexpected argument"},
		{name: "too long", args: []string{"--name", strings.Repeat("a", 101)}, wantErr: "maximum length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTokenArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("INTAKE_CONFIG", "/etc/intake.yaml")
	assert.Equal(t, "/etc/intake.yaml", getConfigPath())

	t.Setenv("INTAKE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "intake-gateway", "config.yaml"), getConfigPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/shop")
	assert.Equal(t, filepath.Join("/home/shop", ".config", "intake-gateway", "config.yaml"), getConfigPath())
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "intake-gateway"), getDataPath())
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8080/health", healthURL(config.OpsConfig{HTTPAddr: "127.0.0.1:8080"}))

	ts := config.OpsConfig{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "intake"}}
	assert.Equal(t, "http://intake/health", healthURL(ts))

	ts.Tailscale.CertFile = "intake.crt"
	assert.Equal(t, "https://intake/health", healthURL(ts))
}

func TestRenderConfig_ParsesBack(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)

	content, err := renderConfig(initAnswers{
		CompanyName:    "Molas Tágua",
		Address:        "Rua das Molas, 123: Centro",
		PaymentMethods: "PIX, cartão",
		Operator:       "!ops:example.org",
		StorePath:      "/var/lib/intake/intake.db",
		MatrixEnabled:  true,
		Homeserver:     "https://matrix.example.org",
		Username:       "molas",
		Password:       "hunter2",
		OpsEnabled:     true,
		OpsAddr:        "127.0.0.1:9090",
		JWTSecret:      secret,
		LogLevel:       "debug",
		LogFormat:      "json",
	})
	require.NoError(t, err)

	cfg, err := config.Parse(content, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "Molas Tágua", cfg.Company.Name)
	assert.Equal(t, "Rua das Molas, 123: Centro", cfg.Company.Address)
	assert.Equal(t, "!ops:example.org", cfg.Handoff.Operator)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/intake/intake.db", cfg.Store.Path)
	assert.True(t, cfg.Matrix.Enabled)
	assert.Equal(t, "molas", cfg.Matrix.Username)
	assert.True(t, cfg.Ops.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.Ops.HTTPAddr)
	assert.Equal(t, secret, cfg.Ops.JWTSecret)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestRenderConfig_Minimal(t *testing.T) {
	content, err := renderConfig(initAnswers{
		CompanyName: "Molas Tágua",
		StorePath:   "intake.db",
		LogLevel:    "info",
		LogFormat:   "text",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(content), "jwt_secret")
	assert.NotContains(t, string(content), "homeserver")

	cfg, err := config.Parse(content, "yaml")
	require.NoError(t, err)
	assert.False(t, cfg.Matrix.Enabled)
	assert.False(t, cfg.Ops.Enabled)
}

func TestGenerateSecret_LongEnough(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(secret), auth.MinSecretLength)

	other, err := generateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestPrompt(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("\n  custom  \nlast"))
	assert.Equal(t, "fallback", prompt(reader, "q", "fallback"))
	assert.Equal(t, "custom", prompt(reader, "q", "fallback"))
	assert.Equal(t, "last", prompt(reader, "q", "fallback"))
	assert.Equal(t, "fallback", prompt(reader, "q", "fallback"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestColorHandler(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "intake").WithGroup("msg").Info("message routed", "chat", "!room:example.org")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF message routed")
	assert.Contains(t, out, " component=intake")
	assert.Contains(t, out, " msg.chat=!room:example.org")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestJSONLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "n", 1)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"n":1`)
}

func TestPrintHistory(t *testing.T) {
	at := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printHistory(&buf, "!room:example.org", "COLLECTING_VEHICLE_MODEL",
		[]string{"• Serviço: Troca de molas"},
		[]session.HistoryEntry{
			{At: at, Kind: session.HistoryState, Entry: "State changed to: MAIN_MENU"},
			{At: at, Kind: session.HistoryData, Entry: "serviceType: Troca de molas"},
		})

	out := buf.String()
	assert.Contains(t, out, "Session !room:example.org")
	assert.Contains(t, out, "State: COLLECTING_VEHICLE_MODEL")
	assert.Contains(t, out, "• Serviço: Troca de molas")
	assert.Contains(t, out, "state  State changed to: MAIN_MENU")
	assert.Contains(t, out, "data   serviceType: Troca de molas")

	buf.Reset()
	printHistory(&buf, "x", "INITIAL", nil, nil)
	assert.Contains(t, buf.String(), "(no data collected)")
}
