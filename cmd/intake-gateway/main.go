// ABOUTME: Entry point for intake-gateway, the suspension shop's guided support assistant
// ABOUTME: Subcommands to serve, write a config, mint ops tokens, and inspect or sweep sessions

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/intake-gateway/internal/auth"
	"github.com/2389/intake-gateway/internal/config"
	"github.com/2389/intake-gateway/internal/gateway"
	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _       _        _                       _
(_)_ __ | |_ __ _| | _____    __ _  __ _| |_ _____      ____ _ _   _
| | '_ \| __/ _' | |/ / _ \  / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| | | | | || (_| |   <  __/ | (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_|_| |_|\__\__,_|_|\_\___|  \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                             |___/                             |___/
`

const defaultTokenTTL = 30 * 24 * time.Hour

// getConfigPath returns the path to the config file.
// Priority: INTAKE_CONFIG env var > XDG_CONFIG_HOME/intake-gateway/config.yaml > ~/.config/intake-gateway/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("INTAKE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "intake-gateway", "config.yaml")
}

// getDataPath returns the data directory.
// Priority: XDG_DATA_HOME/intake-gateway > ~/.local/share/intake-gateway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "intake-gateway")
}

func usage() {
	fmt.Println("Usage: intake-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the assistant")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  token --name NAME [--role R]   Mint an ops API token (role: viewer or admin)")
	fmt.Println("  health                         Check the ops API health endpoint")
	fmt.Println("  sessions                       List stored sessions")
	fmt.Println("  history ID                     Show one session's data and history")
	fmt.Println("  sweep                          Remove sessions past the retention window")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "sessions":
		err = runSessions(ctx)
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "sweep":
		err = runSweep(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Company:   %s\n", cfg.Company.Name)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s", cfg.Store.Driver)
	if cfg.Store.Driver == "sqlite" {
		gray.Printf(" (%s)", cfg.Store.Path)
	}
	fmt.Println()

	green.Print("    ▶ ")
	fmt.Printf("Matrix:    ")
	if cfg.Matrix.Enabled {
		cyan.Print(cfg.Matrix.Homeserver)
		if cfg.Matrix.Encryption {
			gray.Print(" (e2ee)")
		}
	} else {
		yellow.Print("disabled")
	}
	fmt.Println()

	if cfg.Ops.Enabled {
		green.Print("    ▶ ")
		if cfg.Ops.Tailscale.Enabled {
			fmt.Printf("Ops API:   ")
			cyan.Print(cfg.Ops.Tailscale.Hostname)
			if cfg.Ops.Tailscale.Ephemeral {
				gray.Print(" (ephemeral)")
			}
			fmt.Println()
		} else {
			fmt.Printf("Ops API:   %s\n", cfg.Ops.HTTPAddr)
		}
	}

	fmt.Println()

	logger.Info("starting intake-gateway",
		"config", configPath,
		"timezone", cfg.Schedule.Timezone,
		"retention", cfg.Session.Retention,
		"sweep_interval", cfg.Session.SweepInterval,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

// tokenArgs holds the parsed flags of the token command.
type tokenArgs struct {
	name string
	role string
	ttl  time.Duration
}

// parseTokenArgs accepts "--flag value" and "--flag=value" forms.
func parseTokenArgs(args []string) (tokenArgs, error) {
	out := tokenArgs{role: auth.RoleViewer, ttl: defaultTokenTTL}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--name", "-n", "--role", "-r", "--ttl":
		default:
			if strings.HasPrefix(arg, "-") {
				return out, fmt.Errorf("unknown flag: %s", arg)
			}
			return out, fmt.Errorf("unexpected argument: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}

		switch name {
		case "--name", "-n":
			out.name = strings.TrimSpace(value)
		case "--role", "-r":
			out.role = value
		case "--ttl":
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return out, fmt.Errorf("invalid --ttl %q", value)
			}
			out.ttl = d
		}
	}

	if out.name == "" {
		return out, errors.New("--name flag is required")
	}
	if len(out.name) > 100 {
		return out, errors.New("name exceeds maximum length of 100 characters")
	}
	if out.role != auth.RoleViewer && out.role != auth.RoleAdmin {
		return out, fmt.Errorf("role must be %s or %s, got %q", auth.RoleViewer, auth.RoleAdmin, out.role)
	}
	return out, nil
}

func runToken(args []string) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Ops.JWTSecret == "" {
		return fmt.Errorf("ops.jwt_secret not configured in %s", configPath)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Ops.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(parsed.name, parsed.role, parsed.ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Token for %s (%s), expires %s\n", parsed.name, parsed.role, time.Now().Add(parsed.ttl).UTC().Format("Jan 02, 2006"))
	green.Printf("  ✓ Saved token: %s\n", tokenPath)
	fmt.Println()
	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Ops.Enabled {
		return errors.New("ops API is disabled (set ops.enabled)")
	}

	url := healthURL(cfg.Ops)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var health gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	state := "closed"
	if health.Open {
		state = "open"
	}
	fmt.Printf("healthy (shop %s)\n", state)
	return nil
}

// healthURL returns the /health URL for the configured listener.
func healthURL(ops config.OpsConfig) string {
	if ops.Tailscale.Enabled {
		scheme := "http"
		if ops.Tailscale.CertFile != "" {
			scheme = "https"
		}
		return fmt.Sprintf("%s://%s/health", scheme, ops.Tailscale.Hostname)
	}
	return fmt.Sprintf("http://%s/health", ops.HTTPAddr)
}

// openStore opens the configured store for a one-off command.
func openStore() (*config.Config, store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Driver == "memory" {
		return nil, nil, errors.New("the memory store is only reachable through a running gateway")
	}
	s, err := gateway.OpenStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func runSessions(ctx context.Context) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sessions, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tFIELDS\tLAST INTERACTION")
	for _, sess := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			sess.ID, sess.State.Name(), len(sess.Data.Entries()), sess.LastInteractionAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runHistory(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: intake-gateway history ID")
	}

	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	sess, err := s.Get(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no session %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	printHistory(os.Stdout, sess.ID, sess.State.Name(), messages.SummaryLines(sess.Data), sess.History)
	return nil
}

func runSweep(ctx context.Context) error {
	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := store.NewSweeper(s, cfg.Session.SweepInterval, cfg.Session.Retention, nil).SweepOnce(ctx)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("  ✓ Removed %d session(s) idle longer than %s\n", removed, cfg.Session.Retention)
	return nil
}
