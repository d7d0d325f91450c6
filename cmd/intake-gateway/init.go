// ABOUTME: Interactive config file generator for the init command
// ABOUTME: Prompts for shop details, Matrix account and ops API, then writes YAML

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// initAnswers collects what runInit asks for.
type initAnswers struct {
	CompanyName    string
	Address        string
	PaymentMethods string
	Operator       string
	StorePath      string

	MatrixEnabled bool
	Homeserver    string
	Username      string
	Password      string

	OpsEnabled bool
	OpsAddr    string
	JWTSecret  string

	LogLevel  string
	LogFormat string
}

type fileConfig struct {
	Company fileCompany `yaml:"company"`
	Handoff fileHandoff `yaml:"handoff"`
	Store   fileStore   `yaml:"store"`
	Matrix  fileMatrix  `yaml:"matrix"`
	Ops     fileOps     `yaml:"ops"`
	Logging fileLogging `yaml:"logging"`
}

type fileCompany struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address,omitempty"`
	PaymentMethods string `yaml:"payment_methods,omitempty"`
}

type fileHandoff struct {
	Operator string `yaml:"operator,omitempty"`
}

type fileStore struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type fileMatrix struct {
	Enabled    bool   `yaml:"enabled"`
	Homeserver string `yaml:"homeserver,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
}

type fileOps struct {
	Enabled   bool   `yaml:"enabled"`
	HTTPAddr  string `yaml:"http_addr,omitempty"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

type fileLogging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// renderConfig produces the YAML config file for a.
func renderConfig(a initAnswers) ([]byte, error) {
	fc := fileConfig{
		Company: fileCompany{Name: a.CompanyName, Address: a.Address, PaymentMethods: a.PaymentMethods},
		Handoff: fileHandoff{Operator: a.Operator},
		Store:   fileStore{Driver: "sqlite", Path: a.StorePath},
		Matrix:  fileMatrix{Enabled: a.MatrixEnabled},
		Ops:     fileOps{Enabled: a.OpsEnabled},
		Logging: fileLogging{Level: a.LogLevel, Format: a.LogFormat},
	}
	if a.MatrixEnabled {
		fc.Matrix.Homeserver = a.Homeserver
		fc.Matrix.Username = a.Username
		fc.Matrix.Password = a.Password
	}
	if a.OpsEnabled {
		fc.Ops.HTTPAddr = a.OpsAddr
		fc.Ops.JWTSecret = a.JWTSecret
	}

	body, err := yaml.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	header := "# intake-gateway configuration\n# Generated by intake-gateway init\n\n"
	return append([]byte(header), body...), nil
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("intake-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	defaultDbPath := filepath.Join(getDataPath(), "intake.db")

	outputFile := prompt(reader, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Shop ---")
	a.CompanyName = prompt(reader, "Company name", "")
	if a.CompanyName == "" {
		return fmt.Errorf("company name is required")
	}
	a.Address = prompt(reader, "Address", "")
	a.PaymentMethods = prompt(reader, "Payment methods", "")

	fmt.Println("\n--- Matrix ---")
	a.MatrixEnabled = yes(prompt(reader, "Connect to Matrix?", "yes"))
	if a.MatrixEnabled {
		a.Homeserver = prompt(reader, "Homeserver URL", "https://matrix.org")
		a.Username = prompt(reader, "Bot username", "")
		a.Password = prompt(reader, "Bot password (or ${MATRIX_PASSWORD})", "${MATRIX_PASSWORD}")
	}
	a.Operator = prompt(reader, "Operator room for hand-offs (leave empty to only log)", "")

	fmt.Println("\n--- Storage ---")
	a.StorePath = prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Ops API ---")
	a.OpsEnabled = yes(prompt(reader, "Enable ops API?", "no"))
	if a.OpsEnabled {
		a.OpsAddr = prompt(reader, "Ops HTTP address", "127.0.0.1:8080")
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		a.JWTSecret = secret
	}

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	content, err := renderConfig(a)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, content, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.StorePath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the assistant:")
	fmt.Println("  intake-gateway serve")
	if a.OpsEnabled {
		fmt.Println("  intake-gateway token --name you --role admin")
	}
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
