// Package config handles configuration loading for intake-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion. A .env file in the working directory is
// loaded first; variables already present in the environment are not
// overwritten. Defaults are applied before validation.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	matrix:
//	  access_token: "${MATRIX_ACCESS_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	session:
//	  retention: "24h"
//	  sweep_interval: "6h"
//	  stale_after: "15s"
//
// # Configuration Sections
//
// Company and opening hours:
//
//	company:
//	  name: "Molas Tágua"
//	  budget_response_minutes: 45
//	schedule:
//	  timezone: "America/Sao_Paulo"
//	  days:
//	    monday: "08:00-18:00"
//	    saturday: "08:00-12:00"
//
// Services catalog (omit entries to use the built-in one):
//
//	catalog:
//	  collect_vehicle: true
//	  entries:
//	    - key: "2"
//	      label: "Molas (troca/arquear)"
//	      kind: submenu
//	      category: springs
//	      options:
//	        - {key: "1", label: "Troca de mola", service_type: "Troca de mola", track: standard}
//	        - {key: "2", label: "Arquear mola", service_type: "Arquear mola", immediate: true}
//
// Storage, transport and hand-off:
//
//	store:
//	  driver: sqlite   # sqlite, memory
//	  path: "/var/lib/intake/intake.db"
//	matrix:
//	  enabled: true
//	  homeserver: "https://matrix.example.org"
//	  user_id: "@shop:example.org"
//	  access_token: "${MATRIX_ACCESS_TOKEN}"
//	handoff:
//	  operator: "!operators:example.org"
//
// Operator API, optionally reachable only over a tailnet:
//
//	ops:
//	  enabled: true
//	  http_addr: "127.0.0.1:8080"
//	  jwt_secret: "${INTAKE_JWT_SECRET}"
//	  tailscale:
//	    enabled: false
//	    hostname: "intake-gateway"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
