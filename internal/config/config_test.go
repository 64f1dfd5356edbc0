package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: agileboard_prod
  user: agile
  password: hunter2

server:
  port: 9090

jobs:
  metrics_cron: "15 * * * *"
  burndown_cron: "0 22 * * *"

seed:
  statuses:
    - {name: Open, category: todo, sort_order: 1, color: "#808080"}
    - {name: In Progress, category: in_progress, sort_order: 2, color: "#0066ff"}
    - {name: Done, category: done, sort_order: 3, color: "#00aa00"}
  priorities:
    - {name: High, sort_order: 1, color: "#cc0000"}
    - {name: Medium, sort_order: 2, color: "#ff9900"}
  types: [Story, Bug, Task]
  schemes:
    - name: default
      description: Basic three-column flow
      transitions:
        - {from: Open, to: In Progress, name: Start work}
        - {from: In Progress, to: Done, name: Finish, permission: QA}
`

const minimalYAML = `
database:
  driver: sqlite
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Jobs.MetricsCron != "15 * * * *" {
		t.Errorf("Jobs.MetricsCron = %q, want %q", cfg.Jobs.MetricsCron, "15 * * * *")
	}
	if len(cfg.Seed.Statuses) != 3 {
		t.Fatalf("len(Seed.Statuses) = %d, want 3", len(cfg.Seed.Statuses))
	}
	if cfg.Seed.Statuses[1].Category != "in_progress" {
		t.Errorf("Statuses[1].Category = %q, want %q", cfg.Seed.Statuses[1].Category, "in_progress")
	}
	if len(cfg.Seed.Schemes) != 1 || len(cfg.Seed.Schemes[0].Transitions) != 2 {
		t.Fatalf("scheme seed not parsed: %+v", cfg.Seed.Schemes)
	}
	if cfg.Seed.Schemes[0].Transitions[1].Permission != "QA" {
		t.Errorf("transition permission = %q, want QA", cfg.Seed.Schemes[0].Transitions[1].Permission)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "agileboard.db" {
		t.Errorf("Database.Path = %q, want agileboard.db", cfg.Database.Path)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Jobs.MetricsCron != "0 * * * *" {
		t.Errorf("Jobs.MetricsCron = %q, want hourly default", cfg.Jobs.MetricsCron)
	}
	if cfg.Jobs.BurndownCron != "30 23 * * *" {
		t.Errorf("Jobs.BurndownCron = %q, want nightly default", cfg.Jobs.BurndownCron)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad driver",
			yaml: "database:\n  driver: postgres\n",
			want: "database.driver",
		},
		{
			name: "bad cron",
			yaml: "jobs:\n  metrics_cron: \"not a cron\"\n",
			want: "jobs.metrics_cron",
		},
		{
			name: "bad status category",
			yaml: "seed:\n  statuses:\n    - {name: Odd, category: limbo}\n",
			want: "category",
		},
		{
			name: "transition missing endpoint",
			yaml: "seed:\n  schemes:\n    - name: s\n      transitions:\n        - {from: Open}\n",
			want: "from and to are required",
		},
		{
			name: "not yaml",
			yaml: "{{{",
			want: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agileboard.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Name != "agileboard_prod" {
		t.Errorf("Database.Name = %q, want agileboard_prod", cfg.Database.Name)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
