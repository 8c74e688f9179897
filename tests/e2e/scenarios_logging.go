package main

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// LogsCommandScenario enables file logging, runs a command, then reads the
// log back with 'crownest logs'.
func LogsCommandScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "crownest-logs-command",
		Description: "File logs written by one command are printed by 'crownest logs'",
		Tags:        []string{"crownest", "logging"},
		Steps: []harness.Step{
			harness.NewStep("Enable file logging", func(ctx *harness.Context) error {
				tableDir := ctx.NewDir("table")
				ctx.Set("table_dir", tableDir)
				yml := `participant:
  id: keeper
  role: gm
logging:
  level: debug
  file:
    enabled: true
`
				return fs.WriteString(filepath.Join(tableDir, "crownest.yml"), yml)
			}),
			harness.NewStep("Join the table", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}
				tableDir := ctx.GetString("table_dir")
				args := append([]string{"tokens"}, storeArgs(tableDir)...)
				cmd := ctx.Command(bin, args...).Dir(tableDir)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				if result.Error != nil {
					return fmt.Errorf("tokens failed: %w", result.Error)
				}
				return nil
			}),
			harness.NewStep("Read the session log", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}
				cmd := ctx.Command(bin, "logs", "session").Dir(ctx.GetString("table_dir"))
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				if result.Error != nil {
					return fmt.Errorf("logs failed: %w", result.Error)
				}
				return assert.Contains(result.Stdout, "Joined table", "session log should record the join")
			}),
		},
	}
}
