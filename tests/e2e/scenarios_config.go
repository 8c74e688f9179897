package main

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// ConfigFileScenario verifies that a project crownest.yml is discovered and
// that flags override it.
func ConfigFileScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "crownest-config-file",
		Description: "Discovers crownest.yml in the working directory and applies flag overrides",
		Tags:        []string{"crownest", "config"},
		Steps: []harness.Step{
			harness.NewStep("Write crownest.yml", func(ctx *harness.Context) error {
				tableDir := ctx.NewDir("table")
				ctx.Set("table_dir", tableDir)
				yml := `namespace: crow-nest
participant:
  id: keeper
  name: Keeper
  role: gm
store:
  backend: file
`
				return fs.WriteString(filepath.Join(tableDir, "crownest.yml"), yml)
			}),
			harness.NewStep("Show the effective config", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}
				tableDir := ctx.GetString("table_dir")

				cmd := ctx.Command(bin, "config").Dir(tableDir)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				if result.Error != nil {
					return fmt.Errorf("`crownest config` failed: %w", result.Error)
				}
				if err := assert.Contains(result.Stdout, "id: keeper", "participant id should come from the file"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "backend: file", "store backend should come from the file"); err != nil {
					return err
				}

				cmd = ctx.Command(bin, "config", "--role", "player").Dir(tableDir)
				result = cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				if result.Error != nil {
					return fmt.Errorf("`crownest config --role player` failed: %w", result.Error)
				}
				return assert.Contains(result.Stdout, "role: player", "--role should override the file")
			}),
			harness.NewStep("Print the JSON schema", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}
				cmd := ctx.Command(bin, "config", "--schema")
				result := cmd.Run()
				if result.Error != nil {
					return result.Error
				}
				return assert.Contains(result.Stdout, `"participant"`, "schema should describe the participant section")
			}),
		},
	}
}

// ConfigInvalidRoleScenario verifies that a bad role is reported with its
// error code and a non-zero exit.
func ConfigInvalidRoleScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "crownest-config-invalid-role",
		Description: "Rejects an unknown participant role",
		Tags:        []string{"crownest", "config"},
		Steps: []harness.Step{
			harness.NewStep("Run with --role dragon", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}
				cmd := ctx.Command(bin, "tokens", "--role", "dragon", "--store", "memory")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(1, result.ExitCode, "invalid role should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "role", "error should name the role")
			}),
		},
	}
}
