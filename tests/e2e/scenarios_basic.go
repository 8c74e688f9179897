package main

import (
	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/command"
	"github.com/grovetools/tend/pkg/harness"
)

// VersionScenario tests the 'version' command.
func VersionScenario() *harness.Scenario {
	return &harness.Scenario{
		Name: "crownest-basic-version",
		Tags: []string{"crownest", "basic"},
		Steps: []harness.Step{
			harness.NewStep("Run 'crownest version'", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}

				cmd := command.New(bin, "version")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "crownest version should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "Version:", "Output should contain Version"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "Protocol:", "Output should contain the relay protocol")
			}),
		},
	}
}

// PathsScenario checks that every path resolves under the sandboxed home.
func PathsScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "crownest-basic-paths",
		Description: "Prints the resolved directories as JSON",
		Tags:        []string{"crownest", "basic"},
		Steps: []harness.Step{
			harness.NewStep("Run 'crownest paths --json'", func(ctx *harness.Context) error {
				bin, err := findCrownestBinary()
				if err != nil {
					return err
				}

				cmd := ctx.Command(bin, "paths", "--json")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				if result.Error != nil {
					return result.Error
				}
				if err := assert.Contains(result.Stdout, `"socket"`, "socket path should be listed"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "crownest", "paths should live in a crownest directory")
			}),
		},
	}
}
