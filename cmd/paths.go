package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/pkg/paths"
)

// PathsOutput lists the directories and files crownest uses.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	StateDir  string `json:"state_dir"`
	Socket    string `json:"socket"`
	PidFile   string `json:"pid_file"`
	FileStore string `json:"file_store"`
	RelayData string `json:"relay_data"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths crownest reads and writes",
		Long: `Paths follow the XDG base directories, or live under $CROWNEST_HOME
when it is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				DataDir:   paths.DataDir(),
				StateDir:  paths.StateDir(),
				Socket:    paths.SocketPath(),
				PidFile:   paths.PidFilePath(),
				FileStore: paths.StoreFilePath(),
				RelayData: paths.RelayDataPath(),
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), out)
			}
			rows := [][2]string{
				{"config", out.ConfigDir},
				{"data", out.DataDir},
				{"state", out.StateDir},
				{"socket", out.Socket},
				{"pid file", out.PidFile},
				{"file store", out.FileStore},
				{"relay data", out.RelayData},
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%-11s %s\n", r[0], r[1])
			}
			return nil
		},
	}
}
