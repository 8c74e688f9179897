package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/config"
	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/internal/relay/pidfile"
	"github.com/grovetools/crownest/internal/relay/server"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/kv"
	"github.com/grovetools/crownest/pkg/paths"
	"github.com/grovetools/crownest/pkg/process"
	"github.com/grovetools/crownest/version"
)

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the relay that shares one table between participants",
		Long: `The relay owns the shared key/value space. Participants on this machine
reach it through a unix socket; remote players through TCP when
relay.listen is set to tcp://host:port.`,
	}
	cmd.AddCommand(newRelayStartCmd(), newRelayStopCmd(), newRelayStatusCmd())
	return cmd
}

func relayListen(cfg *config.Config) string {
	if cfg.Relay.Listen != "" {
		return cfg.Relay.Listen
	}
	return "unix://" + paths.SocketPath()
}

func newRelayStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the relay in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.NewLogger("relay")
			pidPath := paths.PidFilePath()

			shape, err := kv.ParseShape(cfg.Relay.Shape)
			if err != nil {
				return err
			}
			dataFile := cfg.Relay.DataFile
			if dataFile == "" {
				dataFile = paths.RelayDataPath()
			}
			storePath := cfg.Store.Path
			if storePath == "" {
				storePath = paths.StoreFilePath()
			}
			if paths.Same(dataFile, storePath) {
				return errors.ConfigInvalid("relay.data_file must not be the file store")
			}
			listen := relayListen(cfg)

			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			mem, err := kv.NewMemory(kv.WithShape(shape), kv.WithPersistence(dataFile))
			if err != nil {
				return err
			}
			defer mem.Close()

			srv := server.New(logger, mem, shape)
			srv.SetRunningConfig(&server.RunningConfig{
				Listen:    listen,
				DataFile:  dataFile,
				Shape:     cfg.Relay.Shape,
				Version:   version.Version,
				Protocol:  version.Protocol,
				StartedAt: time.Now(),
			})

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)
			go func() {
				<-stop
				logger.Info("Received stop signal")
				// Ending the streams first lets Shutdown finish promptly.
				mem.Close()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					logger.Errorf("Relay shutdown error: %v", err)
				}
			}()

			logger.WithField("pid", os.Getpid()).Info("Starting relay")
			if err := srv.ListenAndServe(listen); err != nil {
				return fmt.Errorf("relay error: %w", err)
			}
			return nil
		},
	}
}

func newRelayStopCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Relay is not running")
				return nil
			}

			killed, err := process.Terminate(cmd.Context(), pid, grace)
			if err != nil {
				return err
			}
			if killed {
				fmt.Fprintf(cmd.OutOrStdout(), "Relay (PID %d) did not stop within %s and was killed\n", pid, grace)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relay (PID %d) stopped\n", pid)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "timeout", 5*time.Second, "How long to wait before killing the relay")
	return cmd
}

// RelayStatus is printed by `relay status`.
type RelayStatus struct {
	Running   bool                  `json:"running"`
	PID       int                   `json:"pid,omitempty"`
	Address   string                `json:"address"`
	Reachable bool                  `json:"reachable"`
	Config    *server.RunningConfig `json:"config,omitempty"`
}

func newRelayStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check relay status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			status := RelayStatus{Address: cfg.Store.Relay}
			if status.Address == "" {
				status.Address = relayListen(cfg)
			}
			status.Running, status.PID, err = pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			remote, err := kv.NewRemote(status.Address, cfg.Participant.ID)
			if err != nil {
				return err
			}
			defer remote.Close()
			status.Reachable = remote.IsRunning(cmd.Context())
			if status.Reachable {
				status.Config = fetchRunningConfig(cmd.Context(), remote)
			}

			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), status)
			}
			out := cmd.OutOrStdout()
			switch {
			case status.Reachable:
				fmt.Fprintf(out, "Running (PID: %d)\nAddress: %s\n", status.PID, status.Address)
				if status.Config != nil {
					fmt.Fprintf(out, "Data:    %s\nSince:   %s\n", status.Config.DataFile, status.Config.StartedAt.Format(time.RFC3339))
				}
			case status.Running:
				fmt.Fprintf(out, "Process %d is alive but %s does not answer\n", status.PID, status.Address)
			default:
				fmt.Fprintln(out, "Stopped")
			}
			return nil
		},
	}
}

func fetchRunningConfig(ctx context.Context, remote *kv.Remote) *server.RunningConfig {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote.BaseURL()+"/api/config", nil)
	if err != nil {
		return nil
	}
	resp, err := remote.HTTPClient().Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var rc server.RunningConfig
	if err := json.NewDecoder(resp.Body).Decode(&rc); err != nil {
		return nil
	}
	return &rc
}
