package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/tui/theme"
)

// logFiles returns the log files in dir for day, keyed by component.
// An empty components list selects every component.
func logFiles(dir string, day time.Time, components []string) (map[string]string, error) {
	suffix := "-" + day.Format(time.DateOnly) + ".log"
	matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(components))
	for _, c := range components {
		want[c] = true
	}
	files := make(map[string]string)
	for _, m := range matches {
		component := strings.TrimSuffix(filepath.Base(m), suffix)
		if len(want) == 0 || want[component] {
			files[component] = m
		}
	}
	return files, nil
}

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		date   string
	)
	cmd := &cobra.Command{
		Use:   "logs [component...]",
		Short: "Print or follow the file logs",
		Long: `Reads the log files written when logging.file.enabled is set. Components
are the logger names, such as relay, syncmgr or stores.`,
		Example: `crownest logs relay -f
crownest logs --date 2026-10-17`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				var err error
				if day, err = time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			files, err := logFiles(logging.LogDir(), day, args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No log files for %s in %s\n", day.Format(time.DateOnly), logging.LogDir())
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tailFiles(ctx, cmd.OutOrStdout(), files, follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&date, "date", "", "Day to read (YYYY-MM-DD), default today")
	return cmd
}

func tailFiles(ctx context.Context, w io.Writer, files map[string]string, follow bool) error {
	t := theme.DefaultTheme
	components := make([]string, 0, len(files))
	for c := range files {
		components = append(components, c)
	}
	sort.Strings(components)
	prefix := len(components) > 1

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, component := range components {
		tf, err := tail.TailFile(files[component], tail.Config{
			Follow:    follow,
			ReOpen:    follow,
			MustExist: true,
			Logger:    stdlog.New(io.Discard, "", 0),
		})
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", files[component], err)
		}

		wg.Add(1)
		go func(component string, tf *tail.Tail) {
			defer wg.Done()
			defer tf.Cleanup()
			for {
				select {
				case <-ctx.Done():
					_ = tf.Stop()
					return
				case line, ok := <-tf.Lines:
					if !ok {
						return
					}
					if line.Err != nil {
						continue
					}
					mu.Lock()
					if prefix {
						fmt.Fprintf(w, "%s %s\n", t.Muted.Render(component), line.Text)
					} else {
						fmt.Fprintln(w, line.Text)
					}
					mu.Unlock()
				}
			}
		}(component, tf)
	}
	wg.Wait()
	return nil
}
