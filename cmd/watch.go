package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/moby/patternmatcher"
	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/tui/dashboard"
	"github.com/grovetools/crownest/tui/theme"
)

// domainFilter matches domain names against glob patterns. A leading "!"
// excludes. No patterns match everything.
type domainFilter struct {
	pm *patternmatcher.PatternMatcher
}

func newDomainFilter(patterns []string) (*domainFilter, error) {
	if len(patterns) == 0 {
		return &domainFilter{}, nil
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid --domain pattern: %w", err)
	}
	return &domainFilter{pm: pm}, nil
}

func (f *domainFilter) Match(d envelope.Domain) bool {
	if f.pm == nil {
		return true
	}
	ok, err := f.pm.MatchesOrParentMatches(string(d))
	return err == nil && ok
}

func newWatchCmd() *cobra.Command {
	var (
		domains []string
		useTUI  bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream every change made to the table",
		Example: `# Everything, one line per change
crownest watch

# Only the guard sheet domains, as JSON lines
crownest watch --domain 'stat*' --domain modifiers --json

# Everything except presets, in a live dashboard
crownest watch --domain '*' --domain '!presets' --tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := newDomainFilter(domains)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			events := make(chan envelope.Envelope, 256)
			id := s.Manager.Subscribe(envelope.DomainAll, func(env envelope.Envelope) {
				if !filter.Match(env.Domain) {
					return
				}
				select {
				case events <- env:
				case <-ctx.Done():
				}
			})
			defer s.Manager.Unsubscribe(envelope.DomainAll, id)

			if useTUI {
				var descs []envelope.Descriptor
				for _, d := range s.Manager.Registry().Domains() {
					if filter.Match(d.Domain) {
						descs = append(descs, d)
					}
				}
				model := dashboard.New(dashboard.Options{
					Participant: s.Manager.Participant(),
					Namespace:   s.Manager.Namespace(),
					Domains:     descs,
					Events:      events,
					Stats:       s.Manager.Stats,
				})
				_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
				if err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			}

			return printEvents(ctx, cmd.OutOrStdout(), events, cli.GetOptions(cmd).JSONOutput)
		},
	}
	cmd.Flags().StringArrayVarP(&domains, "domain", "d", nil, "Domain pattern to include, or exclude with a leading '!' (repeatable)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show a live dashboard instead of a log")
	return cmd
}

func printEvents(ctx context.Context, w io.Writer, events <-chan envelope.Envelope, asJSON bool) error {
	t := theme.DefaultTheme
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-events:
			if asJSON {
				if err := enc.Encode(env); err != nil {
					return err
				}
				continue
			}
			at := env.Time().Format("15:04:05")
			fmt.Fprintf(w, "%s %s %s %s %s\n",
				t.Muted.Render(at),
				t.Title.Render(string(env.Domain)),
				env.Action,
				t.Muted.Render("by "+env.Origin),
				compact(env.Data, 80))
		}
	}
}

func compact(raw json.RawMessage, n int) string {
	s := string(raw)
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
