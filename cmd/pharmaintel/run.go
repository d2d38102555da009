package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/runner"
)

type runOptions struct {
	decision string
	json     bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Research a query and review the recommended hypothesis",
		Long: `Dispatch the query to every registered agent in order, print the
synthesized recommendation and record the approval decision.

Without --decision the reviewer is prompted on stdin. Closing stdin abandons
the session without a decision.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, g, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.decision, "decision", "", "Decide without prompting (approve|reject)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the final session snapshot as JSON")

	return cmd
}

func runQuery(cmd *cobra.Command, g *globalOptions, opts *runOptions, query string) error {
	var preset core.Decision
	if opts.decision != "" {
		d, err := core.ParseDecision(opts.decision)
		if err != nil {
			return err
		}
		preset = d
	}

	app, closeFn, err := buildApp(g.cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	progress := out
	if opts.json {
		progress = io.Discard
	}

	h, err := app.Submit(ctx, query)
	if err != nil {
		return err
	}

	names := map[string]string{}
	for _, id := range app.Registry().ListAgents() {
		names[id.ID] = id.DisplayName
	}

	fmt.Fprintf(progress, "Researching %q with %d agents\n\n", query, len(names))
	follow(h, progress, names)

	snap := app.Snapshot()
	if snap.State != core.SessionAwaitingApproval {
		return finish(out, opts, snap, fmt.Errorf("session %s: %s", snap.State, snap.Error))
	}

	renderResult(progress, snap.Result)

	decision := preset
	if !decision.IsFinal() {
		promptOut := out
		if opts.json {
			promptOut = cmd.ErrOrStderr()
		}
		decision, err = promptDecision(cmd.InOrStdin(), promptOut)
		if err != nil {
			_ = app.Abandon()
			return finish(out, opts, app.Snapshot(), err)
		}
	}

	if err := app.Decide(ctx, decision); err != nil {
		return finish(out, opts, app.Snapshot(), err)
	}
	<-h.Done()

	if decision == core.DecisionApproved {
		printStatus(progress, "✓", "Hypothesis approved. Proceeding to detailed R&D planning phase.", color.FgGreen)
	} else {
		printStatus(progress, "↻", "Hypothesis rejected. An alternative approach will be generated on the next run.", color.FgYellow)
	}

	return finish(out, opts, app.Snapshot(), nil)
}

// follow renders agent progress until the session settles.
func follow(h *runner.Handle, w io.Writer, names map[string]string) {
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return
			}
			renderAgentEvent(w, ev, names)
			if ev.Type == core.EventResultReady {
				return
			}
		case <-h.Settled():
			for {
				select {
				case ev, ok := <-h.Events():
					if !ok || ev.Type == core.EventResultReady {
						return
					}
					renderAgentEvent(w, ev, names)
				default:
					return
				}
			}
		}
	}
}

// finish prints the JSON snapshot when requested and passes err through.
func finish(out io.Writer, opts *runOptions, snap core.Snapshot, err error) error {
	if opts.json {
		if jerr := renderJSON(out, snap); jerr != nil {
			return jerr
		}
	}
	return err
}

var errNoDecision = errors.New("no decision given, session abandoned")

// promptDecision asks until a valid answer is read. EOF abandons.
func promptDecision(in io.Reader, out io.Writer) (core.Decision, error) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nApprove this hypothesis? [y/n]: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil {
				return core.DecisionPending, err
			}
			return core.DecisionPending, errNoDecision
		}
		d, err := core.ParseDecision(scanner.Text())
		if err == nil {
			return d, nil
		}
		fmt.Fprintln(out, "Please answer y or n.")
	}
}
