package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/task"
	"curator/internal/taskqueue"
)

func newExecuteCommand(ctx *commandContext) *cobra.Command {
	var showAccepted bool

	cmd := &cobra.Command{
		Use:   "execute [task...]",
		Short: "Run tasks now, all enabled ones when none are named",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			summaries, err := ctx.executeTasks(runCtx, args)
			if err != nil && len(summaries) == 0 {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.Task,
					s.State.String(),
					strconv.Itoa(s.Counts.Accepted),
					strconv.Itoa(s.Counts.Rejected),
					strconv.Itoa(s.Counts.Failed),
					strconv.Itoa(s.Counts.Undecided),
					strconv.Itoa(s.Reruns),
					s.Finished.Sub(s.Started).Round(time.Millisecond).String(),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Task", "Outcome", "Accepted", "Rejected", "Failed", "Undecided", "Reruns", "Took"},
				rows,
				2, 3, 4, 5, 6, 7,
			))
			if showAccepted {
				for _, s := range summaries {
					for _, title := range s.Accepted {
						fmt.Fprintf(out, "%s: %s\n", s.Task, title)
					}
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&showAccepted, "accepted", false, "List accepted entry titles")
	return cmd
}

// executeTasks runs the named tasks, or every enabled task, through one
// drained task queue and returns their summaries in submission order.
func (c *commandContext) executeTasks(ctx context.Context, names []string) ([]task.Summary, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		for _, name := range cfg.TaskNames() {
			if !cfg.Tasks[name].Disabled {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil, errors.New("no tasks configured")
	}

	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	reg, err := c.registry()
	if err != nil {
		return nil, err
	}
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	tasks := make([]*task.Task, 0, len(names))
	for _, name := range names {
		tk, err := task.New(name, task.Options{
			Config:   cfg,
			Registry: reg,
			Store:    store,
			Logger:   logger,
			Ring:     c.ring,
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, tk)
	}

	queue := taskqueue.New(logger)
	if err := queue.Start(ctx); err != nil {
		return nil, err
	}
	jobs := make([]*taskqueue.Job, 0, len(tasks))
	for _, tk := range tasks {
		jobs = append(jobs, queue.Submit(tk, tk.Priority()))
	}
	if err := queue.Shutdown(ctx, taskqueue.Drain); err != nil {
		return nil, err
	}

	var errs []error
	summaries := make([]task.Summary, 0, len(tasks))
	for i, job := range jobs {
		if err := job.Wait(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", tasks[i].Name(), err))
			if errors.Is(err, taskqueue.ErrAbandoned) {
				continue
			}
		}
		summaries = append(summaries, tasks[i].Summary())
	}
	return summaries, errors.Join(errs...)
}
