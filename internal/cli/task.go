package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/store"
)

// newTaskCmd groups the task lifecycle subcommands.
func newTaskCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(newTaskCreateCmd(state))
	cmd.AddCommand(newTaskListCmd(state))
	cmd.AddCommand(newTaskShowCmd(state))
	cmd.AddCommand(newTaskInputCmd(state))
	cmd.AddCommand(newTaskCancelCmd(state))
	cmd.AddCommand(newTaskRetryCmd(state))

	return cmd
}

func newTaskCreateCmd(state *rootState) *cobra.Command {
	var (
		userID      string
		taskType    string
		description string
		contextJSON string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task and enqueue its first step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !constants.IsValidTaskType(constants.TaskType(taskType)) {
				return fmt.Errorf("%w: unknown task type %q", errors.ErrValidation, taskType)
			}

			var taskContext domain.Document
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &taskContext); err != nil {
					return fmt.Errorf("%w: context must be a JSON object: %s",
						errors.ErrValidation, err.Error())
				}
			}

			e, err := newEngine(cmd.Context(), state.cfg, GetLogger())
			if err != nil {
				return err
			}
			defer e.close()

			t, err := e.store.CreateTask(cmd.Context(), store.CreateTaskParams{
				UserID:      userID,
				Title:       args[0],
				Description: description,
				TaskType:    constants.TaskType(taskType),
				Context:     taskContext,
			})
			if err != nil {
				return err
			}

			if err := e.worker.EnqueueTask(cmd.Context(), t); err != nil {
				return err
			}

			cmd.Printf("created task %s\n", t.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id")
	cmd.Flags().StringVarP(&taskType, "type", "t", string(constants.TaskTypeCustom), "task type")
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&contextJSON, "context", "", "initial context as a JSON object")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newTaskListCmd(state *rootState) *cobra.Command {
	var (
		userID   string
		statuses []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := make([]constants.TaskStatus, 0, len(statuses))
			for _, s := range statuses {
				filter = append(filter, constants.TaskStatus(s))
			}

			e, err := newEngine(cmd.Context(), state.cfg, GetLogger())
			if err != nil {
				return err
			}
			defer e.close()

			tasks, err := e.store.ListTasks(cmd.Context(), userID, filter...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tSTEPS\tTITLE")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					t.ID, t.Status, t.TaskType, t.StepCount, t.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil,
		"filter by status (repeatable)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newTaskShowCmd(state *rootState) *cobra.Command {
	var withMessages bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and optionally its conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context(), state.cfg, GetLogger())
			if err != nil {
				return err
			}
			defer e.close()

			t, err := e.store.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return errors.Wrap(err, "render task")
			}
			cmd.Println(string(out))

			if !withMessages {
				return nil
			}

			msgs, err := e.store.ListMessages(cmd.Context(), t.ID)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				cmd.Printf("[%s] %s: %s\n",
					m.InsertedAt.Format("15:04:05"), m.Role, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&withMessages, "messages", "m", false, "include the conversation ledger")

	return cmd
}

func newTaskInputCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "input <task-id> <text...>",
		Short: "Answer a task that is waiting for input",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context(), state.cfg, GetLogger())
			if err != nil {
				return err
			}
			defer e.close()

			text := strings.Join(args[1:], " ")
			t, err := e.worker.ContinueAfterInput(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}

			cmd.Printf("task %s resumed\n", t.ID)
			return nil
		},
	}
}

func newTaskCancelCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel an active task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context(), state.cfg, GetLogger())
			if err != nil {
				return err
			}
			defer e.close()

			t, err := e.worker.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("task %s cancelled\n", t.ID)
			return nil
		},
	}
}

func newTaskRetryCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Reset a failed task and enqueue a fresh step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context(), state.cfg, GetLogger())
			if err != nil {
				return err
			}
			defer e.close()

			t, err := e.worker.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("task %s queued for retry\n", t.ID)
			return nil
		},
	}
}
