package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"agentmux/internal/agentmodel"
	"agentmux/internal/continuation"
	"agentmux/internal/registration"
)

// newSessionCmd groups the Agent Registration Engine's public operations
// as operator-facing verbs, using a parent-command-with-subcommands shape.
func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, message, and tear down agent sessions",
	}
	cmd.AddCommand(
		newSessionCreateCmd(),
		newSessionSendCmd(),
		newSessionSendKeyCmd(),
		newSessionHealthCmd(),
		newSessionTerminateCmd(),
		newSessionAnalyzeCmd(),
		newSessionWatchCmd(),
	)
	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var role, project, memberID, teamID, runtime, command string
	var skills, skillExclusions []string

	cmd := &cobra.Command{
		Use:   "create <session-name>",
		Short: "Bring an agent session from nothing to registered and ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			in := registration.CreateInput{
				SessionName:     args[0],
				Role:            role,
				ProjectPath:     project,
				MemberID:        memberID,
				TeamID:          teamID,
				Command:         command,
				EffectiveSkills: resolveEffectiveSkills(a, role, teamID, memberID, skills, skillExclusions),
			}
			if runtime != "" {
				rt, ok := agentmodel.ParseRuntimeType(runtime)
				if !ok {
					return fmt.Errorf("unknown --runtime %q", runtime)
				}
				in.RuntimeType = &rt
			}

			result := a.engine.CreateAgentSession(in)
			return printResult(cmd, result)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "agent role (required)")
	cmd.Flags().StringVar(&project, "project", ".", "project working directory")
	cmd.Flags().StringVar(&memberID, "member-id", "", "team member id, if any")
	cmd.Flags().StringVar(&teamID, "team-id", "", "team id, if any")
	cmd.Flags().StringVar(&runtime, "runtime", "", "claude-code | gemini-cli | codex-cli (default: resolved from storage)")
	cmd.Flags().StringVar(&command, "command", "bash", "shell/runtime launch vehicle")
	cmd.Flags().StringSliceVar(&skills, "skills", nil, "extra skills to enable on top of the role's defaults")
	cmd.Flags().StringSliceVar(&skillExclusions, "skill-exclusions", nil, "role-default skills to disable for this session")
	cmd.MarkFlagRequired("role")

	return cmd
}

// resolveEffectiveSkills combines the role's configured default skill set
// with the member's stored overrides/exclusions (when the session belongs
// to a known team member) and any operator-supplied flags: defaults union
// overrides, minus exclusions.
func resolveEffectiveSkills(a *app, role, teamID, memberID string, flagSkills, flagExclusions []string) []string {
	overrides := append([]string(nil), flagSkills...)
	exclusions := append([]string(nil), flagExclusions...)
	if a.storage != nil && teamID != "" && memberID != "" {
		if team, err := a.storage.GetTeam(teamID); err == nil {
			for _, m := range team.Members {
				if m.ID == memberID {
					overrides = append(overrides, m.SkillOverrides...)
					exclusions = append(exclusions, m.ExcludedRoleSkills...)
				}
			}
		}
	}
	return agentmodel.EffectiveSkills(a.cfg.RoleSkills(role), overrides, exclusions)
}

func newSessionSendCmd() *cobra.Command {
	var runtime string
	cmd := &cobra.Command{
		Use:   "send <session-name> <message>",
		Short: "Deliver a message into a running agent's terminal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rt := agentmodel.RuntimeClaudeCode
			if runtime != "" {
				parsed, ok := agentmodel.ParseRuntimeType(runtime)
				if !ok {
					return fmt.Errorf("unknown --runtime %q", runtime)
				}
				rt = parsed
			}
			if err := a.engine.SendMessageToAgent(args[0], args[1], rt); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "delivered")
			return nil
		},
	}
	cmd.Flags().StringVar(&runtime, "runtime", "", "claude-code | gemini-cli | codex-cli")
	return cmd
}

func newSessionSendKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-key <session-name> <key>",
		Short: "Write a single symbolic key (Enter, Escape, C-c, C-u, Up, Down, Left, Right)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.engine.SendKeyToAgent(args[0], args[1])
		},
	}
}

func newSessionHealthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health <session-name>",
		Short: "Check whether a session is running and its registered status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			status := a.engine.CheckAgentHealth(args[0], timeout)
			colors := newStatusColors()
			fmt.Fprintf(cmd.OutOrStdout(), "running=%v status=%s at=%s\n",
				status.Running, colors.Status(status.Status), status.Timestamp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "health-probe timeout (default 1s)")
	return cmd
}

func newSessionTerminateCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "terminate <session-name>",
		Short: "Tear down an agent session cleanly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			result := a.engine.TerminateAgentSession(args[0], role)
			return printResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "agent role, if known")
	return cmd
}

func newSessionAnalyzeCmd() *cobra.Command {
	var task string
	var lines int
	cmd := &cobra.Command{
		Use:   "analyze <session-name>",
		Short: "Classify the agent's last pane output and recommend a continuation action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			pane, err := a.helper.CapturePane(args[0], lines)
			if err != nil {
				return err
			}
			event := continuation.Event{
				Trigger:     continuation.TriggerExplicit,
				SessionName: args[0],
				Timestamp:   time.Now(),
			}
			analysis := a.analyzer.Analyze(event, pane, task)
			out, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task identifier for the iteration cap; omit to skip counting")
	cmd.Flags().IntVar(&lines, "lines", 200, "pane lines to capture before classifying")
	return cmd
}

func newSessionWatchCmd() *cobra.Command {
	var task string
	var idleCycles int
	var interval time.Duration
	var heartbeatFile string
	cmd := &cobra.Command{
		Use:   "watch <session-name>",
		Short: "Poll a session for idleness and print continuation analyses as they fire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			session := args[0]
			if idleCycles <= 0 {
				idleCycles = a.analyzer.IdleCycles()
			}
			if interval <= 0 {
				interval = a.analyzer.PollInterval()
			}

			handler := func(event continuation.Event) {
				pane, err := a.helper.CapturePane(session, 200)
				if err != nil {
					return
				}
				analysis := a.analyzer.Analyze(event, pane, task)
				out, err := json.Marshal(analysis)
				if err != nil {
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))

				// An idle agent is a workingStatus transition observers may
				// have subscribed to.
				if teamID, member, err := a.storage.FindMemberBySessionName(session); err == nil {
					a.events.PublishStatusChange("agent:idle", teamID, member.ID, session,
						"", agentmodel.FieldWorkingStatus,
						agentmodel.WorkingBusy.String(), agentmodel.WorkingIdle.String())
				}
			}

			ctx := cmd.Context()
			if heartbeatFile != "" {
				// The heartbeat channel itself is external; the file's mtime
				// stands in for "last MCP call at".
				lastHeartbeat := func() time.Time {
					info, err := os.Stat(heartbeatFile)
					if err != nil {
						return time.Time{}
					}
					return info.ModTime()
				}
				watchdog := continuation.NewHeartbeatWatchdog(lastHeartbeat, handler,
					session, "", "", interval)
				go func() { _ = watchdog.Run(ctx) }()
			}

			poller := continuation.NewActivityPoller(a.backend, handler,
				session, "", "", idleCycles, interval)
			err = poller.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task identifier for the iteration cap; omit to skip counting")
	cmd.Flags().IntVar(&idleCycles, "idle-cycles", 0, "unchanged pane captures before the agent counts as idle (default: configured)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between pane captures (default: configured)")
	cmd.Flags().StringVar(&heartbeatFile, "heartbeat-file", "", "file whose modification time is the agent's last MCP call; enables stale-heartbeat detection")
	return cmd
}

// printResult renders a registration.Result as the wire-level JSON error
// shape ({success, error, sessionName?}), returning a non-nil
// error (so the process exits non-zero) exactly when the operation failed.
func printResult(cmd *cobra.Command, result registration.Result) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}
