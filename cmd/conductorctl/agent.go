package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/conductor-dev/conductor/internal/normalizer"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run and supervise vendor agent CLI sessions",
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently active agent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Agents []struct {
				SessionID string `json:"session_id"`
				Engine    string `json:"engine"`
				Cwd       string `json:"cwd"`
			} `json:"agents"`
		}
		if err := newClient().do(cmd.Context(), "GET", "/api/v1/agents", nil, &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp.Agents)
		}
		if len(resp.Agents) == 0 {
			fmt.Println(color.HiBlackString("no active agents"))
			return nil
		}
		for _, a := range resp.Agents {
			fmt.Printf("%s\t%s\t%s\n", color.CyanString(a.SessionID), a.Engine, a.Cwd)
		}
		return nil
	},
}

var agentStopCmd = &cobra.Command{
	Use:   "stop <session>",
	Short: "Stop a running agent session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do(cmd.Context(), "POST", "/api/v1/agents/"+args[0]+"/stop", nil, nil); err != nil {
			return err
		}
		fmt.Printf("%s stopped %s\n", color.GreenString("✓"), args[0])
		return nil
	},
}

var (
	agentRunEngine string
	agentRunCwd    string
	agentRunResume string
)

var agentRunCmd = &cobra.Command{
	Use:   "run <session-id> <prompt>",
	Short: "Start a vendor agent CLI session and stream its normalized events",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := fmt.Sprintf("session_id=%s&engine=%s&cwd=%s&prompt=%s&resume_token=%s",
			urlEscape(args[0]), urlEscape(agentRunEngine), urlEscape(agentRunCwd), urlEscape(args[1]), urlEscape(agentRunResume))
		return streamAgentEvents(cmd.Context(), "/api/v1/agents/run?"+query)
	},
}

var agentAttachCmd = &cobra.Command{
	Use:   "attach <session>",
	Short: "Attach to an already-running agent session's event stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return streamAgentEvents(cmd.Context(), "/api/v1/agents/"+args[0]+"/attach")
	},
}

// streamAgentEvents upgrades to a WebSocket over the daemon's Unix socket
// and prints each SessionEvent frame as it arrives.
func streamAgentEvents(ctx context.Context, path string) error {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	conn, resp, err := dialer.DialContext(ctx, "ws://conductor"+path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != 0 {
			return fmt.Errorf("connect to conductord: %s", resp.Status)
		}
		return fmt.Errorf("connect to conductord: %w", err)
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if jsonOutput {
			fmt.Println(string(data))
			continue
		}
		printSessionEvent(data)
	}
}

func printSessionEvent(data []byte) {
	var frame struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		fmt.Println(string(data))
		return
	}

	var ev normalizer.Event
	_ = json.Unmarshal(frame.Payload, &ev)

	// Recover resume tokens a vendor CLI printed as prose before showing
	// the line itself, so the token is visible even in non-JSON output.
	for _, tok := range scanResumeTokens(ev.Text) {
		fmt.Printf("%s resume %s %s\n", color.YellowString("●"), tok.Engine, tok.Token)
	}

	switch frame.Kind {
	case "started":
		fmt.Println(color.GreenString("● agent started"))
		return
	case "completed":
		fmt.Println(color.GreenString("● agent completed"))
		return
	}

	// Kind "event" wraps one of the normalizer's own uniform events. A
	// real agent.started/agent.completed rides here too, alongside its
	// resume token or final answer, and must not be collapsed into the
	// transport markers' bare banners above.
	switch ev.Type {
	case normalizer.EventStarted:
		if ev.Resume != "" {
			fmt.Printf("%s session started, resume %s\n", color.GreenString("●"), ev.Resume)
		} else {
			fmt.Println(color.GreenString("● agent started"))
		}
	case normalizer.EventCompleted:
		if ev.OK != nil && !*ev.OK {
			fmt.Printf("%s agent failed: %s\n", color.RedString("●"), ev.Error)
		} else {
			fmt.Printf("%s %s\n", color.GreenString("●"), ev.Answer)
		}
		if ev.Resume != "" {
			fmt.Printf("%s resume %s\n", color.YellowString("●"), ev.Resume)
		}
	case normalizer.EventMessage:
		fmt.Println(ev.Text)
	case normalizer.EventAction:
		if ev.ActionV != nil {
			fmt.Printf("%s %s: %s\n", color.CyanString("●"), ev.ActionV.Kind, ev.ActionV.Title)
		}
	default:
		fmt.Println(string(frame.Payload))
	}
}

func urlEscape(s string) string {
	return url.QueryEscape(s)
}

func init() {
	agentRunCmd.Flags().StringVar(&agentRunEngine, "engine", "claude", "vendor agent CLI to launch (claude, codex, gemini)")
	agentRunCmd.Flags().StringVar(&agentRunCwd, "cwd", "", "working directory the agent runs in (required)")
	agentRunCmd.Flags().StringVar(&agentRunResume, "resume", "", "resume token from a prior session")
	_ = agentRunCmd.MarkFlagRequired("cwd")
	agentCmd.AddCommand(agentListCmd, agentStopCmd, agentRunCmd, agentAttachCmd)
	rootCmd.AddCommand(agentCmd)
}
