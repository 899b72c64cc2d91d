package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/notify"
)

var (
	serverURL string
	userID    string
	natsURL   string
)

func main() {
	root := &cobra.Command{
		Use:           "washctl",
		Short:         "Command the shared washing machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "washd base URL")
	root.PersistentFlags().StringVar(&userID, "user", "", "user id (also WASHCTL_USER)")
	root.PersistentFlags().StringVar(&natsURL, "nats", nats.DefaultURL, "NATS server URL (watch command)")

	root.AddCommand(
		registerCmd(),
		statusCmd(),
		actionCmd("start", "Claim the free machine", "/start", true),
		actionCmd("finish", "End your turn", "/finish", false),
		actionCmd("accept", "Confirm the hand-off as the designated candidate", "/accept", true),
		joinCmd(),
		leaveCmd(),
		watchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func resolveUser() (string, error) {
	if userID != "" {
		return userID, nil
	}
	if env := os.Getenv("WASHCTL_USER"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("--user or WASHCTL_USER required")
}

func post(path string, body interface{}) (map[string]interface{}, error) {
	uid, err := resolveUser()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", uid)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	// 409 bodies carry the authoritative snapshot, print them like success.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		return out, fmt.Errorf("%s: %v", resp.Status, out["error"])
	}
	return out, nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func registerCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register your display name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			out, err := post("/register", map[string]string{"name": name})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the machine status and queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(serverURL + "/status")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			var out map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func actionCmd(use, short, path string, withTimer bool) *cobra.Command {
	var durationMin int64
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body interface{}
			if withTimer && durationMin > 0 {
				body = map[string]int64{"duration_ms": durationMin * 60 * 1000}
			}
			out, err := post(path, body)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	if withTimer {
		cmd.Flags().Int64Var(&durationMin, "minutes", 0, "advisory timer length in minutes")
	}
	return cmd
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Join the waiting queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := post("/queue/join", nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func leaveCmd() *cobra.Command {
	var entryID string
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Remove one of your queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if entryID == "" {
				return fmt.Errorf("--entry required")
			}
			out, err := post("/queue/leave", map[string]string{"entry_id": entryID})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&entryID, "entry", "", "queue entry id")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the status stream over NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync()

			nc, err := nats.Connect(natsURL, nats.Name("washctl-watch"))
			if err != nil {
				return err
			}
			defer nc.Drain()

			sub, err := nc.Subscribe(notify.StatusSubject, func(msg *nats.Msg) {
				var snap map[string]interface{}
				if err := json.Unmarshal(msg.Data, &snap); err != nil {
					log.Warn("bad status payload", zap.Error(err))
					return
				}
				printJSON(snap)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			log.Info("watching", zap.String("subject", notify.StatusSubject))
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			return nil
		},
	}
}
