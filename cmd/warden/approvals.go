package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/arenvik/warden/internal/ledger"
)

func approvalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Inspect and resolve pending approvals via the running daemon",
	}
	cmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "Gateway base URL")
	cmd.PersistentFlags().String("token", "", "Gateway bearer token")
	cmd.PersistentFlags().StringP("user", "u", "", "User whose approvals to manage")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(approvalsListCmd(), approvalsReviewCmd())
	return cmd
}

func approvalsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open pending actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := clientFromFlags(cmd)
			user, _ := cmd.Flags().GetString("user")

			actions, err := client.listPending(user)
			if err != nil {
				return err
			}
			if len(actions) == 0 {
				fmt.Println("No pending approvals.")
				return nil
			}

			for _, a := range actions {
				fmt.Printf("%s  %-20s  expires %s\n  args: %s\n",
					a.ID, a.ToolName,
					a.ExpiresAt.Local().Format(time.RFC822),
					truncate(string(a.Arguments), 120),
				)
			}
			return nil
		},
	}
}

func approvalsReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Interactively approve or reject pending actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := clientFromFlags(cmd)
			user, _ := cmd.Flags().GetString("user")

			actions, err := client.listPending(user)
			if err != nil {
				return err
			}
			if len(actions) == 0 {
				fmt.Println("No pending approvals.")
				return nil
			}

			for _, a := range actions {
				decision, reason, err := reviewOne(a)
				if err != nil {
					return err
				}
				if decision == "skip" {
					continue
				}

				resolved, err := client.resolve(a.ID, decision, reason)
				if err != nil {
					fmt.Printf("  %s: %v\n", a.ID, err)
					continue
				}
				fmt.Printf("  %s → %s\n", a.ID, resolved.Status)
			}
			return nil
		},
	}
}

// reviewOne prompts for a decision on a single pending action.
func reviewOne(a *ledger.PendingAction) (decision, reason string, err error) {
	title := fmt.Sprintf("%s (requested %s)", a.ToolName, a.CreatedAt.Local().Format(time.RFC822))
	description := fmt.Sprintf("Arguments: %s\nExpires:   %s",
		truncate(string(a.Arguments), 200),
		a.ExpiresAt.Local().Format(time.RFC822),
	)

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Description(description).
			Options(
				huh.NewOption("Approve", "approve"),
				huh.NewOption("Reject", "reject"),
				huh.NewOption("Skip", "skip"),
			).
			Value(&decision),
	))
	if err := form.Run(); err != nil {
		return "", "", err
	}

	if decision == "reject" {
		reasonForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Rejection reason (optional)").
				Value(&reason),
		))
		if err := reasonForm.Run(); err != nil {
			return "", "", err
		}
	}
	return decision, reason, nil
}

// apiClient is a minimal client for the gateway approval API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func clientFromFlags(cmd *cobra.Command) *apiClient {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	return &apiClient{
		baseURL: server,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) listPending(user string) ([]*ledger.PendingAction, error) {
	var actions []*ledger.PendingAction
	err := c.do(http.MethodGet, "/api/pending?user="+user, nil, &actions)
	return actions, err
}

func (c *apiClient) resolve(id, decision, reason string) (*ledger.PendingAction, error) {
	body := map[string]string{
		"decision": decision,
		"actor":    "cli",
		"reason":   reason,
	}
	var action ledger.PendingAction
	if err := c.do(http.MethodPost, "/api/pending/"+id+"/resolve", body, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
