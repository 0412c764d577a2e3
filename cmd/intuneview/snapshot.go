package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/config"
	"github.com/intuneview/intuneview/internal/controller"
	"github.com/intuneview/intuneview/internal/graph"
	"github.com/intuneview/intuneview/internal/secrets"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var snapshotJSON bool

// snapshotCmd reads the tenant with application permissions, so it needs a client
// secret but no browser sign-in.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print how many records each Intune collection holds.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		secret, err := snapshotClientSecret(cmd, cfg)
		if err != nil {
			return err
		}

		creds, err := auth.NewClientCredentials(auth.ClientCredentialsOptions{
			TenantID:         cfg.TenantID,
			ClientID:         cfg.ClientID,
			ClientSecret:     secret,
			AuthorityBaseURL: cfg.AuthorityBaseURL,
		})
		if err != nil {
			return err
		}
		client, err := graph.New(graph.Options{
			BaseURL:    cfg.GraphBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.GraphTimeout},
		})
		if err != nil {
			return err
		}

		inventory := controller.NewInventory(creds, client)
		switch st := inventory.Load(cmd.Context(), creds.State()).(type) {
		case controller.Loaded[[]controller.ResourceCount]:
			return renderSnapshot(cmd.OutOrStdout(), st.Value, snapshotJSON)
		case controller.Failed:
			return fetchFailed(st.Message)
		default:
			return fmt.Errorf("inventory ended in state %s", st.Name())
		}
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print JSON instead of a table")
}

func snapshotClientSecret(cmd *cobra.Command, cfg config.Config) (string, error) {
	if cfg.ClientSecret != "" {
		return secrets.NewResolver(vaultOptions(cfg.Vault)).Resolve(cmd.Context(), cfg.ClientSecret)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("ENTRA_CLIENT_SECRET is required")
	}

	cmd.Print("Client secret: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(secret)) == "" {
		return "", errors.New("client secret is empty")
	}
	return strings.TrimSpace(string(secret)), nil
}

type snapshotEntry struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
}

var (
	snapshotTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	snapshotBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

func renderSnapshot(w io.Writer, counts []controller.ResourceCount, asJSON bool) error {
	if asJSON {
		entries := make([]snapshotEntry, 0, len(counts))
		for _, c := range counts {
			entries = append(entries, snapshotEntry{Resource: string(c.Resource), Label: c.Resource.Label(), Count: c.Count})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(snapshotBorderStyle).
		Headers("COLLECTION", "RECORDS")
	for _, c := range counts {
		t.Row(c.Resource.Label(), strconv.Itoa(c.Count))
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", snapshotTitleStyle.Render("Intune inventory"), t.String())
	return err
}
