package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-livevoice/internal/app"
	"github.com/teslashibe/go-livevoice/internal/log"
	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	modelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audioio.ListDevices()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, headingStyle.Render("Audio devices"))
		for _, d := range devices {
			marks := ""
			if d.DefaultInput {
				marks += " [default input]"
			}
			if d.DefaultOutput {
				marks += " [default output]"
			}
			fmt.Fprintf(w, "  %s%s\n", d.Name, marks)
			fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("    %s, in %d, out %d, %.0f Hz",
				d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print stored conversation turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := app.OpenStore(cmd.Context(), cfg.Store, log.L())
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		session := ""
		for _, e := range entries {
			if e.SessionID != session {
				session = e.SessionID
				fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Session %s  %s", session, e.CreatedAt.Local().Format(time.DateTime))))
			}
			style := modelStyle
			if e.Role == transcript.RoleUser {
				style = userStyle
			}
			fmt.Fprintf(w, "  %s %s\n", style.Render(string(e.Role)+":"), e.Text)
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, faintStyle.Render("No stored turns."))
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Fetch a live credential and print its kind",
	Long: `Resolve a credential the way a session would and print which source
answered. The credential itself is never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		authn, err := app.NewAuthenticator(ctx, cfg.Auth, log.L())
		if err != nil {
			return err
		}
		c, err := authn.Credential(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ credential: %s\n", c.Kind())
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Number of most recent turns to print (0 for all)")
}
