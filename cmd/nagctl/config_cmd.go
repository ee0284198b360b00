package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/nagctl/internal/config"
	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/policy"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, validate, or save the worker configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved configuration (defaults if none saved)",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE:  runConfigPath,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Validate a JSON document and save it as the configuration",
	Long: `Reads a configuration document from --file ("-" for stdin), validates it,
and replaces the saved configuration. Nothing is written if any field is invalid.`,
	RunE: runConfigSave,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a JSON document without saving it",
	RunE:  runConfigValidate,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or create the nagctl settings file",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as TOML",
	RunE:  runSettingsShow,
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	RunE:  runSettingsInit,
}

var (
	configFile string
	configJSON bool
	forceInit  bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configJSON, "json", false, "Print the raw JSON document")
	configSaveCmd.Flags().StringVarP(&configFile, "file", "f", "", "Configuration JSON file (- for stdin)")
	configValidateCmd.Flags().StringVarP(&configFile, "file", "f", "", "Configuration JSON file (- for stdin)")
	_ = configSaveCmd.MarkFlagRequired("file")
	_ = configValidateCmd.MarkFlagRequired("file")
	settingsInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing settings file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configValidateCmd)

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.run(cmd.Context(), domain.CommandLoadConfig, nil)
	if err != nil {
		printViolations(cmd.ErrOrStderr(), resp)
		return err
	}
	cfg := resp.Data.(*domain.Configuration)

	out := cmd.OutOrStdout()
	if configJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	fmt.Fprintln(out, renderConfiguration(cfg))
	fmt.Fprintf(out, "Stored at %s\n", a.store.Path())
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Fprintln(cmd.OutOrStdout(), a.store.Path())
	return nil
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	raw, err := readDocument(cmd.InOrStdin(), configFile)
	if err != nil {
		return err
	}

	resp, err := a.run(cmd.Context(), domain.CommandSaveConfig, raw)
	if err != nil {
		printViolations(cmd.ErrOrStderr(), resp)
		return err
	}
	saved := resp.Data.(domain.SavedConfig)
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", saved.Path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	raw, err := readDocument(cmd.InOrStdin(), configFile)
	if err != nil {
		return err
	}

	cfg, violations := policy.Validate(raw)
	if len(violations) > 0 {
		printViolations(cmd.ErrOrStderr(), domain.CommandResponse{
			Error: &domain.ResponseError{Kind: domain.KindValidation, Details: violations},
		})
		return fmt.Errorf("%d invalid field(s)", len(violations))
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderConfiguration(cfg))
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
	return nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.settings.Encode()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runSettingsInit(cmd *cobra.Command, args []string) error {
	path := settingsPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("settings file already exists at %s (use --force to overwrite)", path)
	}
	if err := config.WriteSample(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)
	return nil
}

func readDocument(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration document: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("configuration document is not valid JSON")
	}
	return data, nil
}

func renderConfiguration(cfg *domain.Configuration) string {
	interval := "-"
	if cfg.ScreenshotIntervalMinutes != nil {
		interval = strconv.Itoa(*cfg.ScreenshotIntervalMinutes) + " min"
	}
	rows := [][]string{
		{"Quiet hours", cfg.QuietStart + " - " + cfg.QuietEnd},
		{"Blocked processes", strings.Join(cfg.BlockedProcesses, "\n")},
		{"Messages", strings.Join(cfg.Messages, "\n")},
		{"Screenshot interval", interval},
		{"Deterrent", strconv.FormatBool(cfg.DeterrentEnabled)},
	}
	return renderTable([]string{"Setting", "Value"}, rows)
}

// printViolations renders field errors when the failure carries them.
func printViolations(w io.Writer, resp domain.CommandResponse) {
	if resp.Error == nil {
		return
	}
	violations, ok := resp.Error.Details.(domain.ValidationErrors)
	if !ok || len(violations) == 0 {
		return
	}
	rows := make([][]string, 0, len(violations))
	for _, v := range violations {
		field := v.FieldPath
		if field == "" {
			field = "(document)"
		}
		rows = append(rows, []string{field, v.Message})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Problem"}, rows))
}
