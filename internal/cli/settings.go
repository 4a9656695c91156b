package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qwikask/qwikask/internal/app"
	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/settings"
)

// settingKeys maps dotted keys to setters on AppSettings.
var settingKeys = map[string]func(s *settings.AppSettings, value string) error{
	"general.auto_startup": func(s *settings.AppSettings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("auto_startup must be true or false")
		}
		s.General.AutoStartup = b
		return nil
	},
	"general.theme": func(s *settings.AppSettings, v string) error {
		s.General.Theme = settings.Theme(v)
		return nil
	},
	"shortcuts.toggle_launcher": func(s *settings.AppSettings, v string) error {
		s.Shortcuts.ToggleLauncher = v
		return nil
	},
	"llm.provider": func(s *settings.AppSettings, v string) error {
		p, err := llm.ParseProvider(v)
		if err != nil {
			return err
		}
		s.LLM.Provider = p
		return nil
	},
	"llm.api_key": func(s *settings.AppSettings, v string) error {
		s.LLM.APIKey = v
		return nil
	},
	"llm.model": func(s *settings.AppSettings, v string) error {
		s.LLM.Model = v
		return nil
	},
	"llm.base_url": func(s *settings.AppSettings, v string) error {
		s.LLM.BaseURL = v
		return nil
	},
	"llm.system_prompt": func(s *settings.AppSettings, v string) error {
		s.LLM.SystemPrompt = v
		return nil
	},
}

func settingKeyList() string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "\n  ")
}

func newSettingsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "view and change launcher settings",
	}

	var reveal bool
	show := &cobra.Command{
		Use:   "show",
		Short: "print the current settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), e, func(a *app.App) error {
				current := a.Settings.Get()
				if !reveal {
					current = current.Redacted()
				}
				return printJSON(cmd, current)
			})
		},
	}
	show.Flags().BoolVar(&reveal, "reveal", false, "print the API key unmasked")

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "change one setting",
		Long:  "Change one setting. Keys:\n  " + settingKeyList(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apply, ok := settingKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q; keys:\n  %s", args[0], settingKeyList())
			}
			return withApp(cmd.Context(), e, func(a *app.App) error {
				next := a.Settings.Get()
				if err := apply(&next, args[1]); err != nil {
					return err
				}
				if err := a.Settings.Update(next); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
				return nil
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), e, func(a *app.App) error {
				def, err := a.Settings.Reset()
				if err != nil {
					return err
				}
				return printJSON(cmd, def.Redacted())
			})
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), e.config().SettingsPath)
			return nil
		},
	}

	cmd.AddCommand(show, set, reset, path)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
