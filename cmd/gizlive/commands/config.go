package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/gizlive/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage gizlive contexts.

Configuration is stored in ~/.giztoy/gizlive/config.yaml. Each context names a
transport (gemini or openai), its API key and optional model settings.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add a context with API credentials.

Examples:
  gizlive config add-context gemini --transport gemini --api-key AIza...
  gizlive config add-context openai --transport openai --api-key sk-... --voice verse`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		ctx := &cli.Context{}
		ctx.Transport, _ = flags.GetString("transport")
		ctx.APIKey, _ = flags.GetString("api-key")
		ctx.BaseURL, _ = flags.GetString("base-url")
		ctx.Model, _ = flags.GetString("model")
		ctx.Voice, _ = flags.GetString("voice")
		ctx.Instructions, _ = flags.GetString("instructions")
		if ctx.APIKey == "" {
			return fmt.Errorf("api-key is required")
		}
		if _, err := transportKind(ctx.Transport); err != nil {
			return err
		}
		if err := cfg.AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Context '%s' added", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Switched to context '%s'", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		names := cfg.ContextNames()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Fprintf(out, "%s%s\t%s\n", marker, name, cfg.Contexts[name].Transport)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the configuration with keys masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		view := cli.Config{
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, c := range cfg.Contexts {
			view.Contexts[name] = c.Masked()
		}
		return cli.Output(cmd.OutOrStdout(), &view, outputFormat())
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.StringP("transport", "t", "gemini", "live service: gemini or openai")
	f.StringP("api-key", "k", "", "API key (required)")
	f.StringP("base-url", "u", "", "service endpoint override")
	f.String("model", "", "model name")
	f.String("voice", "", "voice name")
	f.String("instructions", "", "system instructions")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configViewCmd)
}
