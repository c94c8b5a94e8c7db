package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polydoc/polydoc/internal"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polydoc [file]",
		Short: "Document translation pipeline",
		Long: `polydoc translates text documents into multiple languages at once.

It splits a document into sentence-aligned chunks, translates each chunk
through a configurable LLM provider, and assembles per-language output
files. Interrupted runs resume where they left off.

Examples:
  polydoc report.txt --target es,fr,de      # Translate into three languages
  polydoc --project <id> --status           # Show progress of a project
  polydoc --project <id> --pause            # Pause a running project
  polydoc --project <id> --reset            # Discard all translations
  polydoc --list                            # List all projects`,
		Args:    cobra.MaximumNArgs(1),
		Version: internal.Version,
	}

	setupFlags(rootCmd, flags)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	home, _ := os.UserHomeDir()
	defaultDB := filepath.Join(home, ".local", "state", "polydoc", "polydoc.db")
	defaultOutput := filepath.Join(home, ".local", "state", "polydoc", "exports")

	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.polydoc.yaml)")

	// Local flags
	cmd.Flags().StringVar(&flags.DBPath, "db", defaultDB, "Path to the project database")
	cmd.Flags().StringVarP(&flags.OutputDir, "output", "o", defaultOutput, "Export output directory")
	cmd.Flags().StringVarP(&flags.ProjectName, "name", "n", "", "Project name (default: input file name)")
	cmd.Flags().BoolVar(&flags.ListModels, "list-models", false, "List models available for the configured API key")
	cmd.Flags().BoolVar(&flags.Archive, "archive", false, "Zip the export directory into a timestamped archive")

	// Project lifecycle flags
	cmd.Flags().StringVar(&flags.ProjectID, "project", "", "Operate on an existing project by id")
	cmd.Flags().BoolVar(&flags.ListProjects, "list", false, "List all projects")
	cmd.Flags().BoolVar(&flags.ShowStatus, "status", false, "Show status of the project given with --project")
	cmd.Flags().BoolVar(&flags.PauseProject, "pause", false, "Pause the project given with --project")
	cmd.Flags().BoolVar(&flags.ResetProject, "reset", false, "Discard all translations of the project given with --project")
	cmd.Flags().BoolVar(&flags.DeleteProject, "delete", false, "Delete the project given with --project")

	// Translation flags
	cmd.Flags().StringVarP(&flags.SourceLang, "source", "s", flags.SourceLang, "Source language code, or auto to detect")
	cmd.Flags().StringSliceVarP(&flags.TargetLangs, "target", "t", nil, "Target language codes (comma separated)")
	cmd.Flags().IntVar(&flags.ChunkSize, "chunk-size", flags.ChunkSize, "Maximum chunk size in characters")
	cmd.Flags().IntVar(&flags.MaxRetries, "max-retries", flags.MaxRetries, "Retry budget per chunk before it is abandoned")
	cmd.Flags().StringVar(&flags.Style, "style", flags.Style, "Translation style: formal, casual, literary, technical")
	cmd.Flags().BoolVar(&flags.PreserveFormatting, "preserve-formatting", flags.PreserveFormatting, "Ask the provider to preserve document formatting")
	cmd.Flags().BoolVar(&flags.ContextAware, "context-aware", false, "Reserved: feed neighboring chunks as context")
	cmd.Flags().BoolVar(&flags.AssessQuality, "assess-quality", false, "Score translation quality after the run")

	// Provider flags
	cmd.Flags().StringVar(&flags.Provider, "provider", flags.Provider, "Provider: openai, gemini, deepseek, openrouter")
	cmd.Flags().StringVar(&flags.Model, "model", "", "Model name (default depends on provider)")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Override the provider API base URL")
	cmd.Flags().IntVar(&flags.RequestsPerMinute, "rpm", flags.RequestsPerMinute, "Self-imposed request budget per minute (0 disables)")

	// Export flags
	cmd.Flags().StringVar(&flags.ExportFormat, "export-format", flags.ExportFormat, "Export format: txt or html")
	cmd.Flags().BoolVar(&flags.SkipExport, "skip-export", false, "Skip writing export files after translation")

	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("provider.name", cmd.Flags().Lookup("provider"))
	viper.BindPFlag("provider.model", cmd.Flags().Lookup("model"))
	viper.BindPFlag("provider.base_url", cmd.Flags().Lookup("base-url"))
	viper.BindPFlag("provider.requests_per_minute", cmd.Flags().Lookup("rpm"))
	viper.BindPFlag("translation.source", cmd.Flags().Lookup("source"))
	viper.BindPFlag("translation.chunk_size", cmd.Flags().Lookup("chunk-size"))
	viper.BindPFlag("translation.max_retries", cmd.Flags().Lookup("max-retries"))
	viper.BindPFlag("translation.style", cmd.Flags().Lookup("style"))
	viper.BindPFlag("translation.preserve_formatting", cmd.Flags().Lookup("preserve-formatting"))
	viper.BindPFlag("output.directory", cmd.Flags().Lookup("output"))
	viper.BindPFlag("output.format", cmd.Flags().Lookup("export-format"))
	viper.BindPFlag("output.database", cmd.Flags().Lookup("db"))
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".polydoc" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".polydoc")
	}

	// Environment variables
	viper.SetEnvPrefix("POLYDOC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetAPIKey retrieves the provider API key from environment or config.
// Provider-specific environment variables win over the generic one.
func GetAPIKey(provider string) string {
	envByProvider := map[string]string{
		"openai":     "OPENAI_API_KEY",
		"gemini":     "GEMINI_API_KEY",
		"deepseek":   "DEEPSEEK_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	if env, ok := envByProvider[provider]; ok {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	if key := os.Getenv("POLYDOC_PROVIDER_API_KEY"); key != "" {
		return key
	}

	return viper.GetString("provider.api_key")
}
