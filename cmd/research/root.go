// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-skills/internal/credentials"
	"github.com/pdiddy/research-skills/internal/history"
	"github.com/pdiddy/research-skills/internal/job"
	"github.com/pdiddy/research-skills/internal/logging"
	"github.com/pdiddy/research-skills/internal/report"
	"github.com/pdiddy/research-skills/pkg/types"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// flagKeys maps configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"api_url":       "api-url",
	"poll_interval": "poll-interval",
	"timeout":       "timeout",
	"max_retries":   "max-retries",
	"history_db":    "history-db",
	"model":         "model",
	"citation":      "citation",
	"stream":        "stream",
	"quiet":         "quiet",
	"log_level":     "log-level",
	"env_file":      "env-file",
	"secrets_dir":   "secrets-dir",
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "research <topic>",
		Short: "Run a web research job and write a cited JSON report",
		Long: `research submits a topic to the hosted research API and follows the job
until it finishes, either by streaming progress events (--stream) or by
polling the job status. The result is one JSON document with meta,
content, and sources, written to --output or stdout.

With --schema the service is asked for structured output. The schema is
validated before anything is sent; content that does not match is kept
as raw text with a SchemaMismatch warning.

Exit codes: 0 completed, 1 failed or invalid input, 2 timed out,
130 interrupted. The remote job keeps running after a timeout or
interrupt; its job id is in the report and in "research jobs".

A topic whose first word is a subcommand name needs "--" before it:
research -- version control best practices`,
		Args:              cobra.MinimumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
		RunE:              a.runResearch,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./research.yaml or ~/.config/research/research.yaml)")
	pf.String("api-url", types.DefaultBaseURL, "research API base URL")
	pf.String("history-db", history.DefaultPath, "job history database (empty disables history)")
	pf.String("env-file", ".env", "dotenv file loaded before reading credentials")
	pf.String("secrets-dir", credentials.DefaultSecretsDir, "directory holding the tavily-api-key file")
	pf.Bool("quiet", false, "suppress progress output")
	pf.String("log-level", "info", "progress log level: debug, info, warn, error")

	f := root.Flags()
	f.String("schema", "", "output schema as a file path (JSON or YAML) or inline JSON")
	f.Bool("stream", false, "stream progress events instead of polling")
	f.String("model", string(types.ModelMini), "model tier: mini, pro, auto")
	f.String("citation", string(types.CitationNumbered), "citation format: numbered, mla, apa, chicago")
	f.StringP("output", "o", "", "report path (default: stdout)")
	f.Float64("poll-interval", types.DefaultPollInterval.Seconds(), "seconds between status polls")
	f.Duration("timeout", types.DefaultTimeout, "wall-clock limit for the whole job")
	f.Int("max-retries", types.DefaultMaxRetries, "retries of a failed status poll")

	root.AddCommand(newJobsCmd(a), newVersionCmd())
	return root
}

// noTopicArgs rejects arguments on a subcommand. Extra words usually mean
// the subcommand name was the start of a topic.
func noTopicArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return types.Errorf(types.KindInvalidArgument,
		"%s takes no arguments; to research this topic run: research -- %s %s",
		cmd.Name(), cmd.Name(), strings.Join(args, " "))
}

// initConfig layers flags over RESEARCH_* environment variables over the
// config file, then builds the logger and loads the dotenv file.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	v := a.v
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("research")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "research"))
		}
	}

	v.SetEnvPrefix("RESEARCH")
	v.AutomaticEnv()

	for key, name := range flagKeys {
		if fl := cmd.Flags().Lookup(name); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	configErr := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if configErr != nil && !errors.As(configErr, &notFound) {
		return types.Errorf(types.KindInvalidArgument, "reading config: %w", configErr)
	}

	a.logger = logging.New(a.stderr, v.GetString("log_level"), v.GetBool("quiet"))
	if used := v.ConfigFileUsed(); used != "" && configErr == nil {
		a.logger.Info("using config file", zap.String("path", used))
	}
	credentials.LoadEnv(v.GetString("env_file"), a.logger)
	return nil
}

// researchConfig returns the resolved job settings. The API key is
// resolved separately.
func (a *app) researchConfig() types.ResearchConfig {
	v := a.v
	return types.ResearchConfig{
		HTTPConfig: types.HTTPConfig{
			BaseURL:   v.GetString("api_url"),
			Timeout:   v.GetDuration("request_timeout"),
			UserAgent: "research-skills/" + version,
		},
		PollInterval: time.Duration(v.GetFloat64("poll_interval") * float64(time.Second)),
		Timeout:      v.GetDuration("timeout"),
		MaxRetries:   v.GetInt("max_retries"),
		HistoryDB:    v.GetString("history_db"),
	}
}

func (a *app) runResearch(cmd *cobra.Command, args []string) error {
	cfg := a.researchConfig()
	key, err := credentials.APIKey(a.v.GetString("secrets_dir"), a.logger)
	if err != nil {
		return err
	}
	cfg.APIKey = key

	var store *history.Store
	if cfg.HistoryDB != "" {
		store, err = history.Open(cfg.HistoryDB)
		if err != nil {
			a.logger.Warn("job history disabled", zap.Error(err))
		} else {
			defer store.Close()
		}
	}

	schemaArg, _ := cmd.Flags().GetString("schema")
	output, _ := cmd.Flags().GetString("output")

	r := &job.Runner{
		Config:  cfg,
		Logger:  a.logger,
		Stdout:  a.stdout,
		History: store,
	}
	out, err := r.Run(cmd.Context(), job.Options{
		Topic:          strings.Join(args, " "),
		Model:          a.v.GetString("model"),
		CitationFormat: a.v.GetString("citation"),
		SchemaArg:      schemaArg,
		Stream:         a.v.GetBool("stream"),
		Output:         output,
	})
	if out != nil && out.Path != "" && out.Path != report.Stdout {
		fmt.Fprintln(a.stdout, out.Path)
	}
	return err
}
