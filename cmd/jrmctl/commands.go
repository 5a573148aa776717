package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"jrm/internal/config"
	"jrm/internal/constants"
	"jrm/internal/logger"
	"jrm/pkg/health"
	"jrm/pkg/logging"
	"jrm/pkg/manager"
	"jrm/pkg/rules"
)

type rootOptions struct {
	configFile string
	url        string
	token      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           constants.ServiceName,
		Short:         "Client for the JWT revocation manager",
		Long:          "jrmctl reads and edits the revocation rules held by a JWT revocation manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config file (or CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "", "Manager base URL (overrides manager.url)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token (overrides auth.token)")

	rootCmd.AddCommand(
		ruleSetCmd(opts),
		rulesCmd(opts),
		watchCmd(opts),
		healthCmd(opts),
	)
	return rootCmd
}

// run loads configuration, starts the App and hands it to fn. Bootstrap
// failures are reported through EarlyLog since no logger exists yet.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	earlyLog := logging.NewEarlyLogTo(cmd.ErrOrStderr(), cmd.ErrOrStderr())

	configFile := o.configFile
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile, o.override)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return err
	}
	defer log.Sync()

	ctx := logging.WithServiceName(cmd.Context(), constants.ServiceName)
	app := NewApp(cfg, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.WarnwCtx(ctx, "Shutdown finished with errors", "error", err)
		}
	}()

	if err := app.Initialize(ctx); err != nil {
		earlyLog.Error("Failed to initialize: %v", err)
		return err
	}

	if err := fn(ctx, app); err != nil {
		log.DebugwCtx(ctx, "Command failed", "command", cmd.CommandPath(), "error", err)
		return err
	}
	return nil
}

func (o *rootOptions) override(cfg *config.Config) {
	if o.url != "" {
		cfg.Manager.URL = o.url
	}
	if o.token != "" {
		cfg.Auth.Token = o.token
	}
}

func ruleSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ruleset",
		Short: "Print the current rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				set, err := app.Client().GetRuleSet(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), set)
			})
		},
	}
}

func rulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List, read, create and delete rules",
	}
	cmd.AddCommand(
		rulesListCmd(opts),
		rulesGetCmd(opts),
		rulesCreateCmd(opts),
		rulesDeleteCmd(opts),
	)
	return cmd
}

func rulesListCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		cursor string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of rules, or every rule with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && cursor != "" {
				return fmt.Errorf("--cursor cannot be combined with --all")
			}
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				if all {
					list, err := app.Client().CollectRules(ctx, limit)
					if err != nil {
						return err
					}
					if list == nil {
						list = []rules.Rule{}
					}
					return printJSON(cmd.OutOrStdout(), list)
				}

				page, err := app.Client().ListRules(ctx, manager.ListParams{Limit: limit, Cursor: cursor})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rules per page (0 lets the manager decide)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by a previous page")
	cmd.Flags().BoolVar(&all, "all", false, "Follow cursors until the last page")
	return cmd
}

func rulesGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				rule, ok, err := app.Client().GetRule(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("rule %s not found", args[0])
				}
				return printJSON(cmd.OutOrStdout(), rule)
			})
		},
	}
}

type createFlags struct {
	file      string
	expires   int64
	issuers   []string
	audiences []string
	subjects  []string
	jwtIDs    []string
	expAfter  int64
	iatAfter  int64
}

func rulesCreateCmd(opts *rootOptions) *cobra.Command {
	f := &createFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rule and print it with its assigned id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := f.rule(cmd)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				created, err := app.Client().CreateRule(ctx, rule)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}

	cmd.Flags().StringVar(&f.file, "file", "", "Read the rule as JSON from a file (- for stdin)")
	cmd.Flags().Int64Var(&f.expires, "expires", 0, "Epoch seconds after which the rule may be purged")
	cmd.Flags().StringArrayVar(&f.issuers, "iss", nil, "Revoke tokens with this issuer (repeatable)")
	cmd.Flags().StringArrayVar(&f.audiences, "aud", nil, "Revoke tokens with this audience (repeatable)")
	cmd.Flags().StringArrayVar(&f.subjects, "sub", nil, "Revoke tokens with this subject (repeatable)")
	cmd.Flags().StringArrayVar(&f.jwtIDs, "jti", nil, "Revoke tokens with this JWT id (repeatable)")
	cmd.Flags().Int64Var(&f.expAfter, "exp-after", 0, "Revoke tokens expiring after this epoch second")
	cmd.Flags().Int64Var(&f.iatAfter, "iat-after", 0, "Revoke tokens issued after this epoch second")
	return cmd
}

// rule builds the rule from --file when given, then layers the condition
// flags on top. --expires replaces the file's value only when set.
func (f *createFlags) rule(cmd *cobra.Command) (rules.Rule, error) {
	b := rules.NewRuleBuilder(f.expires)
	var extra map[string]json.RawMessage

	if f.file != "" {
		base, err := readRuleFile(cmd, f.file)
		if err != nil {
			return rules.Rule{}, err
		}
		if !cmd.Flags().Changed("expires") {
			b = rules.NewRuleBuilder(base.Expires)
		}
		for _, name := range base.ConditionNames() {
			b.Claim(name, base.Conditions[name]...)
		}
		extra = base.Extra
	} else if !cmd.Flags().Changed("expires") {
		return rules.Rule{}, fmt.Errorf("--expires is required without --file")
	}

	b.Issuer(f.issuers...).
		Audience(f.audiences...).
		Subject(f.subjects...).
		JWTID(f.jwtIDs...)
	if f.expAfter != 0 {
		b.ExpiresAfter(f.expAfter)
	}
	if f.iatAfter != 0 {
		b.IssuedAfter(f.iatAfter)
	}
	rule := b.Build()
	rule.Extra = extra
	return rule, nil
}

func readRuleFile(cmd *cobra.Command, path string) (rules.Rule, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return rules.Rule{}, fmt.Errorf("failed to read rule: %w", err)
	}

	var rule rules.Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return rules.Rule{}, fmt.Errorf("failed to parse rule: %w", err)
	}
	if rule.HasID() {
		return rules.Rule{}, fmt.Errorf("rule file must not carry an id, the manager assigns it")
	}
	return rule, nil
}

func rulesDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule and print what was removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				rule, ok, err := app.Client().DeleteRule(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "rule %s was not present\n", args[0])
					return nil
				}
				return printJSON(cmd.OutOrStdout(), rule)
			})
		},
	}
}

func watchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the rule set and report changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				w := app.NewWatcher()
				w.OnChange(func(prev, next rules.RuleSet) {
					added, removed := diffIDs(prev, next)
					app.Logger.InfowCtx(ctx, "Rule set changed",
						"timestamp", next.Timestamp,
						"rules", len(next.Rules),
						"added", added,
						"removed", removed,
					)
					fmt.Fprintf(cmd.OutOrStdout(), "%d rules at %d (+%d -%d)\n",
						len(next.Rules), next.Timestamp, len(added), len(removed))
				})

				err := w.Start(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func healthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the manager and the configured cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				h := app.Health(ctx)
				if err := printJSON(cmd.OutOrStdout(), h); err != nil {
					return err
				}
				if h.Status == health.StatusUnhealthy {
					return fmt.Errorf("manager is %s", h.Status)
				}
				return nil
			})
		},
	}
}

func diffIDs(prev, next rules.RuleSet) (added, removed []string) {
	before := make(map[string]struct{}, len(prev.Rules))
	for _, r := range prev.Rules {
		before[r.ID] = struct{}{}
	}
	after := make(map[string]struct{}, len(next.Rules))
	for _, r := range next.Rules {
		after[r.ID] = struct{}{}
		if _, ok := before[r.ID]; !ok {
			added = append(added, r.ID)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return added, removed
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
