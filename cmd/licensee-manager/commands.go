package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/config"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// parseAsOf parses a YYYY-MM-DD date, falling back to today when empty.
func parseAsOf(s string, today time.Time) (time.Time, error) {
	if s == "" {
		return today, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of date %q: expected YYYY-MM-DD", s)
	}
	return clock.DateOf(t), nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func newSweepCmd(opts *globalOptions) *cobra.Command {
	var asOf string
	var horizon int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire every licensee whose expiration date has passed",
		Long: `Run the expiration sweep once. Every licensee whose expiration date is
before the as-of date and who is not already expired is moved to Expired,
with an audit record. A failure on one licensee does not stop the others;
failures are listed in the report and make the command exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				date, err := parseAsOf(asOf, a.service.Today())
				if err != nil {
					return err
				}
				report, err := a.service.RunExpirationSweep(ctx, date, horizonOrDefault(horizon, opts.cfg))
				if report != nil {
					if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				if len(report.Failures) > 0 {
					return fmt.Errorf("%d licensees could not be expired", len(report.Failures))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date (YYYY-MM-DD, default today in UTC)")
	cmd.Flags().IntVar(&horizon, "horizon-days", 0, "expiring-soon window in days (default from config)")
	return cmd
}

func newEvaluateCmd(opts *globalOptions) *cobra.Command {
	var asOf string
	var horizon int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "List expired and soon-to-expire licensees without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				date, err := parseAsOf(asOf, a.service.Today())
				if err != nil {
					return err
				}
				eval, err := a.service.EvaluateExpirations(ctx, date, horizonOrDefault(horizon, opts.cfg))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), eval)
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date (YYYY-MM-DD, default today in UTC)")
	cmd.Flags().IntVar(&horizon, "horizon-days", 0, "expiring-soon window in days (default from config)")
	return cmd
}

func horizonOrDefault(flag int, cfg config.ServerConfig) int {
	if flag > 0 {
		return flag
	}
	return cfg.HorizonDays
}

func newTransitionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <licensee-id> <status>",
		Short: "Change a licensee's status",
		Long: `Change a licensee's status between active and inactive.

Expiration is applied by the sweep command only, and expired licensees
cannot be changed here.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "licensee")
			if err != nil {
				return err
			}
			status, err := models.ParseLicenseeStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				result, err := a.service.TransitionLicenseeStatus(ctx, id, status, true)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Accepted {
					return errors.New(result.Reason.Message())
				}
				return nil
			})
		},
	}
}

func newDeactivateOfficeCmd(opts *globalOptions) *cobra.Command {
	var replacement int64

	cmd := &cobra.Command{
		Use:   "deactivate-office <office-id>",
		Short: "Deactivate an office, optionally moving its licensees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "office")
			if err != nil {
				return err
			}
			var replacementID *int64
			if cmd.Flags().Changed("replacement") {
				replacementID = &replacement
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				result, err := a.service.DeactivateOffice(ctx, id, replacementID)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if result.Reason != "" {
					return fmt.Errorf("office %d not deactivated: %s", id, result.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&replacement, "replacement", 0, "active office that receives the licensees")
	return cmd
}

func newActivateOfficeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate-office <office-id>",
		Short: "Mark an office active again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "office")
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.service.ActivateOffice(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "office %d activated\n", id)
				return nil
			})
		},
	}
}

func newOfficeLicenseesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "office-licensees <office-id>",
		Short: "List the licensees assigned to an office",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "office")
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				roster, err := a.service.OfficeLicensees(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), roster)
			})
		},
	}
}

func newAuditTrailCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit-trail <licensee-id>",
		Short: "Show every status change of a licensee, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "licensee")
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				trail, err := a.service.GetAuditTrail(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), trail)
			})
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(config.FileFromConfig(redacted(opts.cfg))); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "init <path>",
			Short: "Write the effective configuration as a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.FileFromConfig(opts.cfg).Save(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", args[0])
				return nil
			},
		},
	)

	return cmd
}

func redacted(cfg config.ServerConfig) config.ServerConfig {
	if cfg.DatabaseURL != "" {
		cfg.DatabaseURL = "[REDACTED]"
	}
	if cfg.RedisURL != "" {
		cfg.RedisURL = "[REDACTED]"
	}
	return cfg
}
