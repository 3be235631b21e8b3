package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"symptobuddy/internal/prediction"
	"symptobuddy/pkg/domain"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "symptobuddy",
		Short:         "Record symptom checks and review test history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (default $SYMPTOBUDDY_CONFIG)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file; ignored when missing")
	pf.StringVar(&flags.driver, "driver", "", "storage driver: memory, badger, sqlite, postgres or blob")
	pf.StringVar(&flags.metrics, "metrics", "", "store metrics written to stderr on exit: none, expvar or prometheus")

	root.AddCommand(
		newProfileCmd(flags),
		newTestsCmd(flags),
		newCheckCmd(flags),
		newSchemaCmd(flags),
		newSymptomsCmd(),
	)
	return root
}

func newProfileCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "profile", Short: "Show or edit the device profile"}

	var fields domain.ProfileFields
	var gender string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create or replace the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields.Gender = domain.Gender(gender)
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				pending, err := a.ctrl.SetProfile(ctx, fields)
				if err != nil {
					return err
				}
				if err := pending.Wait(ctx); err != nil {
					return err
				}
				return printProfile(cmd.OutOrStdout(), a.ctrl.State().Snapshot().Profile)
			})
		},
	}
	set.Flags().StringVar(&fields.FirstName, "first", "", "first name")
	set.Flags().StringVar(&fields.LastName, "last", "", "last name")
	set.Flags().StringVar(&fields.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	set.Flags().StringVar(&gender, "gender", "", "Male or Female")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, a *app) error {
				profile := a.ctrl.State().Snapshot().Profile
				if !profile.Exists() {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "no profile")
					return err
				}
				return printProfile(cmd.OutOrStdout(), profile)
			})
		},
	}
	cmd.AddCommand(set, show)
	return cmd
}

func printProfile(w io.Writer, p domain.UserProfile) error {
	_, err := fmt.Fprintf(w, "%s\nborn %s (age %d)\ngender %s\n", p.DisplayName(), p.DateOfBirth, p.Age(time.Now()), p.Gender)
	return err
}

func newTestsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "tests", Short: "Manage the test history"}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List tests recorded for the current profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, a *app) error {
				tests := a.ctrl.State().Snapshot().UserTests()
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(tests)
				}
				return printTests(cmd.OutOrStdout(), tests)
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var draft domain.TestDraft
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a test without a prediction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				rec, pending, err := a.ctrl.RecordTest(ctx, draft)
				if err != nil {
					return err
				}
				if err := pending.Wait(ctx); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				return err
			})
		},
	}
	record.Flags().StringVar(&draft.Name, "name", "", "test name")
	record.Flags().StringSliceVar(&draft.Symptoms, "symptom", nil, "symptom label (repeatable)")

	var info domain.DiseaseInfo
	attach := &cobra.Command{
		Use:   "attach <id> <prediction>",
		Short: "Attach a prediction to a recorded test",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				pred := domain.Prediction{Label: args[1], DiseaseInfo: &info}
				_, pending, err := a.ctrl.AttachPrediction(ctx, args[0], pred)
				if err != nil {
					return err
				}
				return pending.Wait(ctx)
			})
		},
	}
	attach.Flags().StringVar(&info.Overview, "overview", "", "disease overview")
	attach.Flags().StringVar(&info.Causes, "causes", "", "causes")
	attach.Flags().StringVar(&info.Symptoms, "symptoms", "", "typical symptoms")
	attach.Flags().StringVar(&info.NextSteps, "next-steps", "", "recommended next steps")

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a test",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return a.ctrl.RemoveTest(ctx, args[0]).Wait(ctx)
			})
		},
	}
	cmd.AddCommand(list, record, attach, del)
	return cmd
}

func printTests(w io.Writer, tests []domain.TestRecord) error {
	if len(tests) == 0 {
		_, err := fmt.Fprintln(w, "no tests")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tDATE\tTIME\tSYMPTOMS\tPREDICTION")
	for _, t := range tests {
		prediction := t.Prediction
		if prediction == "" {
			prediction = "N/A"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Date, t.Time, strings.Join(t.Symptoms, ", "), prediction)
	}
	return tw.Flush()
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	var draft domain.TestDraft
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a symptom check against the prediction service and record it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				client, err := prediction.NewClient(a.cfg.Prediction.BaseURL, a.cfg.Prediction.Timeout, prediction.WithLogger(a.logger))
				if err != nil {
					return err
				}
				rec, pending, err := a.ctrl.RunCheck(ctx, client, draft)
				if err != nil {
					return err
				}
				if err := pending.Wait(ctx); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "test name")
	cmd.Flags().StringSliceVar(&draft.Symptoms, "symptom", nil, "symptom label (repeatable)")
	return cmd
}

func printResult(w io.Writer, rec domain.TestRecord) error {
	if _, err := fmt.Fprintf(w, "%s: %s\n", rec.ID, rec.Prediction); err != nil {
		return err
	}
	if rec.DiseaseInfo == nil {
		return nil
	}
	sections := []struct{ title, body string }{
		{"Overview", rec.DiseaseInfo.Overview},
		{"Causes", rec.DiseaseInfo.Causes},
		{"Symptoms", rec.DiseaseInfo.Symptoms},
		{"Next steps", rec.DiseaseInfo.NextSteps},
	}
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", s.title, s.body); err != nil {
			return err
		}
	}
	return nil
}

func newSchemaCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the store driver and schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				v, err := a.ctrl.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "driver %s schema %d (supported %d)\n", a.cfg.Storage.Driver, v, domain.SchemaVersion)
				return err
			})
		},
	}
}

func newSymptomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symptoms",
		Short: "List the symptom catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range domain.KnownSymptoms {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), s); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
