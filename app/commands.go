package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"tbmirror/config"
	"tbmirror/internal/derive"
	"tbmirror/internal/export"
	"tbmirror/internal/health"
	"tbmirror/internal/resolver"
	"tbmirror/internal/restore"
	"tbmirror/internal/tarball"
	"tbmirror/internal/treestore"
	"tbmirror/internal/workpool"
)

// Execute запускает CLI и возвращает код выхода.
func Execute(args []string) int {
	a := New()
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := a.NewRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errPartial) {
		fmt.Fprintln(root.ErrOrStderr(), "error:", describe(err))
	}
	return ExitCode(err)
}

func (a *App) NewRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "tbmirror",
		Short:         "Back up and restore IoT platform configuration through its REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return a.Initialize(cfg)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CONFIG_FILE or tbmirror.yaml)")

	root.AddCommand(
		a.backupCmd(),
		a.restoreCmd(),
		a.cloneCmd(),
		a.labelCmd(),
		a.convertCmd(),
		a.statusCmd(),
		a.historyCmd(),
	)
	return root
}

/* ───── backup ───── */

func (a *App) backupCmd() *cobra.Command {
	var out, archive string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export the platform configuration into a directory tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if out == "" {
				out = a.cfg.Backup.Dir
			}
			dir, err := filepath.Abs(out)
			if err != nil {
				return err
			}
			api, err := a.session(ctx)
			if err != nil {
				return err
			}

			started := time.Now()
			ex := export.New(api, treestore.New(a.fs, dir), export.Options{
				PageSize:    a.cfg.Sync.PageSize,
				Concurrency: a.cfg.Sync.Concurrency,
			})
			rep, err := ex.Run(ctx)
			if rep != nil {
				a.record(ctx, "backup", dir, started, rep)
			}
			if err != nil {
				return err
			}

			if archive != "" {
				data, sum, err := tarball.Pack(a.fs, dir)
				if err != nil {
					return fmt.Errorf("pack %s: %w", dir, err)
				}
				if err := afero.WriteFile(a.fs, archive, data, 0o644); err != nil {
					return fmt.Errorf("write archive: %w", err)
				}
				a.log.WithField("sha256", sum).Infof("archive written to %s", archive)
			}
			return a.finish(cmd.OutOrStdout(), "backup", rep)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output directory (default: backup.dir)")
	cmd.Flags().StringVar(&archive, "archive", "", "also pack the tree into this tar.gz file")
	return cmd
}

/* ───── restore ───── */

func (a *App) restoreCmd() *cobra.Command {
	var in string
	selected := map[restore.Category]*bool{}
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Re-create entities from a tenant directory of a backup",
		Long: "Restore reads a tenant directory (<backup>/tenants/<name>) and re-creates the selected\n" +
			"categories on the target platform. Without category flags dashboards, rule chains,\n" +
			"widgets and devices are restored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dir, err := filepath.Abs(in)
			if err != nil {
				return err
			}
			if ok, err := afero.DirExists(a.fs, dir); err != nil || !ok {
				return fmt.Errorf("input directory %s does not exist", dir)
			}
			if err := checkTenantDir(a.fs, dir); err != nil {
				return err
			}
			var cats []restore.Category
			for c, on := range selected {
				if *on {
					cats = append(cats, c)
				}
			}
			api, err := a.session(ctx)
			if err != nil {
				return err
			}

			started := time.Now()
			im := restore.New(api, treestore.New(a.fs, dir), resolver.New(api, a.cfg.Resolver.PageSize), restore.Options{
				Concurrency:   a.cfg.Sync.Concurrency,
				DuplicateCode: a.cfg.Sync.DuplicateErrorCode,
			})
			rep := im.Run(ctx, cats)
			a.record(ctx, "restore", dir, started, rep)
			return a.finish(cmd.OutOrStdout(), "restore", rep)
		},
	}
	cmd.Flags().StringVarP(&in, "input", "i", "", "tenant directory to restore from")
	_ = cmd.MarkFlagRequired("input")
	for _, c := range []restore.Category{restore.Dashboards, restore.RuleChains, restore.Widgets, restore.Devices, restore.Customers} {
		selected[c] = cmd.Flags().Bool(strings.ToLower(string(c)), false, "restore "+string(c))
	}
	return cmd
}

// checkTenantDir отличает каталог арендатора от корня бэкапа и от пустого каталога.
func checkTenantDir(fs afero.Fs, dir string) error {
	if ok, _ := afero.DirExists(fs, filepath.Join(dir, treestore.DirTenants)); ok {
		return fmt.Errorf("%s is a backup root, pass a tenant directory: -i %s", dir, filepath.Join(dir, treestore.DirTenants, "<tenant>"))
	}
	for _, c := range treestore.Categories {
		if ok, _ := afero.DirExists(fs, filepath.Join(dir, c)); ok {
			return nil
		}
	}
	return fmt.Errorf("%s has none of %s, expected a tenant directory of a backup", dir, strings.Join(treestore.Categories, ", "))
}

/* ───── clone / label ───── */

func (a *App) cloneCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "clone <dashboard> <device>",
		Short: "Copy a dashboard and point its first alias at a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := a.session(ctx)
			if err != nil {
				return err
			}
			started := time.Now()
			rep := workpool.NewReport()
			ref, err := derive.Clone(ctx, api, resolver.New(api, a.cfg.Resolver.PageSize), args[0], args[1], name)
			rep.Add(workpool.Outcome{Category: "dashboards", Name: args[0], Err: err})
			a.record(ctx, "clone", "", started, rep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created dashboard %q (%s)\n", ref.Name, ref.ID.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "title of the new dashboard (default: device name)")
	return cmd
}

func (a *App) labelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label <dashboard> <device>",
		Short: "Relabel dashboard widgets from the device LABELS attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := a.session(ctx)
			if err != nil {
				return err
			}
			started := time.Now()
			rep := workpool.NewReport()
			err = derive.Label(ctx, api, resolver.New(api, a.cfg.Resolver.PageSize), args[0], args[1])
			rep.Add(workpool.Outcome{Category: "dashboards", Name: args[0], Err: err})
			a.record(ctx, "label", "", started, rep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "relabeled dashboard %q\n", args[0])
			return nil
		},
	}
}

/* ───── convert ───── */

func (a *App) convertCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Unpack a tar.gz snapshot into a tree, or pack a tree into tar.gz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			isDir, err := afero.IsDir(a.fs, in)
			if err != nil {
				return err
			}
			if isDir {
				if out == "" {
					out = strings.TrimRight(in, string(filepath.Separator)) + ".tar.gz"
				}
				data, sum, err := tarball.Pack(a.fs, in)
				if err != nil {
					return err
				}
				if err := afero.WriteFile(a.fs, out, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "packed %s into %s (sha256 %s)\n", in, out, sum)
				return nil
			}

			if out == "" {
				out = a.cfg.Backup.Dir
			}
			f, err := a.fs.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := tarball.Unpack(f, a.fs, out); err != nil {
				return fmt.Errorf("unpack %s: %w", in, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unpacked %s into %s\n", in, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output directory or archive")
	return cmd
}

/* ───── status / history ───── */

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check platform session and run journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			api, err := a.session(ctx)
			if err != nil {
				return err
			}
			res, err := health.Run(ctx, health.Platform(api), health.Database(a.db))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range res {
				state := "ok"
				if !r.OK {
					state = "FAIL"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, state, r.Detail)
			}
			_ = w.Flush()
			return err
		},
	}
}

func (a *App) historyCmd() *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.runs.Enabled() {
				return errors.New("run journal is disabled (set database.driver)")
			}
			if runID != "" {
				return a.printFailures(cmd, runID)
			}
			runs, err := a.runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTARTED\tOK\tFAILED\tROOT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Kind, r.StartedAt.Format(time.RFC3339), r.Succeeded, r.Failed, r.Root)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show failed entities of one run")
	return cmd
}

func (a *App) printFailures(cmd *cobra.Command, runID string) error {
	fails, err := a.runs.Failures(cmd.Context(), runID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tNAME\tERROR")
	for _, f := range fails {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Category, f.Name, f.Error)
	}
	return w.Flush()
}

/* ───── итоги ───── */

// finish печатает сводку по категориям и возвращает errPartial при неудачах.
func (a *App) finish(w io.Writer, what string, rep *workpool.Report) error {
	counts := rep.ByCategory()
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(w, "%-14s ok=%d failed=%d\n", c, counts[c].Succeeded, counts[c].Failed)
	}
	if rep.Failed() == 0 {
		fmt.Fprintf(w, "%s finished: %d entities\n", what, rep.Succeeded())
		return nil
	}
	fmt.Fprintln(w, rep.Err())
	fmt.Fprintf(w, "%s finished with %d failures out of %d entities\n", what, rep.Failed(), rep.Failed()+rep.Succeeded())
	return errPartial
}
