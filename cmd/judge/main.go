package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/competitive-cli/judge/internal/config"
	"github.com/competitive-cli/judge/internal/core"
	"github.com/competitive-cli/judge/pkg/judges"
)

func resolveFile(files ...string) (string, error) {
	for _, file := range files {
		if len(file) == 0 {
			continue
		}
		if _, err := os.Stat(file); err == nil {
			return file, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", os.ErrNotExist
}

// getConfig reads config with filename from '--config' flag.
func getConfig(cmd *cobra.Command) (config.Config, error) {
	flagFilename, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	envFilename := os.Getenv("JUDGE_CONFIG")
	resolved, err := resolveFile(flagFilename, envFilename)
	if err != nil {
		return config.Config{}, fmt.Errorf("cannot find config: %w", err)
	}
	return config.LoadFromFile(resolved)
}

// readPassword asks password from terminal without echo.
func readPassword(judge judges.Judge, username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password of %s@%s is not configured", username, judge)
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", username, judge)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// newCore creates core from config and prepares history.
func newCore(cmd *cobra.Command) (*core.Core, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	c, err := core.NewCore(cfg, core.WithPrompt(readPassword))
	if err != nil {
		return nil, err
	}
	if err := c.Init(cmd.Context()); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func judgesMain(cmd *cobra.Command, _ []string) error {
	rows := make([][]string, 0, len(judges.Judges()))
	for _, judge := range judges.Judges() {
		rows = append(rows, []string{string(judge)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Judge"}, rows))
	return nil
}

func languagesMain(cmd *cobra.Command, args []string) error {
	c, err := core.NewCore(config.Config{})
	if err != nil {
		return err
	}
	defer c.Close()
	judge, err := c.NewJudge(args[0])
	if err != nil {
		return err
	}
	languages := judge.Languages()
	var rows [][]string
	for _, name := range languages.Names() {
		code, err := languages.Code(name)
		if err != nil {
			return err
		}
		label, _ := languages.Label(code)
		rows = append(rows, []string{name, code, label})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Code", "Language"}, rows))
	return nil
}

func submitMain(cmd *cobra.Command, args []string) error {
	language, err := cmd.Flags().GetString("lang")
	if err != nil {
		return err
	}
	searchPath, err := cmd.Flags().GetString("path")
	if err != nil {
		return err
	}
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return err
	}
	c, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := cmd.Context()
	judge, s, err := c.Login(ctx, args[0])
	if err != nil {
		return err
	}
	req := judges.SubmitRequest{
		Problem:    args[1],
		SearchPath: searchPath,
		Language:   language,
	}
	if len(args) > 2 {
		req.File = args[2]
	}
	id, err := c.Submit(ctx, judge, s, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Submitted:", id)
	if !wait {
		return nil
	}
	verdict, err := c.Wait(ctx, judge, s, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Verdict:", renderVerdict(verdict))
	return nil
}

func verdictMain(cmd *cobra.Command, args []string) error {
	c, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := cmd.Context()
	judge, s, err := c.Login(ctx, args[0])
	if err != nil {
		return err
	}
	verdict, err := c.Wait(ctx, judge, s, judges.SubmissionID(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderVerdict(verdict))
	return nil
}

func historyMain(cmd *cobra.Command, args []string) error {
	local, err := cmd.Flags().GetBool("local")
	if err != nil {
		return err
	}
	c, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := cmd.Context()
	var records []judges.SubmissionRecord
	if local {
		if c.History == nil {
			return fmt.Errorf("section 'history' should be configured")
		}
		account, ok := c.Config.Account(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrNoAccount, args[0])
		}
		records, err = c.History.Records(ctx, judges.Judge(args[0]), account.Username)
		if err != nil {
			return err
		}
	} else {
		judge, s, err := c.Login(ctx, args[0])
		if err != nil {
			return err
		}
		if records, err = c.FetchHistory(ctx, judge, s); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
	return nil
}

func statusMain(cmd *cobra.Command, args []string) error {
	filter := judges.HistoryFilter{Problem: args[1]}
	var err error
	if filter.Contest, err = cmd.Flags().GetString("contest"); err != nil {
		return err
	}
	if filter.Year, err = cmd.Flags().GetInt("year"); err != nil {
		return err
	}
	if filter.Language, err = cmd.Flags().GetString("lang"); err != nil {
		return err
	}
	c, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := cmd.Context()
	judge, s, err := c.Login(ctx, args[0])
	if err != nil {
		return err
	}
	problemURL, err := judge.ProblemURL(ctx, filter.Problem)
	if err != nil {
		return err
	}
	records, err := c.SearchHistory(ctx, judge, s, filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Problem:", problemURL)
	fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
	return nil
}

func urlMain(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig(cmd)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	c, err := core.NewCore(config.Config{Judges: cfg.Judges, HTTP: cfg.HTTP})
	if err != nil {
		return err
	}
	defer c.Close()
	judge, err := c.NewJudge(args[0])
	if err != nil {
		return err
	}
	problemURL, err := judge.ProblemURL(cmd.Context(), args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), problemURL)
	return nil
}

func versionMain(cmd *cobra.Command, _ []string) {
	fmt.Fprintln(cmd.OutOrStdout(), "judge version:", config.Version)
}

func newRootCmd() *cobra.Command {
	rootCmd := cobra.Command{
		Use:           "judge",
		Short:         "Submits solutions to online judges",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "judge.json", "")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "judges",
		Args:  cobra.NoArgs,
		RunE:  judgesMain,
		Short: "Prints supported judges",
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "languages <judge>",
		Args:  cobra.ExactArgs(1),
		RunE:  languagesMain,
		Short: "Prints languages supported by judge",
	})
	submitCmd := cobra.Command{
		Use:   "submit <judge> <problem> [file]",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  submitMain,
		Short: "Submits solution",
	}
	submitCmd.Flags().String("lang", "", "Explicit language of solution")
	submitCmd.Flags().String("path", "", "Directory where solution is searched")
	submitCmd.Flags().Bool("wait", false, "Wait for verdict")
	rootCmd.AddCommand(&submitCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "verdict <judge> <id>",
		Args:  cobra.ExactArgs(2),
		RunE:  verdictMain,
		Short: "Waits for verdict of submission",
	})
	historyCmd := cobra.Command{
		Use:   "history <judge>",
		Args:  cobra.ExactArgs(1),
		RunE:  historyMain,
		Short: "Prints submission history",
	}
	historyCmd.Flags().Bool("local", false, "Read history from local database")
	rootCmd.AddCommand(&historyCmd)
	statusCmd := cobra.Command{
		Use:   "status <judge> <problem>",
		Args:  cobra.ExactArgs(2),
		RunE:  statusMain,
		Short: "Prints submissions of problem",
	}
	statusCmd.Flags().String("contest", "", "Contest of problem")
	statusCmd.Flags().Int("year", 0, "Year of submissions")
	statusCmd.Flags().String("lang", "", "Language of submissions")
	rootCmd.AddCommand(&statusCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "url <judge> <problem>",
		Args:  cobra.ExactArgs(2),
		RunE:  urlMain,
		Short: "Prints URL of problem",
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats [judges...]",
		RunE:  statsMain,
		Short: "Prints profile statistics",
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Args:  cobra.NoArgs,
		Run:   versionMain,
		Short: "Prints information about version",
	})
	return &rootCmd
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
