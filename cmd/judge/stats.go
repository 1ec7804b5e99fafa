package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/competitive-cli/judge/internal/core"
	"github.com/competitive-cli/judge/pkg/judges"
)

type statsLogin struct {
	judge judges.JudgeSession
	creds judges.Credentials
}

// prepareStats resolves credentials of every judge one by one, so
// password prompts never overlap.
func prepareStats(c *core.Core, names []string) ([]statsLogin, error) {
	logins := make([]statsLogin, 0, len(names))
	for _, name := range names {
		judge, creds, err := c.PrepareLogin(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		logins = append(logins, statsLogin{judge: judge, creds: creds})
	}
	return logins, nil
}

// statsMain fetches profiles of several judges concurrently.
//
// Every judge gets its own adapter so sessions are never shared.
func statsMain(cmd *cobra.Command, args []string) error {
	c, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	names := args
	if len(names) == 0 {
		for _, judge := range judges.Judges() {
			if _, ok := c.Config.Account(string(judge)); ok {
				names = append(names, string(judge))
			}
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: no judges", core.ErrNoAccount)
	}
	logins, err := prepareStats(c, names)
	if err != nil {
		return err
	}
	stats := make([]judges.UserStats, len(logins))
	eg, ctx := errgroup.WithContext(cmd.Context())
	for i, login := range logins {
		i, login := i, login
		eg.Go(func() error {
			name := login.judge.Judge()
			s, err := c.LoginWith(ctx, login.judge, login.creds)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			stat, err := login.judge.FetchUserStats(ctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			stats[i] = stat
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
	return nil
}

func renderStats(stats []judges.UserStats) string {
	rows := make([][]string, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, []string{
			string(stat.Judge),
			stat.Username,
			stat.Rating,
			stat.Rank,
			strconv.Itoa(stat.Solved),
			strconv.Itoa(stat.Submissions),
		})
	}
	return renderTable(
		[]string{"Judge", "Username", "Rating", "Rank", "Solved", "Submissions"},
		rows,
	)
}
