package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clifelab/devpulse/core/report"
	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/schema"
)

// runReport loads the shared inputs, runs one report function and renders
// the result through the configured output writer.
func runReport(fn func(*report.Builder) *schema.Report) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	in, err := internal.LoadReportInputs(store, cfg, time.Now())
	if err != nil {
		return err
	}
	return outWriter.Write(fn(report.New(in)), cfg)
}

// newReportCmd builds one leaf report command. Every report command shares
// the same setup and rendering; only the report function differs.
func newReportCmd(use, short string, fn func(*report.Builder) *schema.Report) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		PreRunE: sharedSetup,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runReport(fn)
		},
	}
}

// reportCmd groups the inventory reports: who and what exists, and who
// committed where. Scoring lives under the score command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inventory reports over repos, members and commits.",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var (
	activeReposCmd = newReportCmd("active-repos",
		"Repos with commits in the window, with after-hours and merge ratios.",
		(*report.Builder).ActiveRepos)

	memberCommitsCmd = newReportCmd("member-commits",
		"Commit and changed-line totals per member.",
		(*report.Builder).MemberCommits)

	repoMemberCommitsCmd = newReportCmd("repo-member-commits",
		"Commit totals per (repo, member) pair.",
		(*report.Builder).RepoMemberCommits)

	externalCommittersCmd = newReportCmd("external-committers",
		"Commit identities that resolve to no employee.",
		(*report.Builder).ExternalCommitters)

	missingFullnameAuthorsCmd = newReportCmd("missing-fullname-authors",
		"Commit authors whose member rows carry no full name.",
		(*report.Builder).MissingFullnameAuthors)

	employeeCommitsCmd = newReportCmd("employee-commits",
		"Commit and changed-line totals per resolved employee.",
		(*report.Builder).EmployeeCommits)

	repoEmployeeCommitsCmd = newReportCmd("repo-employee-commits",
		"Commit totals per (repo, employee) pair.",
		(*report.Builder).RepoEmployeeCommits)
)

// activeMembersCmd and inactiveMembersCmd take --all-fields, so they are
// spelled out instead of going through newReportCmd.
var activeMembersCmd = &cobra.Command{
	Use:     "active-members",
	Short:   "Employees with at least one commit in the window.",
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		all := viper.GetBool("all-fields")
		return runReport(func(b *report.Builder) *schema.Report {
			return b.ActiveMembers(all)
		})
	},
}

var inactiveMembersCmd = &cobra.Command{
	Use:     "inactive-members",
	Short:   "Employees with no commits in the window.",
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		all := viper.GetBool("all-fields")
		return runReport(func(b *report.Builder) *schema.Report {
			return b.InactiveMembers(all)
		})
	},
}
