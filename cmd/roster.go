package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/internal/rosterio"
	"github.com/clifelab/devpulse/schema"
)

// rosterCmd groups the workbook round-trip: export a template, fill it in,
// import it back.
var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Export and import the employee and repo enrichment workbooks.",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// rosterTemplateCmd exports a CSV template pre-filled with what the
// warehouse already knows, so admins only fill in the blanks.
var rosterTemplateCmd = &cobra.Command{
	Use:   "template <member|repo>",
	Short: "Write a CSV workbook template pre-filled from the warehouse.",
	Long: `Export the member or repo enrichment workbook. Known members and repos are
listed with their current enrichment values; blank cells mean "no change" on
re-import, so the exported file can be edited incrementally.

Examples:
  devpulse roster template member --out-file members.csv
  devpulse roster template repo --blank --out-file repos.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		out := os.Stdout
		if cfg.OutFile != "" {
			f, err := os.Create(cfg.OutFile)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			out = f
		}
		blank := viper.GetBool("blank")

		switch args[0] {
		case "member":
			members, err := store.Members()
			if err != nil {
				return err
			}
			existing, err := store.Enrichment()
			if err != nil {
				return err
			}
			return rosterio.WriteMemberTemplate(out, members, existing, blank)
		case "repo":
			repos, err := store.Repos()
			if err != nil {
				return err
			}
			existing, err := store.RepoEnrichment()
			if err != nil {
				return err
			}
			return rosterio.WriteRepoTemplate(out, repos, existing, blank)
		default:
			return fmt.Errorf("unknown template '%s'. must be member, repo", args[0])
		}
	},
}

// rosterImportCmd validates and applies the filled-in workbooks. Any issue
// rejects the whole batch; the warehouse is never half-updated.
var rosterImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Validate and apply the member and repo workbooks.",
	Long: `Import the filled-in workbooks back into the warehouse. Every row is
validated first; if any issue is found the issues are printed as a table,
nothing is written and the command exits nonzero.

Examples:
  devpulse roster import --members members.csv
  devpulse roster import --members members.csv --repos repos.csv --dry-run`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		memberCSV, err := openOptional(viper.GetString("members"))
		if err != nil {
			return err
		}
		repoCSV, err := openOptional(viper.GetString("repos"))
		if err != nil {
			return err
		}
		if memberCSV == nil && repoCSV == nil {
			return fmt.Errorf("nothing to import: pass --members and/or --repos")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		existing := rosterio.Existing{}
		if existing.Enrichment, err = store.Enrichment(); err != nil {
			return err
		}
		if existing.RepoEnrichment, err = store.RepoEnrichment(); err != nil {
			return err
		}

		result, issues, err := rosterio.Import(memberCSV, repoCSV, existing)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			return rejectImport(issues)
		}

		st := result.Stats
		internal.LogInfo("roster staged",
			"member_rows", st.MemberRows,
			"skipped_no_member_key", st.SkippedNoMemberKey,
			"dummy_member_keys", st.DummyMemberKeys,
			"new_departments_level2", st.DepartmentsLevel2,
			"new_departments_level3", st.DepartmentsLevel3,
			"identity_bindings", st.IdentityBindings,
			"repo_rows", st.RepoRows)

		if viper.GetBool("dry-run") {
			internal.LogInfo("dry run, nothing written")
			return nil
		}
		if err := store.ReplaceRoster(result.Rows, result.Identities); err != nil {
			return err
		}
		if repoCSV != nil {
			if err := store.ReplaceRepoEnrichment(result.RepoRows); err != nil {
				return err
			}
		}
		internal.LogInfo("roster imported")
		return nil
	},
}

// rosterProjectsCmd imports the project workbook: projects plus their repo
// and member bridges.
var rosterProjectsCmd = &cobra.Command{
	Use:   "import-projects",
	Short: "Validate and apply the project workbook.",
	Long: `Import projects and their repo and member assignments. Assignments carry a
date range and an allocation in (0,1]; overlapping ranges for the same
(project, repo) or (project, member, role) are rejected. Member columns may
name people by employee id or by full name.

Examples:
  devpulse roster import-projects --projects projects.csv \
    --project-repos bindings.csv --project-members assignments.csv`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		projectCSV, err := openOptional(viper.GetString("projects"))
		if err != nil {
			return err
		}
		repoCSV, err := openOptional(viper.GetString("project-repos"))
		if err != nil {
			return err
		}
		memberCSV, err := openOptional(viper.GetString("project-members"))
		if err != nil {
			return err
		}
		if projectCSV == nil && repoCSV == nil && memberCSV == nil {
			return fmt.Errorf("nothing to import: pass --projects, --project-repos and/or --project-members")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		existing := rosterio.ProjectExisting{}
		if existing.Projects, err = store.Projects(); err != nil {
			return err
		}
		if existing.Roles, err = store.ProjectRoles(); err != nil {
			return err
		}
		if existing.Repos, err = store.ProjectRepos(); err != nil {
			return err
		}
		if existing.Enrichment, err = store.Enrichment(); err != nil {
			return err
		}

		result, issues, err := rosterio.ImportProjects(projectCSV, repoCSV, memberCSV, existing)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			return rejectImport(issues)
		}

		st := result.Stats
		internal.LogInfo("projects staged",
			"projects", st.Projects,
			"repo_bindings", st.ProjectRepoRows,
			"member_assignments", st.ProjectMemberRows)

		if viper.GetBool("dry-run") {
			internal.LogInfo("dry run, nothing written")
			return nil
		}
		if err := store.ReplaceProjects(result.Projects, result.Roles, result.Repos); err != nil {
			return err
		}
		internal.LogInfo("projects imported")
		return nil
	},
}

// openOptional opens a CSV path, returning a nil reader for an empty path
// so callers can tell "not provided" apart from "empty file".
func openOptional(path string) (io.Reader, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// rejectImport prints the issues as a table and fails the command.
func rejectImport(issues []rosterio.ImportIssue) error {
	r := schema.NewReport("import-issues", "location", "row", "key", "field", "message")
	for _, issue := range issues {
		r.Append(issue.Location, issue.Row, issue.Key, issue.Field, issue.Message)
	}
	if err := outWriter.Write(r, cfg); err != nil {
		return err
	}
	return fmt.Errorf("import rejected: %d issue(s), nothing written", len(issues))
}
