package internal

import (
	"fmt"
	"time"

	"github.com/clifelab/devpulse/core/facts"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/core/report"
	"github.com/clifelab/devpulse/core/roster"
	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/schema"
)

// LoadReportInputs reads every dimension and the window's commit facts out
// of the lake and assembles the shared report inputs. All report commands
// and the MCP tools go through this one path so their numbers agree.
func LoadReportInputs(s *lake.Store, cfg *schema.Config, now time.Time) (report.Inputs, error) {
	w := schema.NewWindow(now, cfg.Months)

	repos, err := s.Repos()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load repos: %w", err)
	}
	members, err := s.Members()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load members: %w", err)
	}
	enrichment, err := s.Enrichment()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load roster: %w", err)
	}
	identities, err := s.Identities()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load identities: %w", err)
	}
	commits, err := s.Commits(w.Since)
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load commits: %w", err)
	}
	stats, err := s.CommitStats()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load commit stats: %w", err)
	}
	projects, err := s.Projects()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load projects: %w", err)
	}
	roles, err := s.ProjectRoles()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load project roles: %w", err)
	}
	projectRepos, err := s.ProjectRepos()
	if err != nil {
		return report.Inputs{}, fmt.Errorf("load project repos: %w", err)
	}

	builder := facts.NewBuilder(identity.NewNormalizer(cfg.CorpDomain))
	built := builder.Build(commits, stats)

	return report.Inputs{
		Repos:        repos,
		Members:      members,
		Roster:       roster.Build(enrichment, members, identities),
		Facts:        facts.FilterWindow(built.Facts, w),
		Projects:     projects,
		ProjectRoles: roles,
		ProjectRepos: projectRepos,
		Window:       w,
		Now:          now.UTC(),
		CorpDomain:   cfg.CorpDomain,
		Top:          cfg.Top,
	}, nil
}
