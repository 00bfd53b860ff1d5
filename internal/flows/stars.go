package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"duckpond/internal/datasource/file"
	"duckpond/internal/flow"
)

const defaultGitHubAPI = "https://api.github.com"

// DefaultRepos are queried when no repositories are configured.
var DefaultRepos = []string{"PrefectHQ/Prefect", "abhr1994/DuckDB_Datalake"}

func init() {
	Register(Definition{
		Name:        "stars",
		Title:       "GitHub Stars",
		Description: "log the stargazer count of GitHub repositories",
		Body:        stars,
	})
}

type repository struct {
	FullName        string `json:"full_name"`
	StargazersCount int    `json:"stargazers_count"`
}

// Repos resolves the repository list: the "repos" option, then the lines of
// "repos_file", then DefaultRepos.
func (env *Env) Repos() ([]string, error) {
	repos := env.Options.StringSlice("repos")
	if path := env.Options.String("repos_file", ""); path != "" {
		more, err := file.ReadListFile(path)
		if err != nil {
			return nil, err
		}
		repos = append(repos, more...)
	}
	if len(repos) == 0 {
		repos = DefaultRepos
	}
	return repos, nil
}

func stars(f *flow.Flow, env *Env) error {
	repos, err := env.Repos()
	if err != nil {
		return err
	}
	api := strings.TrimRight(env.Options.String("api_url", defaultGitHubAPI), "/")
	delay, err := time.ParseDuration(env.Options.String("sample_delay", "500ms"))
	if err != nil {
		return fmt.Errorf("stars: sample_delay: %w", err)
	}

	for _, repo := range repos {
		repo := repo
		flow.Submit(f, flow.Task[int]{
			Name:    "get_stars",
			Retries: DefaultRetries,
			Run: func(ctx context.Context) (int, error) {
				var r repository
				if err := env.HTTP.GetJSON(ctx, api+"/repos/"+repo, env.headers(), &r); err != nil {
					return 0, err
				}
				flow.Log(ctx).Infof("%s has %d stars!", repo, r.StargazersCount)
				return r.StargazersCount, nil
			},
		})
		flow.Submit(f, flow.Task[struct{}]{
			Name:    "sample_task",
			Retries: DefaultRetries,
			Run: func(ctx context.Context) (struct{}, error) {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-ctx.Done():
					return struct{}{}, ctx.Err()
				case <-t.C:
				}
				flow.Log(ctx).Infof("%s second task", repo)
				return struct{}{}, nil
			},
		})
	}
	return nil
}
