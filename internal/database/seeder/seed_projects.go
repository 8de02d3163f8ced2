package seeder

import (
	"context"
	"errors"

	"apply-codes/internal/store"
)

type ProjectsSeeder struct {
	UID string
}

func (ProjectsSeeder) Name() string { return "projects" }

func (p ProjectsSeeder) Run(ctx context.Context, s store.Store) error {
	if p.UID == "" {
		return errors.New("uid is required")
	}

	items := []struct {
		ID           string
		Name         string
		Content      string
		SearchString string
	}{
		{
			ID:           "demo-backend",
			Name:         "Backend Engineer",
			Content:      "Senior Go Engineer, Kubernetes, PostgreSQL, Berlin",
			SearchString: `("Senior Go Engineer" OR "Golang Engineer") AND (Kubernetes OR k8s) AND PostgreSQL AND Berlin`,
		},
		{
			ID:           "demo-frontend",
			Name:         "Frontend Engineer",
			Content:      "React Developer, TypeScript, Remote",
			SearchString: `("React Developer" OR "Frontend Engineer") AND TypeScript AND (Remote OR "work from home")`,
		},
	}

	for _, it := range items {
		err := create(ctx, s, store.CollectionProjects, p.UID+"-"+it.ID, map[string]any{
			"owner_id":     p.UID,
			"name":         it.Name,
			"content":      it.Content,
			"searchString": it.SearchString,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
