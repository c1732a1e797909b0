package engine

import (
	"context"
	"fmt"
)

type SeedResult struct {
	Projects int `json:"projects"`
	Agents   int `json:"agents"`
	Tasks    int `json:"tasks"`
}

type seedTask struct {
	title, description, priority, category string
	project                                int
	withAgent                              bool
}

var demoTasks = []seedTask{
	{"Draft Q3 newsletter", "Summarize product updates and customer wins for the quarterly newsletter.", "medium", "auto_execute", 0, false},
	{"Write launch announcement", "Announcement blog post for the new onboarding flow.", "high", "delegate_agent", 0, true},
	{"Approve vendor contract", "Review the renewal terms from the hosting vendor and sign off.", "urgent", "human_required", 1, false},
	{"Prepare board meeting agenda", "", "high", "pending", 1, false},
}

// SeedDemo fills an empty account with sample data. It refuses to run for a
// user that already owns projects.
func (e Engine) SeedDemo(ctx context.Context, userID string) (SeedResult, error) {
	n, err := e.Repo.CountProjects(ctx, userID)
	if err != nil {
		return SeedResult{}, err
	}
	if n > 0 {
		return SeedResult{}, invalid("userId", fmt.Sprintf("already has %d projects", n))
	}
	var res SeedResult
	var projectIDs []string
	for _, p := range []ProjectInput{
		{Name: ptr("Marketing Launch"), Description: ptr("Content and campaigns for the autumn launch.")},
		{Name: ptr("Operations"), Description: ptr("Recurring back-office work.")},
	} {
		proj, err := e.CreateProject(ctx, userID, p)
		if err != nil {
			return res, err
		}
		projectIDs = append(projectIDs, proj.ID)
		res.Projects++
	}
	agent, err := e.CreateAgent(ctx, userID, AgentInput{
		Name:        ptr("Content Writer"),
		Description: ptr("Writes marketing copy in the company voice."),
		Type:        ptr("prompt"),
		CreatedBy:   ptr("digital_coo"),
		Prompt:      ptr("You are a senior content marketer. Write clear, upbeat copy in second person and keep paragraphs short."),
	})
	if err != nil {
		return res, err
	}
	res.Agents++
	for _, st := range demoTasks {
		in := TaskInput{
			Title:     ptr(st.title),
			Priority:  ptr(st.priority),
			Category:  ptr(st.category),
			ProjectID: ptr(projectIDs[st.project]),
		}
		if st.description != "" {
			in.Description = ptr(st.description)
		}
		if st.withAgent {
			in.AssignedAgentID = ptr(agent.ID)
		}
		if _, err := e.CreateTask(ctx, userID, in); err != nil {
			return res, err
		}
		res.Tasks++
	}
	return res, nil
}

func ptr[T any](v T) *T {
	return &v
}
