package demo

import "time"

// Seed stores the sample projects. Milestone dates are relative to now.
func Seed(repo *Repository, now time.Time) {
	repo.Save(&Project{
		Name: "PayPal integration",
		Tasks: []Task{
			{Name: "Implement PayPal checkout"},
		},
	})

	repo.Save(&Project{
		Name: "Mobile App",
		Tasks: []Task{
			{Name: "Design Welcome Screen", Priority: PriorityHigh, Status: StatusInProgress},
			{Name: "Create user authentication system", Priority: PriorityHigh, Status: StatusTodo},
			{Name: "Develop offline mode functionality", Priority: PriorityMedium, Status: StatusInProgress},
			{Name: "Implement push notifications", Priority: PriorityMedium, Status: StatusTodo},
			{Name: "Optimize app performance", Priority: PriorityHigh, Status: StatusTodo},
			{Name: "Conduct user testing", Priority: PriorityMedium, Status: StatusTodo},
			{Name: "Fix bugs", Priority: PriorityMedium, Status: StatusInProgress},
		},
		Milestones: []Milestone{
			{Name: "Beta Release", Date: now.AddDate(0, 0, 10)},
		},
	})
}
