package metadata

import "github.com/tracelane/tracelane-go/typecache"

// staticRelationships are the well-known relationships between baseline
// system types. They are merged into every bundle so the common types stay
// fully described even when the detailed metadata endpoint fails.
var staticRelationships = map[string][]Relationship{
	"UserStory": {
		{Name: "Project", Target: "Project"},
		{Name: "Feature", Target: "Feature"},
		{Name: "Team", Target: "Team"},
		{Name: "Iteration", Target: "Iteration"},
		{Name: "TeamIteration", Target: "TeamIteration"},
		{Name: "Release", Target: "Release"},
		{Name: "Tasks", Target: "Task", Kind: "collection"},
		{Name: "Bugs", Target: "Bug", Kind: "collection"},
		{Name: "AssignedUser", Target: "User", Kind: "collection"},
	},
	"Bug": {
		{Name: "Project", Target: "Project"},
		{Name: "UserStory", Target: "UserStory"},
		{Name: "Team", Target: "Team"},
		{Name: "Iteration", Target: "Iteration"},
		{Name: "Release", Target: "Release"},
		{Name: "AssignedUser", Target: "User", Kind: "collection"},
	},
	"Task": {
		{Name: "Project", Target: "Project"},
		{Name: "UserStory", Target: "UserStory"},
		{Name: "AssignedUser", Target: "User", Kind: "collection"},
	},
	"Feature": {
		{Name: "Project", Target: "Project"},
		{Name: "Epic", Target: "Epic"},
		{Name: "UserStories", Target: "UserStory", Kind: "collection"},
	},
	"Epic": {
		{Name: "Project", Target: "Project"},
		{Name: "PortfolioEpic", Target: "PortfolioEpic"},
		{Name: "Features", Target: "Feature", Kind: "collection"},
	},
	"Project": {
		{Name: "Program", Target: "Program"},
		{Name: "Teams", Target: "Team", Kind: "collection"},
		{Name: "Releases", Target: "Release", Kind: "collection"},
	},
	"Team": {
		{Name: "Projects", Target: "Project", Kind: "collection"},
		{Name: "TeamIterations", Target: "TeamIteration", Kind: "collection"},
	},
	"Release": {
		{Name: "Project", Target: "Project"},
		{Name: "Iterations", Target: "Iteration", Kind: "collection"},
	},
	"Iteration": {
		{Name: "Release", Target: "Release"},
	},
	"TeamIteration": {
		{Name: "Team", Target: "Team"},
	},
	"Comment": {
		{Name: "General", Target: "General"},
		{Name: "Owner", Target: "User"},
	},
	"Impediment": {
		{Name: "Project", Target: "Project"},
		{Name: "Owner", Target: "User"},
	},
}

// staticDescriptors builds baseline descriptors: every baseline type name
// plus the known relationships above.
func staticDescriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, len(typecache.BaselineTypes))
	for _, name := range typecache.BaselineTypes {
		descriptors = append(descriptors, Descriptor{
			Name:          name,
			Relationships: staticRelationships[name],
		})
	}
	return descriptors
}
