package typecache

// BaselineTypes are the system record types every instance ships with. They
// are considered valid even when discovery fails entirely; instance-specific
// custom types are only known after discovery.
var BaselineTypes = []string{
	"Assignable",
	"AssignedEffort",
	"Attachment",
	"Bug",
	"Build",
	"Comment",
	"Epic",
	"Feature",
	"General",
	"GeneralUser",
	"Impediment",
	"Iteration",
	"Milestone",
	"PortfolioEpic",
	"Program",
	"Project",
	"Release",
	"Request",
	"Requester",
	"Task",
	"Team",
	"TeamIteration",
	"TestCase",
	"TestPlan",
	"TestPlanRun",
	"Time",
	"User",
	"UserStory",
}
