package taskname

const (
	// Tournament tasks
	TournamentAddPoints = "tournament:add_points"
	TournamentPrune     = "tournament:prune"
)
