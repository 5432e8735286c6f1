package model

// ViewType selects how a tab renders its symbols.
type ViewType string

const (
	ViewCompact    ViewType = "compact"
	ViewDetailed   ViewType = "detailed"
	ViewIndividual ViewType = "individual"
	ViewMarket     ViewType = "market"
)

// Tab is a user-defined view over a set of symbols.
type Tab struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	ViewType ViewType `json:"viewType" yaml:"view_type"`
	Symbols  []string `json:"symbols" yaml:"symbols"`
}
