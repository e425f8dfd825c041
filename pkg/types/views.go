package types

// PersonSummary is a person together with the number of memories about them.
type PersonSummary struct {
	Person
	MemoryCount int `json:"memory_count"`
}

// PersonListView is the person list as presented to clients.
type PersonListView struct {
	State   ViewState       `json:"state"`
	Sort    PersonSort      `json:"sort"`
	Persons []PersonSummary `json:"persons"`
	Error   string          `json:"error,omitempty"`
}

// PersonDetailView is a single person with their memories, newest first.
type PersonDetailView struct {
	State    ViewState `json:"state"`
	Person   *Person   `json:"person,omitempty"`
	Memories []Memory  `json:"memories"`
	Error    string    `json:"error,omitempty"`
}
