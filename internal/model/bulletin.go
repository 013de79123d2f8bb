package model

// ResolutionResult is the outcome of resolving one endpoint to a document
// link. Exactly one exists per endpoint for the lifetime of a run.
type ResolutionResult struct {
	Endpoint   string   `json:"endpoint"`
	Link       string   `json:"link,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Error      string   `json:"error,omitempty"`
	Attempts   int      `json:"attempts"`
}

// Resolved reports whether a link was found.
func (r ResolutionResult) Resolved() bool {
	return r.Link != ""
}

// Resolutions maps endpoints to their results while remembering the order
// in which endpoints first appeared.
type Resolutions struct {
	order   []string
	results map[string]ResolutionResult
}

// NewResolutions creates an empty Resolutions.
func NewResolutions() Resolutions {
	return Resolutions{results: make(map[string]ResolutionResult)}
}

// Add records a result. The first result for an endpoint wins; later ones
// are ignored and Add returns false.
func (r *Resolutions) Add(res ResolutionResult) bool {
	if r.results == nil {
		r.results = make(map[string]ResolutionResult)
	}
	if _, ok := r.results[res.Endpoint]; ok {
		return false
	}
	r.order = append(r.order, res.Endpoint)
	r.results[res.Endpoint] = res
	return true
}

// Get returns the result for an endpoint.
func (r Resolutions) Get(endpoint string) (ResolutionResult, bool) {
	res, ok := r.results[endpoint]
	return res, ok
}

// Len returns the number of distinct endpoints.
func (r Resolutions) Len() int {
	return len(r.order)
}

// Results returns all results in first-appearance order.
func (r Resolutions) Results() []ResolutionResult {
	out := make([]ResolutionResult, 0, len(r.order))
	for _, ep := range r.order {
		out = append(out, r.results[ep])
	}
	return out
}

// Resolved returns the results that carry a link, in first-appearance order.
func (r Resolutions) Resolved() []ResolutionResult {
	var out []ResolutionResult
	for _, ep := range r.order {
		if res := r.results[ep]; res.Resolved() {
			out = append(out, res)
		}
	}
	return out
}

// DocumentHandle is a downloaded bulletin on local storage.
type DocumentHandle struct {
	Endpoint  string `json:"endpoint"`
	Link      string `json:"link"`
	LocalPath string `json:"local_path"`
}

// AnalysisTask is one unit of analysis work: a downloaded document plus
// every entity that shares its endpoint.
type AnalysisTask struct {
	Endpoint  string
	Link      string
	LocalPath string
	Entities  []Entity
}

// AnalysisOutcome is the result of one AnalysisTask. Err != nil marks a
// failed task; a zero Result with nil Err is a successful empty result.
type AnalysisOutcome[T any] struct {
	Endpoint string
	Link     string
	Result   T
	Err      error
	Entities []Entity
}

// Failed reports whether the task failed.
func (o AnalysisOutcome[T]) Failed() bool {
	return o.Err != nil
}

// EntityOutcome is an AnalysisOutcome fanned out to one entity.
type EntityOutcome[T any] struct {
	Entity   Entity
	Endpoint string
	Link     string
	Result   T
	Err      error
}

// Failed reports whether the underlying task failed.
func (o EntityOutcome[T]) Failed() bool {
	return o.Err != nil
}
