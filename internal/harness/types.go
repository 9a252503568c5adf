package harness

// Exchange is one request and its response in a trace.
type Exchange struct {
	Step   int    `json:"step"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status"`

	// Body is the decoded JSON response, or the raw text when the
	// response is not JSON.
	Body any `json:"body,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []Exchange `json:"trace"`
	Errors []string   `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []Exchange{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddExchange appends to the trace.
func (r *Result) AddExchange(e Exchange) {
	r.Trace = append(r.Trace, e)
}
