package projection

// GraphQLError is a projection error located at a response path.
type GraphQLError struct {
	Message string `json:"message"`
	Path    Path   `json:"path,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// Result is the outcome of one projection. Data holds partial results when
// some fields failed.
type Result struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
