package core

// Params is a generic key-value parameter map for request payloads.
type Params map[string]any

// Request describes one venue call before it enters the pipeline: the payload,
// the rate-limit weight it consumes, and whether it must be signed.
type Request struct {
	// Path is the venue endpoint ("/info" or "/exchange").
	Path string `json:"path"`
	// Body is the JSON payload posted to the endpoint.
	Body any `json:"body,omitempty"`
	// Weight is the rate-limit cost of this request.
	Weight int `json:"weight"`
	// RequireAuth marks the request as needing a signature.
	RequireAuth bool `json:"require_auth"`
	// Translate runs the response through the symbol registry when true. Raw
	// callers leave it false and also skip the registry readiness wait.
	Translate bool `json:"translate"`
	// SymbolFields names the payload keys whose values carry venue symbols.
	SymbolFields []string `json:"symbol_fields,omitempty"`
}

// NewRequest creates a Request for the given endpoint with weight 1.
func NewRequest(path string) *Request {
	return &Request{
		Path:   path,
		Weight: 1,
	}
}

// SetBody sets the payload and returns the request for chaining.
func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

// SetWeight sets the rate-limit cost and returns the request for chaining.
func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}

// SetRequireAuth marks the request as authenticated and returns it for chaining.
func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// SetTranslate enables response translation for the named symbol fields and
// returns the request for chaining.
func (r *Request) SetTranslate(fields ...string) *Request {
	r.Translate = true
	r.SymbolFields = fields
	return r
}
