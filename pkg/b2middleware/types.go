package b2middleware

import "maps"

// Request is the description of an outgoing fetch handed to the middleware
// hook. The JSON shape matches the hook's options dictionary.
type Request struct {
	URL               string            `json:"url"`
	AdditionalHeaders map[string]string `json:"additional_headers"`
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	out := Request{URL: r.URL, AdditionalHeaders: make(map[string]string, len(r.AdditionalHeaders))}
	maps.Copy(out.AdditionalHeaders, r.AdditionalHeaders)
	return out
}

// Result is what an Authorizer produces. An empty URL means the request URL
// is kept as is.
type Result struct {
	URL     string
	Headers map[string]string
}
