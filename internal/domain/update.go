package domain

// Update is a single field change applied to a Request. The set of
// implementations is closed; each variant carries the field's own type.
type Update interface {
	apply(r *Request)
}

// SetName replaces the display name.
type SetName string

// SetMethod replaces the HTTP method.
type SetMethod Method

// SetURL replaces the target URL.
type SetURL string

// SetBody replaces the raw body.
type SetBody string

// SetFavorite sets or clears the favorite flag.
type SetFavorite bool

// SetHeaders replaces the whole header mapping.
type SetHeaders map[string]string

// SetParams replaces the whole query-parameter mapping.
type SetParams map[string]string

// SetHeader writes one header; an existing key is overwritten.
type SetHeader struct {
	Key   string
	Value string
}

// RemoveHeader deletes one header.
type RemoveHeader string

// SetParam writes one query parameter; an existing key is overwritten.
type SetParam struct {
	Key   string
	Value string
}

// RemoveParam deletes one query parameter.
type RemoveParam string

func (u SetName) apply(r *Request)     { r.Name = string(u) }
func (u SetMethod) apply(r *Request)   { r.Method = Method(u) }
func (u SetURL) apply(r *Request)      { r.URL = string(u) }
func (u SetBody) apply(r *Request)     { r.Body = string(u) }
func (u SetFavorite) apply(r *Request) { r.Favorite = bool(u) }
func (u SetHeaders) apply(r *Request)  { r.Headers = cloneMap(u) }
func (u SetParams) apply(r *Request)   { r.Params = cloneMap(u) }

func (u SetHeader) apply(r *Request) {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	r.Headers[u.Key] = u.Value
}

func (u RemoveHeader) apply(r *Request) { delete(r.Headers, string(u)) }

func (u SetParam) apply(r *Request) {
	if r.Params == nil {
		r.Params = map[string]string{}
	}
	r.Params[u.Key] = u.Value
}

func (u RemoveParam) apply(r *Request) { delete(r.Params, string(u)) }

// Apply returns a copy of r with every update applied in order.
func Apply(r Request, updates ...Update) Request {
	out := r.Clone()
	for _, u := range updates {
		if u != nil {
			u.apply(&out)
		}
	}
	return out
}
