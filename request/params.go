package request

import (
	"net/url"
	"sort"
	"strings"

	"github.com/dpup/oauthkit/signature"
)

// Params is an ordered list of request parameters. Keys may repeat.
type Params []signature.Param

// ParamsFromValues converts url.Values, sorting keys for a stable order.
func ParamsFromValues(values url.Values) Params {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var p Params
	for _, k := range keys {
		for _, v := range values[k] {
			p = append(p, signature.Param{Key: k, Value: v})
		}
	}
	return p
}

// Add appends a parameter.
func (p *Params) Add(key, value string) {
	*p = append(*p, signature.Param{Key: key, Value: value})
}

// Set replaces every parameter named key with a single value, keeping the
// position of the first.
func (p *Params) Set(key, value string) {
	out := (*p)[:0:0]
	set := false
	for _, param := range *p {
		if param.Key != key {
			out = append(out, param)
			continue
		}
		if !set {
			out = append(out, signature.Param{Key: key, Value: value})
			set = true
		}
	}
	if !set {
		out = append(out, signature.Param{Key: key, Value: value})
	}
	*p = out
}

// SetDefault sets key only when it is not already present.
func (p *Params) SetDefault(key, value string) {
	if !p.Has(key) {
		p.Add(key, value)
	}
}

// Del removes every parameter named key.
func (p *Params) Del(key string) {
	out := (*p)[:0:0]
	for _, param := range *p {
		if param.Key != key {
			out = append(out, param)
		}
	}
	*p = out
}

// Get returns the first value for key.
func (p Params) Get(key string) string {
	for _, param := range p {
		if param.Key == key {
			return param.Value
		}
	}
	return ""
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	for _, param := range p {
		if param.Key == key {
			return true
		}
	}
	return false
}

// Merge appends other, replacing existing keys.
func (p *Params) Merge(other Params) {
	for _, key := range other.keys() {
		p.Del(key)
	}
	*p = append(*p, other...)
}

func (p Params) keys() []string {
	seen := map[string]bool{}
	var keys []string
	for _, param := range p {
		if !seen[param.Key] {
			seen[param.Key] = true
			keys = append(keys, param.Key)
		}
	}
	return keys
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return append(Params(nil), p...)
}

// Values converts to url.Values.
func (p Params) Values() url.Values {
	v := url.Values{}
	for _, param := range p {
		v.Add(param.Key, param.Value)
	}
	return v
}

// Encode renders the parameters in order as application/x-www-form-urlencoded.
func (p Params) Encode() string {
	var sb strings.Builder
	for i, param := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(param.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(param.Value))
	}
	return sb.String()
}
