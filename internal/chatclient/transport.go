package chatclient

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// headerTransport adiciona headers fixos às requisições HTTP de saída
type headerTransport struct {
	Base   http.RoundTripper
	Header http.Header
	Debug  bool
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clonar a requisição para não modificar a original
	reqCopy := req.Clone(req.Context())
	for k, vs := range t.Header {
		for _, v := range vs {
			reqCopy.Header.Set(k, v)
		}
	}

	if t.Debug {
		log.Debug().Str("method", reqCopy.Method).Str("url", reqCopy.URL.Redacted()).Msg("outbound request")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqCopy)
}
