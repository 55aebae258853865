// Package humastar connects huma operations to Datastar pages: SSE responses
// that patch rendered fragments and signals, parsing of the signals a page
// sends, the page's route table read back from the OpenAPI document, and
// the Link headers of the REST side.
//
// A page handler embeds [Handler] and answers with a stream:
//
//	func (h *Handler) Misc(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Fragment(h.Renderer, "controls", view, "#controls")
//	    }), nil
//	}
package humastar

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-polymer/internal/templates"
)

// Handler is embedded by page handlers that render fragments.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream answers with a Datastar event stream written by fn.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// SSE is a Datastar event stream on a huma response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a stream on a huma context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Fragment renders template name and swaps it in as the content of selector.
// A render failure reaches the page as the error signal.
func (s SSE) Fragment(r *templates.Renderer, name string, data any, selector string) {
	html, err := r.Render(name, data)
	if err != nil {
		s.Error("render " + name + ": " + err.Error())
		return
	}
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Signals patches signals on the page.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Error sets the page's error signal.
func (s SSE) Error(msg string) { s.Signals(map[string]any{"error": msg}) }

// Success sets the page's success signal, shown as a toast.
func (s SSE) Success(msg string) { s.Signals(map[string]any{"success": msg}) }

// Signals are the values a Datastar page sends with each request, decoded
// from JSON. Accessors return the zero value for a missing key or a value
// of another type.
type Signals map[string]any

// ParseSignals decodes a signals object.
func ParseSignals(body []byte) (Signals, error) {
	var s Signals
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func signal[T any](s Signals, key string) T {
	v, _ := s[key].(T)
	return v
}

func (s Signals) String(key string) string { return signal[string](s, key) }
func (s Signals) Float(key string) float64 { return signal[float64](s, key) }
func (s Signals) Bool(key string) bool { return signal[bool](s, key) }

// Object returns a nested object, empty when missing.
func (s Signals) Object(key string) Signals {
	if m, ok := s[key].(map[string]any); ok {
		return Signals(m)
	}
	return Signals{}
}

// Floats returns a numeric array, skipping entries that are not numbers.
func (s Signals) Floats(key string) []float64 {
	arr, ok := s[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, v := range arr {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// SignalsInput takes the signals a page posts as the request body.
type SignalsInput struct {
	RawBody []byte
}

// MustParse decodes the body, failing with a 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	return mustParse(i.RawBody)
}

// QuerySignalsInput takes the signals of a GET, which Datastar sends
// JSON-encoded in the datastar query parameter.
type QuerySignalsInput struct {
	Datastar string `query:"datastar" doc:"Datastar signals as JSON"`
}

// MustParse decodes the parameter, failing with a 400. No parameter is no
// signals.
func (i *QuerySignalsInput) MustParse() (Signals, error) {
	if i.Datastar == "" {
		return Signals{}, nil
	}
	return mustParse([]byte(i.Datastar))
}

func mustParse(b []byte) (Signals, error) {
	s, err := ParseSignals(b)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return s, nil
}

// SelectOptionData is one <option> of a rendered select.
type SelectOptionData struct {
	Value    string
	Label    string
	Selected bool
}
