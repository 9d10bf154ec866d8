// Package agent speaks the action-group envelope used by hosted agents: it
// pulls tool parameters out of the request event and wraps results in the
// response envelope with the body as a JSON string.
package agent

import (
	"fmt"

	"github.com/bytedance/sonic"

	"medid-server-go/internal/platform/errors"
)

const (
	MessageVersion = "1.0"
	contentType    = "application/json"
)

// Parameter is one name/value pair from a properties or parameters list.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Event is a decoded request envelope.
type Event struct {
	ActionGroup string
	APIPath     string
	HTTPMethod  string
	root        map[string]any
}

// ParseEvent decodes a raw request envelope.
func ParseEvent(data []byte) (*Event, error) {
	var root map[string]any
	if err := sonic.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(errors.KindValidation, "agent.parse", "request is not a valid JSON object", err)
	}
	return NewEvent(root), nil
}

func NewEvent(root map[string]any) *Event {
	if root == nil {
		root = map[string]any{}
	}
	return &Event{
		ActionGroup: str(root["actionGroup"]),
		APIPath:     str(root["apiPath"]),
		HTTPMethod:  str(root["httpMethod"]),
		root:        root,
	}
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func paramList(v any) []Parameter {
	items, _ := v.([]any)
	out := make([]Parameter, 0, len(items))
	for _, item := range items {
		m := object(item)
		if m == nil {
			continue
		}
		out = append(out, Parameter{Name: str(m["name"]), Type: str(m["type"]), Value: m["value"]})
	}
	return out
}

// Properties returns input.RequestBody.content["application/json"].properties.
func (e *Event) Properties() []Parameter {
	body := object(object(e.root["input"])["RequestBody"])
	content := object(object(body["content"])[contentType])
	return paramList(content["properties"])
}

// Parameters returns the top-level parameters list.
func (e *Event) Parameters() []Parameter {
	return paramList(e.root["parameters"])
}

// source is one place a parameter may be carried, in lookup order.
type source func(name string) (any, bool)

func fromList(list []Parameter) source {
	return func(name string) (any, bool) {
		var (
			v     any
			found bool
		)
		// later duplicates win
		for _, p := range list {
			if p.Name == name {
				v, found = p.Value, true
			}
		}
		return v, found
	}
}

func fromObject(m map[string]any) source {
	return func(name string) (any, bool) {
		v, ok := m[name]
		return v, ok && v != nil
	}
}

func (e *Event) sources() []source {
	return []source{
		fromList(e.Properties()),
		fromList(e.Parameters()),
		fromObject(object(e.root["requestBody"])),
		fromObject(e.root),
		fromObject(object(e.root["input"])),
	}
}

// Param returns the first value named name across every supported layout.
func (e *Event) Param(name string) (any, bool) {
	for _, src := range e.sources() {
		if v, ok := src(name); ok {
			return v, true
		}
	}
	return nil, false
}

// AnalysisParams extracts image_data and prompt. The first layout carrying a
// non-empty image wins; a prompt seen in any layout up to and including that
// one overrides defaultPrompt.
func (e *Event) AnalysisParams(defaultPrompt string) (imageData, prompt string) {
	prompt = defaultPrompt
	for _, src := range e.sources() {
		if v, ok := src("prompt"); ok {
			if p := str(v); p != "" {
				prompt = p
			}
		}
		if v, ok := src("image_data"); ok {
			if img := str(v); img != "" {
				return img, prompt
			}
		}
	}
	return "", prompt
}

// Defaults fill envelope fields the request event left empty.
type Defaults struct {
	ActionGroup string
	APIPath     string
	HTTPMethod  string
}

type Body struct {
	Body string `json:"body"`
}

type ResponsePayload struct {
	ActionGroup    string          `json:"actionGroup"`
	APIPath        string          `json:"apiPath"`
	HTTPMethod     string          `json:"httpMethod"`
	HTTPStatusCode int             `json:"httpStatusCode"`
	ResponseBody   map[string]Body `json:"responseBody"`
}

// Response is the envelope returned to the agent.
type Response struct {
	MessageVersion string          `json:"messageVersion"`
	Response       ResponsePayload `json:"response"`
}

// Respond wraps body, serialised to a JSON string, in the response envelope.
func (e *Event) Respond(status int, body any, d Defaults) (*Response, error) {
	encoded, err := sonic.MarshalString(body)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "agent.respond", "failed to encode response body", err)
	}
	pick := func(v, fallback string) string {
		if v != "" {
			return v
		}
		return fallback
	}
	return &Response{
		MessageVersion: MessageVersion,
		Response: ResponsePayload{
			ActionGroup:    pick(e.ActionGroup, d.ActionGroup),
			APIPath:        pick(e.APIPath, d.APIPath),
			HTTPMethod:     pick(e.HTTPMethod, d.HTTPMethod),
			HTTPStatusCode: status,
			ResponseBody:   map[string]Body{contentType: {Body: encoded}},
		},
	}, nil
}

// DecodeBody unpacks the JSON string body of a response into v.
func (r *Response) DecodeBody(v any) error {
	return sonic.UnmarshalString(r.Response.ResponseBody[contentType].Body, v)
}
