// Package uitools implements the display tools the assistant can call to
// put structured content on the user's screen while it speaks. Each call
// produces a ui_* envelope for the client and a confirmation payload for
// the model.
package uitools

import (
	"fmt"

	"github.com/navigo-ai/voicegate/pkg/gateway/live/protocol"
	"github.com/navigo-ai/voicegate/pkg/upstream"
)

type tool struct {
	decl upstream.ToolDecl
	run  func(args map[string]any) (protocol.ServerUI, string, error)
}

// Registry holds the available display tools keyed by name.
type Registry struct {
	tools map[string]tool
	order []string
}

// NewRegistry returns a registry with the standard display tools:
// display_content, display_card and display_list.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]tool)}
	r.register(tool{
		decl: upstream.ToolDecl{
			Name:        "display_content",
			Description: "Displays text content on the user's screen. Use for detailed information, explanations, or formatted text that complements what you are saying.",
			Params: []upstream.ParamDecl{
				{Name: "content", Description: "The main text content to display", Type: "string", Required: true},
				{Name: "title", Description: "Optional title for the content block", Type: "string"},
			},
		},
		run: runDisplayContent,
	})
	r.register(tool{
		decl: upstream.ToolDecl{
			Name:        "display_card",
			Description: "Displays a structured card with a title, main content, and optional footer. Ideal for itineraries, summaries, or highlighted information.",
			Params: []upstream.ParamDecl{
				{Name: "title", Description: "The card title", Type: "string", Required: true},
				{Name: "content", Description: "The main card content", Type: "string", Required: true},
				{Name: "footer", Description: "Optional footer text", Type: "string"},
			},
		},
		run: runDisplayCard,
	})
	r.register(tool{
		decl: upstream.ToolDecl{
			Name:        "display_list",
			Description: "Displays a formatted list of items, such as travel destinations, recommendations, or step-by-step instructions.",
			Params: []upstream.ParamDecl{
				{Name: "items", Description: "List of strings to display as list items", Type: "array", Required: true},
				{Name: "title", Description: "Optional title for the list", Type: "string"},
			},
		},
		run: runDisplayList,
	})
	return r
}

func (r *Registry) register(t tool) {
	r.tools[t.decl.Name] = t
	r.order = append(r.order, t.decl.Name)
}

// Declarations lists the tool declarations in registration order, for the
// upstream session config.
func (r *Registry) Declarations() []upstream.ToolDecl {
	decls := make([]upstream.ToolDecl, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].decl)
	}
	return decls
}

// Has reports whether name is a registered display tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute runs the named tool. It returns the envelope to push to the
// client and the response payload to send back to the model. Unknown names
// and bad arguments produce an error payload and no envelope.
func (r *Registry) Execute(name string, args map[string]any) (protocol.ServerUI, map[string]any, error) {
	t, ok := r.tools[name]
	if !ok {
		err := fmt.Errorf("unknown tool %q", name)
		return protocol.ServerUI{}, map[string]any{"error": err.Error()}, err
	}
	envelope, confirmation, err := t.run(args)
	if err != nil {
		return protocol.ServerUI{}, map[string]any{"error": err.Error()}, err
	}
	return envelope, map[string]any{"result": confirmation}, nil
}

func runDisplayContent(args map[string]any) (protocol.ServerUI, string, error) {
	content, ok := stringArg(args, "content")
	if !ok {
		return protocol.ServerUI{}, "", fmt.Errorf("display_content: content is required")
	}
	title := stringArgOr(args, "title", "Information")
	envelope := protocol.ServerUI{
		Type: "ui_content",
		Data: map[string]any{"title": title, "content": content},
	}
	return envelope, fmt.Sprintf("Content '%s' has been displayed to the user.", title), nil
}

func runDisplayCard(args map[string]any) (protocol.ServerUI, string, error) {
	title, ok := stringArg(args, "title")
	if !ok {
		return protocol.ServerUI{}, "", fmt.Errorf("display_card: title is required")
	}
	content, ok := stringArg(args, "content")
	if !ok {
		return protocol.ServerUI{}, "", fmt.Errorf("display_card: content is required")
	}
	data := map[string]any{"title": title, "content": content}
	if footer, ok := stringArg(args, "footer"); ok {
		data["footer"] = footer
	}
	envelope := protocol.ServerUI{Type: "ui_card", Data: data}
	return envelope, fmt.Sprintf("Card '%s' has been displayed to the user.", title), nil
}

func runDisplayList(args map[string]any) (protocol.ServerUI, string, error) {
	items, ok := stringsArg(args, "items")
	if !ok {
		return protocol.ServerUI{}, "", fmt.Errorf("display_list: items must be a list of strings")
	}
	title := stringArgOr(args, "title", "List")
	envelope := protocol.ServerUI{
		Type: "ui_list",
		Data: map[string]any{"title": title, "items": items},
	}
	return envelope, fmt.Sprintf("List '%s' with %d items has been displayed to the user.", title, len(items)), nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func stringArgOr(args map[string]any, key, fallback string) string {
	if s, ok := stringArg(args, key); ok {
		return s
	}
	return fallback
}

func stringsArg(args map[string]any, key string) ([]string, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
