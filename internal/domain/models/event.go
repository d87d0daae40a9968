package models

import (
	"net/url"
	"strings"
)

// ActionPrefix marks a structured top-level action command, e.g. "action=add".
const ActionPrefix = "action="

// Event is one inbound chat event, already detached from the gateway payload.
type Event struct {
	UserID      string
	ProfileName string
	MessageID   string
	Text        string
	Postback    string
	ImageRef    string
}

// IsPostback reports whether the event carries a structured command.
func (e Event) IsPostback() bool {
	return e.Postback != ""
}

// Input returns the raw user input: the postback data or the typed text.
func (e Event) Input() string {
	if e.IsPostback() {
		return e.Postback
	}
	return e.Text
}

// Postback is a parsed flat key/value command such as
// "stock_select&action=inbound&key=T01001".
type Postback struct {
	Raw    string
	Values url.Values
}

// ParsePostback decodes postback data. Malformed escapes keep the raw value.
func ParsePostback(data string) Postback {
	values := url.Values{}
	for _, part := range strings.Split(data, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		values.Add(key, value)
	}
	return Postback{Raw: data, Values: values}
}

// Has reports whether key is present, even with an empty value.
func (p Postback) Has(key string) bool {
	_, ok := p.Values[key]
	return ok
}

// Get returns the first value for key.
func (p Postback) Get(key string) string {
	return p.Values.Get(key)
}

// IsAction reports whether the postback is a top-level action command.
func (p Postback) IsAction() bool {
	return strings.HasPrefix(p.Raw, ActionPrefix)
}

// Action returns the action name of a top-level action command.
func (p Postback) Action() string {
	if !p.IsAction() {
		return ""
	}
	return p.Get("action")
}

// Flow returns the flow named by the leading token of the postback.
func (p Postback) Flow() Flow {
	head, _, _ := strings.Cut(p.Raw, "_")
	return Flow(head)
}
