package models

// Button is a reply option that sends Data back as a postback when pressed.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// CardField is one labelled line on a card.
type CardField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is a rich item summary with its own action buttons.
type Card struct {
	Title    string      `json:"title"`
	Notice   string      `json:"notice,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Fields   []CardField `json:"fields,omitempty"`
	Buttons  []Button    `json:"buttons,omitempty"`
}

// Message is an outbound payload built by the dialogue engine. Transport
// adapters decide how to lay it out.
type Message struct {
	Text    string   `json:"text,omitempty"`
	AltText string   `json:"alt_text,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
	Cards   []Card   `json:"cards,omitempty"`
}

// TextMessage builds a plain text message with optional quick replies.
func TextMessage(text string, buttons ...Button) Message {
	return Message{Text: text, Buttons: buttons}
}
