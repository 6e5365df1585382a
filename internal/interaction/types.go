package interaction

import "fmt"

// Type is the interaction discriminant sent by the platform.
type Type int

const (
	TypePing                           Type = 1
	TypeApplicationCommand             Type = 2
	TypeMessageComponent               Type = 3
	TypeApplicationCommandAutocomplete Type = 4
	TypeModalSubmit                    Type = 5
)

// Valid reports whether t is one of the accepted interaction types.
func (t Type) Valid() bool {
	return t >= TypePing && t <= TypeModalSubmit
}

func (t Type) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypeApplicationCommand:
		return "application_command"
	case TypeMessageComponent:
		return "message_component"
	case TypeApplicationCommandAutocomplete:
		return "application_command_autocomplete"
	case TypeModalSubmit:
		return "modal_submit"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// CallbackType is the discriminant of a reply.
type CallbackType int

const (
	CallbackPong                     CallbackType = 1
	CallbackChannelMessageWithSource CallbackType = 4
)

// User is the invoking account. GlobalName is the display name and may be null upstream.
type User struct {
	ID         string `json:"id" validate:"required"`
	Username   string `json:"username" validate:"required"`
	GlobalName string `json:"global_name"`
}

// Member wraps the user when the interaction came from a guild.
type Member struct {
	User *User `json:"user" validate:"required"`
}

// Data carries the invoked command or component name.
type Data struct {
	Name string `json:"name" validate:"required"`
}

// Request is a decoded, validated interaction.
// For TypePing, User, Member and Data are always nil.
type Request struct {
	Type   Type
	User   *User
	Member *Member
	Data   *Data
}

// IsPing reports whether the request is the platform's endpoint health check.
func (r Request) IsPing() bool {
	return r.Type == TypePing
}

// CallbackData is the message payload of a ChannelMessageWithSource reply.
type CallbackData struct {
	TTS     *bool  `json:"tts,omitempty"`
	Content string `json:"content"`
}

// Response is the reply body returned to the platform.
type Response struct {
	Type CallbackType  `json:"type"`
	Data *CallbackData `json:"data,omitempty"`
}

// Pong is the only valid reply to a Ping.
func Pong() Response {
	return Response{Type: CallbackPong}
}

// ChannelMessage builds a ChannelMessageWithSource reply with tts left unset.
func ChannelMessage(content string) Response {
	return Response{
		Type: CallbackChannelMessageWithSource,
		Data: &CallbackData{Content: content},
	}
}
