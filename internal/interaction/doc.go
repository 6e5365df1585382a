// Package interaction models the closed set of platform interaction callbacks and the
// replies the gateway sends back.
//
// Inbound bodies are decoded by Parse into a Request, a tagged variant keyed by the
// integer "type" field. Parse is total: it returns a usable Request or a
// *ValidationError describing the offending fields, never a half-populated value.
//
// # Variants
//
//	type 1  Ping                           -> Pong (type 1, no data)
//	type 2  ApplicationCommand             -> ChannelMessageWithSource (type 4)
//	type 3  MessageComponent               -> ChannelMessageWithSource (type 4)
//	type 4  ApplicationCommandAutocomplete -> ChannelMessageWithSource (type 4)
//	type 5  ModalSubmit                    -> ChannelMessageWithSource (type 4)
//
// Responder maps a Request to its Response. Command names are resolved through a
// ReplyTable; unknown names get the table's fallback text rather than an error, since
// the platform owns the list of registered commands and may lag behind this service.
package interaction
