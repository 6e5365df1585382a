package interaction

// CallerSource says where an interaction was invoked from.
type CallerSource string

const (
	SourceDM      CallerSource = "dm"
	SourceGuild   CallerSource = "guild"
	SourceUnknown CallerSource = "unknown"
)

// Caller is the identity extracted from a request, used only for logging.
type Caller struct {
	Source      CallerSource
	ID          string
	Username    string
	DisplayName string
}

// CallerOf resolves the invoking user. A top-level user (DM) wins over member.user (guild).
func CallerOf(req Request) Caller {
	switch {
	case req.User != nil:
		return callerFromUser(SourceDM, req.User)
	case req.Member != nil && req.Member.User != nil:
		return callerFromUser(SourceGuild, req.Member.User)
	default:
		return Caller{Source: SourceUnknown}
	}
}

func callerFromUser(source CallerSource, u *User) Caller {
	return Caller{
		Source:      source,
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.GlobalName,
	}
}

// LogArgs renders the caller as slog key/value pairs.
func (c Caller) LogArgs() []any {
	if c.Source == SourceUnknown {
		return []any{"caller_source", string(c.Source)}
	}
	return []any{
		"caller_source", string(c.Source),
		"caller_id", c.ID,
		"caller_username", c.Username,
		"caller_display_name", c.DisplayName,
	}
}
