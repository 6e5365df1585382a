package interaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType Type
	}{
		{name: "ping", body: `{"type":1}`, wantType: TypePing},
		{name: "application command", body: `{"type":2,"data":{"name":"카페"}}`, wantType: TypeApplicationCommand},
		{name: "message component", body: `{"type":3,"data":{"name":"btn"}}`, wantType: TypeMessageComponent},
		{name: "autocomplete", body: `{"type":4,"data":{"name":"bmsinfo"}}`, wantType: TypeApplicationCommandAutocomplete},
		{name: "modal submit", body: `{"type":5,"data":{"name":"form"}}`, wantType: TypeModalSubmit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, req.Type)
			if tt.wantType != TypePing {
				require.NotNil(t, req.Data)
				assert.NotEmpty(t, req.Data.Name)
			}
		})
	}
}

func TestParse_PingIgnoresOtherFields(t *testing.T) {
	req, err := Parse([]byte(`{"type":1,"data":{"bogus":true},"user":{"id":7},"extra":"x"}`))
	require.NoError(t, err)
	assert.True(t, req.IsPing())
	assert.Nil(t, req.Data)
	assert.Nil(t, req.User)
	assert.Nil(t, req.Member)
}

func TestParse_CallerFields(t *testing.T) {
	body := `{"type":2,"member":{"user":{"id":"42","username":"remi","global_name":"Remi"}},"data":{"name":"bmsinfo"}}`
	req, err := Parse([]byte(body))
	require.NoError(t, err)
	require.NotNil(t, req.Member)
	assert.Nil(t, req.User)
	assert.Equal(t, "42", req.Member.User.ID)
	assert.Equal(t, "Remi", req.Member.User.GlobalName)

	// global_name may be null upstream
	req, err = Parse([]byte(`{"type":2,"user":{"id":"1","username":"a","global_name":null},"data":{"name":"x"}}`))
	require.NoError(t, err)
	require.NotNil(t, req.User)
	assert.Equal(t, "", req.User.GlobalName)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "missing type", body: `{"data":{"name":"x"}}`, wantField: "type"},
		{name: "unknown type", body: `{"type":9}`, wantField: "type"},
		{name: "zero type", body: `{"type":0}`, wantField: "type"},
		{name: "type wrong kind", body: `{"type":"ping"}`, wantField: "type"},
		{name: "missing data", body: `{"type":2}`, wantField: "data"},
		{name: "missing data name", body: `{"type":2,"data":{}}`, wantField: "data.name"},
		{name: "data name wrong kind", body: `{"type":2,"data":{"name":5}}`, wantField: "data.name"},
		{name: "user without id", body: `{"type":2,"user":{"username":"a"},"data":{"name":"x"}}`, wantField: "user.id"},
		{name: "member without user", body: `{"type":3,"member":{},"data":{"name":"x"}}`, wantField: "member.user"},
		{name: "top-level array", body: `[1,2]`, wantField: "body"},
		{name: "null body", body: `null`, wantField: "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want *ValidationError, got %T: %v", err, err)
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			assert.NotEmpty(t, verr.Fields[0].Message)
		})
	}
}

func TestParse_UnknownTypeMessage(t *testing.T) {
	for _, body := range []string{`{"type":0}`, `{"type":6}`, `{"type":-1}`} {
		_, err := Parse([]byte(body))

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "body %s: got %v", body, err)
		assert.Equal(t, []FieldError{{Field: "type", Message: "unknown interaction type, want 1-5"}}, verr.Fields)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, body := range []string{``, `{`, `not json`, `{"type":1,}`} {
		_, err := Parse([]byte(body))
		require.Error(t, err, "body %q", body)
		assert.True(t, errors.Is(err, ErrMalformed), "body %q: got %v", body, err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "type", Message: "field required"},
		{Field: "data", Message: "field required"},
	}}
	assert.Equal(t, "invalid interaction: type: field required; data: field required", err.Error())
}
