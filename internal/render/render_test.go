package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/herald/herald/internal/model"
)

func strPtr(s string) *string { return &s }

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "present and missing",
			template: "Hi {{first_name}} {{missing}}",
			vars:     map[string]string{"first_name": "Ann"},
			want:     "Hi Ann {{missing}}",
		},
		{
			name:     "empty value stays literal",
			template: "Call {{phone}}",
			vars:     map[string]string{"phone": ""},
			want:     "Call {{phone}}",
		},
		{
			name:     "repeated placeholder",
			template: "{{x}}-{{x}}",
			vars:     map[string]string{"x": "1"},
			want:     "1-1",
		},
		{
			name:     "keys with spaces",
			template: "Your city: {{Home City}}",
			vars:     map[string]string{"Home City": "Gdańsk"},
			want:     "Your city: Gdańsk",
		},
		{
			name:     "values are not expanded twice",
			template: "{{a}} {{b}}",
			vars:     map[string]string{"a": "{{b}}", "b": "B"},
			want:     "{{b}} B",
		},
		{
			name:     "no placeholders",
			template: "plain text",
			vars:     nil,
			want:     "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Render(tt.template, tt.vars))
		})
	}
}

func TestVariables_ReservedWin(t *testing.T) {
	r := &model.Recipient{
		FirstName: "Ann",
		LastName:  "Nowak",
		Email:     strPtr("ann@example.com"),
		Extra: map[string]string{
			"first_name": "Shadow",
			"city":       "Kraków",
		},
	}

	vars := Variables(r)

	require.Equal(t, "Ann", vars[VarFirstName])
	require.Equal(t, "Ann Nowak", vars[VarFullName])
	require.Equal(t, "ann@example.com", vars[VarEmail])
	require.Equal(t, "", vars[VarPhone])
	require.Equal(t, "Kraków", vars["city"])
}

func TestForRecipient(t *testing.T) {
	r := &model.Recipient{FirstName: "Jan", LastName: "Kowalski"}

	got := ForRecipient("Dear {{full_name}}, call {{phone}}", r)

	require.Equal(t, "Dear Jan Kowalski, call {{phone}}", got)
	require.Equal(t, got, ForRecipient("Dear {{full_name}}, call {{phone}}", r))
}
