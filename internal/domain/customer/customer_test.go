package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomer_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Customer
		wantErr error
	}{
		{name: "client", c: Customer{Name: "Alice", Mail: "alice@example.com", Role: RoleClient}},
		{name: "admin", c: Customer{Name: "Root", Mail: "root@example.com", Role: RoleAdmin}},
		{name: "empty name", c: Customer{Mail: "alice@example.com", Role: RoleClient}, wantErr: ErrEmptyName},
		{name: "empty mail", c: Customer{Name: "Alice", Role: RoleClient}, wantErr: ErrInvalidMail},
		{name: "no domain", c: Customer{Name: "Alice", Mail: "alice", Role: RoleClient}, wantErr: ErrInvalidMail},
		{name: "display name", c: Customer{Name: "Alice", Mail: "Alice <alice@example.com>", Role: RoleClient}, wantErr: ErrInvalidMail},
		{name: "unknown role", c: Customer{Name: "Alice", Mail: "alice@example.com", Role: "owner"}, wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCustomer_Apply(t *testing.T) {
	c := Customer{ID: "c1", Name: "Alice", Mail: "alice@example.com", Role: RoleClient}

	mail := "liddell@example.com"
	c.Apply(Patch{Mail: &mail})
	assert.Equal(t, Customer{ID: "c1", Name: "Alice", Mail: "liddell@example.com", Role: RoleClient}, c)

	c.Apply(Patch{})
	assert.Equal(t, "Alice", c.Name)
}
