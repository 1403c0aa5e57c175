package profile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/log"
)

type fakeClient struct {
	status *api.ProfileStatus
	err    error
	saved  []api.Profile
}

func (f *fakeClient) Profile(context.Context) (*api.ProfileStatus, error) { return f.status, f.err }

func (f *fakeClient) SaveProfile(_ context.Context, p api.Profile) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, p)
	return nil
}

func TestHasProfile(t *testing.T) {
	ctx := context.Background()
	assert.True(t, HasProfile(ctx, &fakeClient{status: &api.ProfileStatus{Exists: true}}, log.Nop()))
	assert.False(t, HasProfile(ctx, &fakeClient{status: &api.ProfileStatus{}}, log.Nop()))
	assert.True(t, HasProfile(ctx, &fakeClient{err: errors.New("unreachable")}, log.Nop()), "fails open")
}

func TestValidate(t *testing.T) {
	good := api.Profile{Name: "Sam", DOB: "1990-04-12", Location: "Leeds, UK"}
	require.NoError(t, Validate(good))

	tests := []struct {
		name  string
		p     api.Profile
		field string
	}{
		{"missing name", api.Profile{DOB: good.DOB, Location: good.Location}, "name"},
		{"long name", api.Profile{Name: strings.Repeat("a", 81), DOB: good.DOB, Location: good.Location}, "name"},
		{"bad dob", api.Profile{Name: "Sam", DOB: "12/04/1990", Location: good.Location}, "dob"},
		{"impossible dob", api.Profile{Name: "Sam", DOB: "1990-02-30", Location: good.Location}, "dob"},
		{"future dob", api.Profile{Name: "Sam", DOB: "2999-01-01", Location: good.Location}, "dob"},
		{"long location", api.Profile{Name: "Sam", DOB: good.DOB, Location: strings.Repeat("x", 121)}, "location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestSaveTrimsAndValidates(t *testing.T) {
	c := &fakeClient{}
	err := Save(context.Background(), c, api.Profile{Name: "  Sam ", DOB: " 1990-04-12", Location: "Leeds "})
	require.NoError(t, err)
	require.Len(t, c.saved, 1)
	assert.Equal(t, api.Profile{Name: "Sam", DOB: "1990-04-12", Location: "Leeds"}, c.saved[0])

	err = Save(context.Background(), c, api.Profile{Name: " "})
	assert.Error(t, err)
	assert.Len(t, c.saved, 1)
}
