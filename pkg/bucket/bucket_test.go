package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(buckets []Bucket) []string {
	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Name)
	}
	return out
}

func TestScopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr error
	}{
		{
			name:  "valid",
			scope: Scope{Endpoint: "https://a", Org: "org1"},
		},
		{
			name:    "missing endpoint",
			scope:   Scope{Org: "org1"},
			wantErr: ErrMissingEndpoint,
		},
		{
			name:    "missing org",
			scope:   Scope{Endpoint: "https://a"},
			wantErr: ErrMissingOrg,
		},
		{
			name:    "whitespace endpoint",
			scope:   Scope{Endpoint: "   ", Org: "org1"},
			wantErr: ErrMissingEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScopeCacheKey(t *testing.T) {
	s := Scope{Endpoint: "https://us-east.cloud.example.com", Org: "org1", Token: "secret"}
	assert.Equal(t, "https://us-east.cloud.example.com;;org1", s.CacheKey())

	// Token must not contribute to the key.
	s2 := s
	s2.Token = "rotated"
	assert.Equal(t, s.CacheKey(), s2.CacheKey())
}

func TestOrganizeGroupsAndSorts(t *testing.T) {
	in := []Bucket{
		{ID: "1", Name: "zeta", Type: TypeUser},
		{ID: "2", Name: "Alpha", Type: TypeSystem},
	}

	got := Organize(in)

	require.Len(t, got, 6)
	assert.Equal(t, []string{
		"zeta",
		"Alpha",
		"Air Sensor Data",
		"Coinbase bitcoin price",
		"NOAA National Buoy Data",
		"USGS Earthquakes",
	}, names(got))
}

func TestOrganizeCaseInsensitiveWithinGroups(t *testing.T) {
	in := []Bucket{
		{Name: "banana", Type: TypeUser},
		{Name: "Apple", Type: TypeUser},
		{Name: "cherry", Type: TypeUser},
		{Name: "_tasks", Type: TypeSystem},
		{Name: "_Monitoring", Type: TypeSystem},
	}

	got := Organize(in)

	assert.Equal(t, []string{"Apple", "banana", "cherry"}, names(got[:3]))
	assert.Equal(t, []string{"_Monitoring", "_tasks"}, names(got[3:5]))
}

func TestOrganizeNeverInterleavesGroups(t *testing.T) {
	// System names sorting before user names must still land after them.
	in := []Bucket{
		{Name: "zzz-user", Type: TypeUser},
		{Name: "aaa-system", Type: TypeSystem},
	}

	got := Organize(in)
	assert.Equal(t, "zzz-user", got[0].Name)
	assert.Equal(t, "aaa-system", got[1].Name)
}

func TestOrganizeEmptyPayloadStillHasSamples(t *testing.T) {
	got := Organize(nil)
	require.Len(t, got, 4)
	for _, b := range got {
		assert.Equal(t, TypeSample, b.Type)
	}
}

func TestOrganizeIgnoresServerSampleRecords(t *testing.T) {
	in := []Bucket{
		{ID: "bogus", Name: "Fake Sample", Type: TypeSample},
	}

	got := Organize(in)
	require.Len(t, got, 4)
	for _, b := range got {
		assert.NotEqual(t, "bogus", b.ID)
	}
}

func TestSamplesReturnsCopy(t *testing.T) {
	a := Samples()
	a[0].Name = "mutated"

	b := Samples()
	assert.Equal(t, "Air Sensor Data", b[0].Name)
}
