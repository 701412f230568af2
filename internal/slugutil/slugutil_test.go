package slugutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Đačka užina", "djacka-uzina"},
		{"Čudo od šume i žita", "cudo-od-sume-i-zita"},
		{"Ćevapi s lukom", "cevapi-s-lukom"},
		{"  Hello,   World!  ", "hello-world"},
		{"Već viđeno — opet", "vec-vidjeno-opet"},
		{"100% domaće", "100-domace"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Make(tc.in), "input %q", tc.in)
	}
}

func TestUnique(t *testing.T) {
	existing := map[string]bool{
		"base":   true,
		"base-1": true,
	}
	taken := func(s string) (bool, error) { return existing[s], nil }

	got, err := Unique("base", taken)
	require.NoError(t, err)
	assert.Equal(t, "base-2", got)

	got, err = Unique("fresh", taken)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}
