package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedu/go-auth"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		raw    string
		region string
		want   string
	}{
		{raw: "0912345678", region: "VN", want: "+84912345678"},
		{raw: "0912 345 678", region: "", want: "+84912345678"},
		{raw: "+84 912 345 678", region: "US", want: "+84912345678"},
		{raw: " 0987654321 ", region: "vn", want: "+84987654321"},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := auth.NormalizePhoneNumber(tc.raw, tc.region)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhoneNumber_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-phone", "+84 1"} {
		_, err := auth.NormalizePhoneNumber(raw, auth.DefaultPhoneRegion)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPhoneNumber), raw)
	}
}
