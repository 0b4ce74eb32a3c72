package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_ScanFormats(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  StringList
	}{
		{"json array", `["rome","food"]`, StringList{"rome", "food"}},
		{"json bytes", []byte(`["a"]`), StringList{"a"}},
		{"pg array", "{beach,sunset}", StringList{"beach", "sunset"}},
		{"pg array quoted", `{"New York","a\"b"}`, StringList{"New York", `a"b`}},
		{"empty pg array", "{}", StringList{}},
		{"null", nil, StringList{}},
		{"empty string", "", StringList{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			require.NoError(t, l.Scan(tt.input))
			assert.Equal(t, tt.want, l)
		})
	}
}

func TestStringList_ScanRejectsGarbage(t *testing.T) {
	var l StringList
	assert.Error(t, l.Scan("[not json"))
	assert.Error(t, l.Scan(12))
}

func TestStringList_ValueNil(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestBookingInfo_ScanDoubleEncoded(t *testing.T) {
	var b BookingInfo
	require.NoError(t, b.Scan(`"{\"price\":\"$20\",\"rating\":4.5}"`))
	assert.Equal(t, "$20", b.Price)
	assert.Equal(t, 4.5, b.Rating)

	var plain BookingInfo
	require.NoError(t, plain.Scan([]byte(`{"duration":"2h"}`)))
	assert.Equal(t, "2h", plain.Duration)
}
