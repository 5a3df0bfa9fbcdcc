package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ascii lowercased", in: "U8", want: "u8"},
		{name: "full-width collapsed", in: "Ｕ８", want: "u8"},
		{name: "mixed label", in: "Ｕ８男子单打", want: "u8男子单打"},
		{name: "untouched cjk", in: "小学甲组", want: "小学甲组"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestContainsFold(t *testing.T) {
	require.True(t, ContainsFold("Ｕ８男子单打", "u8"))
	require.True(t, ContainsFold("U9女子双打", "Ｕ９"))
	require.True(t, ContainsFold("anything", ""))
	require.False(t, ContainsFold("U10男单", "U8"))
}

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "ascii commas", in: "U8,U9", want: []string{"U8", "U9"}},
		{name: "full-width commas", in: "男单，女单", want: []string{"男单", "女单"}},
		{name: "mixed with blanks", in: " U8 ,, 小学 ，", want: []string{"U8", "小学"}},
		{name: "empty input", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SplitKeywords(tt.in))
		})
	}
}
