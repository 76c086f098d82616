package main

import (
	"reflect"
	"testing"
)

func TestSplitRoles(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []string
	}{
		{"single role", "viewer", []string{"viewer"}},
		{"multiple roles", "viewer,operator", []string{"viewer", "operator"}},
		{"spaces around roles", " viewer , operator ", []string{"viewer", "operator"}},
		{"trailing comma", "admin,", []string{"admin"}},
		{"blank entries dropped", "viewer,,operator", []string{"viewer", "operator"}},
		{"empty input", "", nil},
		{"only separators", " , , ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitRoles(tt.csv)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitRoles(%q) = %v, want %v", tt.csv, got, tt.want)
			}
		})
	}
}
