package handlers

import (
	"encoding/json"
	"testing"
)

func TestOptionalInt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *int64
		wantErr bool
	}{
		{name: "number", input: `5`, want: ptr(5)},
		{name: "numeric string", input: `"60"`, want: ptr(60)},
		{name: "integral float", input: `3.0`, want: ptr(3)},
		{name: "negative", input: `-1`, want: ptr(-1)},
		{name: "zero is absent", input: `0`, want: nil},
		{name: "null", input: `null`, want: nil},
		{name: "empty string", input: `""`, want: nil},
		{name: "fraction", input: `1.5`, wantErr: true},
		{name: "word", input: `"soon"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				V optionalInt `json:"v"`
			}
			err := json.Unmarshal([]byte(`{"v":`+tt.input+`}`), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch {
			case tt.want == nil && got.V.v != nil:
				t.Errorf("value = %d, want absent", *got.V.v)
			case tt.want != nil && (got.V.v == nil || *got.V.v != *tt.want):
				t.Errorf("value = %v, want %d", got.V.v, *tt.want)
			}
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "example.org", want: "http://example.org", wantOK: true},
		{input: "  https://example.org/a?b=c ", want: "https://example.org/a?b=c", wantOK: true},
		{input: "HTTP://Example.org", want: "http://Example.org", wantOK: true},
		{input: "javascript:alert(1)", want: "http://javascript:alert(1)", wantOK: false},
		{input: "http://", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := redirectTarget(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("redirectTarget(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("redirectTarget(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func ptr(v int64) *int64 { return &v }
