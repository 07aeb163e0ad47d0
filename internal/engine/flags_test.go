// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCliArgs(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   []string
	}{
		{
			name:   "no params produce no flags",
			params: Params{},
			want:   nil,
		},
		{
			name:   "nil params produce no flags",
			params: nil,
			want:   nil,
		},
		{
			name:   "stream hints",
			params: Params{ParamExtension: ".pdf", ParamMIMEType: "application/pdf", ParamCharset: "utf-8"},
			want:   []string{"-x", ".pdf", "-m", "application/pdf", "-c", "utf-8"},
		},
		{
			name:   "document intelligence endpoint",
			params: Params{ParamDocIntelEndpoint: "https://example.cognitiveservices.azure.com/"},
			want:   []string{"-d", "-e", "https://example.cognitiveservices.azure.com/"},
		},
		{
			name:   "switches on",
			params: Params{ParamEnablePlugins: "true", ParamKeepDataURIs: "true"},
			want:   []string{"-p", "--keep-data-uris"},
		},
		{
			name:   "switches explicitly off emit nothing",
			params: Params{ParamEnablePlugins: "false", ParamKeepDataURIs: "false"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cliArgs(tt.params))
		})
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		params Params
		want   string
	}{
		{"hint wins over path", Input{Path: "/tmp/a.txt"}, Params{ParamExtension: "PDF"}, ".pdf"},
		{"mime hint", Input{Name: "stdin"}, Params{ParamMIMEType: "text/html; charset=utf-8"}, ".html"},
		{"unknown mime falls back to path", Input{Path: "/tmp/report.DOCX"}, Params{ParamMIMEType: "x/unknown"}, ".docx"},
		{"stream name", Input{Name: "upload.csv"}, nil, ".csv"},
		{"nothing known", Input{Name: "stdin"}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.in, tt.params))
		})
	}
}
