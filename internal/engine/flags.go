// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

// flagRule turns one parameter into markitdown command-line flags.
type flagRule struct {
	param string
	flags func(value string) []string
}

func valueFlag(flag string) func(string) []string {
	return func(v string) []string { return []string{flag, v} }
}

func switchFlag(flags ...string) func(string) []string {
	return func(v string) []string {
		if v != "true" {
			return nil
		}
		return flags
	}
}

// flagTable maps parameters to markitdown CLI flags, in emission order.
var flagTable = []flagRule{
	{ParamExtension, valueFlag("-x")},
	{ParamMIMEType, valueFlag("-m")},
	{ParamCharset, valueFlag("-c")},
	{ParamDocIntelEndpoint, func(v string) []string { return []string{"-d", "-e", v} }},
	{ParamEnablePlugins, switchFlag("-p")},
	{ParamKeepDataURIs, switchFlag("--keep-data-uris")},
}

// cliArgs returns the markitdown flags for p. Missing parameters produce no
// flags, so markitdown keeps its own defaults.
func cliArgs(p Params) []string {
	var args []string
	for _, rule := range flagTable {
		v, ok := p.Get(rule.param)
		if !ok {
			continue
		}
		args = append(args, rule.flags(v)...)
	}
	return args
}
