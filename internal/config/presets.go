package config

import (
	"fmt"
	"sort"
	"strings"
)

const DefaultPreset = "default"

const (
	PlacementAuto     = "auto"
	PlacementFraction = "fraction"
	PlacementSplit    = "split"
	PlacementCenter   = "center"
)

// Preset is a named caption look.
type Preset struct {
	FontSize     int
	TextColor    string
	Outline      bool
	OutlineColor string
}

var presets = map[string]Preset{
	"default":             {FontSize: 36, TextColor: "FFFFFF", Outline: true, OutlineColor: "000000"},
	"large_white":         {FontSize: 36, TextColor: "FFFFFF", Outline: true, OutlineColor: "000000"},
	"red_no_outline":      {FontSize: 30, TextColor: "FF0000"},
	"tiktok_style":        {FontSize: 42, TextColor: "FFFFFF", Outline: true, OutlineColor: "000000"},
	"blue_white_outline":  {FontSize: 28, TextColor: "0000FF", Outline: true, OutlineColor: "FFFFFF"},
	"green_black_outline": {FontSize: 32, TextColor: "00FF00", Outline: true, OutlineColor: "000000"},
	"pink_bold":           {FontSize: 38, TextColor: "FF00FF", Outline: true, OutlineColor: "000000"},
	"focus_style":         {FontSize: 42, TextColor: "FFFFFF", Outline: true, OutlineColor: "000000"},
}

// Presets returns the preset names in a stable order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// WithPreset returns a copy of c with the named caption preset applied.
func (c Config) WithPreset(name string) (Config, error) {
	p, ok := LookupPreset(name)
	if !ok {
		return c, fmt.Errorf("unknown caption preset %q", name)
	}
	c.Captions.Preset = strings.ToLower(strings.TrimSpace(name))
	c.Captions.FontSize = p.FontSize
	c.Captions.PrimaryColor = p.TextColor
	c.Captions.Outline = p.Outline
	c.Captions.OutlineColor = p.OutlineColor
	return c, nil
}
