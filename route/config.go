/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package route

import (
	"github.com/go-playground/validator/v10"
)

// FieldMatchConfig declares one header or form-field constraint a route
// requires before its target applies.
type FieldMatchConfig struct {
	Name    string `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`
	Pattern string `mapstructure:"pattern" json:"pattern" yaml:"pattern" toml:"pattern" validate:"required"`
	Not     bool   `mapstructure:"not" json:"not" yaml:"not" toml:"not"`
}

// ConditionConfig declares one named, previously-registered Condition a
// route requires (or requires to fail, when Not is true).
type ConditionConfig struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`
	Not  bool   `mapstructure:"not" json:"not" yaml:"not" toml:"not"`
}

// RouteConfig is the declarative, struct-tag-validated form of a Route, the
// shape a host's route table is typically loaded from (file/flag/env
// config) rather than built up with imperative Set* calls.
//
// Exactly one of HandlerName, RedirectStatus/RedirectDest, or RerouteDest
// selects the route's target, the way original_source/src/route.c's
// target union admits exactly one of accept/close/redirect/route per
// route.
type RouteConfig struct {
	Name    string   `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`
	Pattern string   `mapstructure:"pattern" json:"pattern" yaml:"pattern" toml:"pattern" validate:"required"`
	Methods []string `mapstructure:"methods" json:"methods" yaml:"methods" toml:"methods" validate:"omitempty,dive,required"`

	HeaderMatch []FieldMatchConfig `mapstructure:"headerMatch" json:"headerMatch" yaml:"headerMatch" toml:"headerMatch" validate:"omitempty,dive"`
	FieldMatch  []FieldMatchConfig `mapstructure:"fieldMatch" json:"fieldMatch" yaml:"fieldMatch" toml:"fieldMatch" validate:"omitempty,dive"`
	Conditions  []ConditionConfig  `mapstructure:"conditions" json:"conditions" yaml:"conditions" toml:"conditions" validate:"omitempty,dive"`

	HandlerName string `mapstructure:"handlerName" json:"handlerName" yaml:"handlerName" toml:"handlerName" validate:"required_without_all=RedirectStatus RerouteDest"`

	RedirectStatus int    `mapstructure:"redirectStatus" json:"redirectStatus" yaml:"redirectStatus" toml:"redirectStatus" validate:"omitempty,min=300,max=399"`
	RedirectDest   string `mapstructure:"redirectDest" json:"redirectDest" yaml:"redirectDest" toml:"redirectDest" validate:"required_with=RedirectStatus"`

	RerouteDest string `mapstructure:"rerouteDest" json:"rerouteDest" yaml:"rerouteDest" toml:"rerouteDest"`
}

// NewFromConfig validates cfg and builds the Route it describes.
func NewFromConfig(cfg RouteConfig) (*Route, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	rt := New(cfg.Name)
	if err := rt.SetPattern(cfg.Pattern); err != nil {
		return nil, err
	}
	if len(cfg.Methods) > 0 {
		rt.SetMethods(cfg.Methods...)
	}
	for _, h := range cfg.HeaderMatch {
		if err := rt.AddHeaderMatch(h.Name, h.Pattern, h.Not); err != nil {
			return nil, err
		}
	}
	for _, f := range cfg.FieldMatch {
		if err := rt.AddFieldMatch(f.Name, f.Pattern, f.Not); err != nil {
			return nil, err
		}
	}
	for _, c := range cfg.Conditions {
		rt.AddCondition(c.Name, c.Not)
	}

	switch {
	case cfg.RerouteDest != "":
		rt.SetReroute(cfg.RerouteDest)
	case cfg.RedirectStatus != 0:
		rt.SetRedirect(cfg.RedirectStatus, cfg.RedirectDest)
	default:
		rt.HandlerName = cfg.HandlerName
	}

	return rt, nil
}

func validateConfig(cfg RouteConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return ErrorInvalidConfig.Error(err)
	}
	return nil
}
