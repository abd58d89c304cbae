// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// LocalInputs matches FFmpeg inputs that read local resources. Stream URLs
// come from a third party, so they are blocked for inputs by default.
var LocalInputs = []string{
	`^(?i)(file|pipe|fd|concat|concatf|subfile|data|cache|crypto):`,
	`^/`,
	`^\.`,
}

// Validator validates if a string is eligible as input or output for FFmpeg
type Validator interface {
	IsValid(text string) bool
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator creates a new Validator. Empty expressions are ignored.
// Block expressions win over allow expressions; with no allow expressions
// everything not blocked is valid.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}

	var err error
	if v.allow, err = compileAll("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compileAll("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

// NewInputValidator is NewValidator with LocalInputs always blocked
func NewInputValidator(allow, block []string) (Validator, error) {
	return NewValidator(allow, append(append([]string(nil), LocalInputs...), block...))
}

func compileAll(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *validator) IsValid(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, e := range v.block {
		if e.MatchString(text) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(text) {
			return true
		}
	}
	return false
}
