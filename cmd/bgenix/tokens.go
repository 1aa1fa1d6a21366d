// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"strings"
)

// expandFileTokens implements spec §6: "If any -incl-rsids/-excl-rsids/
// -incl-range/-excl-range argument names a readable file, its whitespace-
// separated tokens replace that argument." Arguments that do not name a
// readable file pass through unchanged.
func expandFileTokens(raw []string) []string {
	var out []string
	for _, arg := range raw {
		data, err := os.ReadFile(arg)
		if err != nil {
			out = append(out, arg)
			continue
		}
		out = append(out, strings.Fields(string(data))...)
	}
	return out
}
