// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import "strings"

// stripCLikeCommentsAndStrings removes // and /* */ comments plus quoted
// string/char literals from C-family source (Go, TypeScript, Java), so the
// per-language regexes in spec §4.3 don't false-positive inside them.
// Stripped spans are replaced with spaces to preserve line numbers.
func stripCLikeCommentsAndStrings(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	runes := []rune(src)
	n := len(runes)

	inLineComment := false
	inBlockComment := false
	inString := false
	inChar := false
	inRawString := false // Go backtick strings
	var quote rune

	for i := 0; i < n; i++ {
		c := runes[i]
		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
				b.WriteRune(c)
			} else {
				b.WriteRune(' ')
			}
		case inBlockComment:
			if c == '*' && i+1 < n && runes[i+1] == '/' {
				inBlockComment = false
				b.WriteString("  ")
				i++
			} else if c == '\n' {
				b.WriteRune(c)
			} else {
				b.WriteRune(' ')
			}
		case inRawString:
			if c == '`' {
				inRawString = false
			}
			if c == '\n' {
				b.WriteRune(c)
			} else {
				b.WriteRune(' ')
			}
		case inString || inChar:
			if c == '\\' && i+1 < n {
				b.WriteString("  ")
				i++
				continue
			}
			if c == quote {
				inString = false
				inChar = false
			}
			if c == '\n' {
				b.WriteRune(c)
			} else {
				b.WriteRune(' ')
			}
		default:
			if c == '/' && i+1 < n && runes[i+1] == '/' {
				inLineComment = true
				b.WriteString("  ")
				i++
				continue
			}
			if c == '/' && i+1 < n && runes[i+1] == '*' {
				inBlockComment = true
				b.WriteString("  ")
				i++
				continue
			}
			if c == '`' {
				inRawString = true
				b.WriteRune(' ')
				continue
			}
			if c == '"' {
				inString = true
				quote = c
				b.WriteRune(' ')
				continue
			}
			if c == '\'' {
				inChar = true
				quote = c
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c)
		}
	}
	return b.String()
}

// stripPythonCommentsAndStrings removes # comments and '/"/triple-quoted
// string literals from Python source, preserving line numbers.
func stripPythonCommentsAndStrings(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	runes := []rune(src)
	n := len(runes)

	inComment := false
	inString := false
	var quote rune
	triple := false

	for i := 0; i < n; i++ {
		c := runes[i]
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
				b.WriteRune(c)
			} else {
				b.WriteRune(' ')
			}
		case inString:
			if c == '\\' && i+1 < n {
				b.WriteString("  ")
				i++
				continue
			}
			if c == quote {
				if triple {
					if i+2 < n && runes[i+1] == quote && runes[i+2] == quote {
						inString = false
						triple = false
						b.WriteString("   ")
						i += 2
						continue
					}
				} else {
					inString = false
				}
			}
			if c == '\n' {
				b.WriteRune(c)
			} else {
				b.WriteRune(' ')
			}
		default:
			if c == '#' {
				inComment = true
				b.WriteRune(' ')
				continue
			}
			if c == '"' || c == '\'' {
				inString = true
				quote = c
				if i+2 < n && runes[i+1] == c && runes[i+2] == c {
					triple = true
					b.WriteString("   ")
					i += 2
					continue
				}
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c)
		}
	}
	return b.String()
}

// lineOf returns the 1-indexed line number of byte offset idx in src.
func lineOf(src string, idx int) int {
	if idx < 0 {
		return 0
	}
	if idx > len(src) {
		idx = len(src)
	}
	return 1 + strings.Count(src[:idx], "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
