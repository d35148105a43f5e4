// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// DateLayout renders as yyyy/MM/dd hh:mm:ss on a 24-hour clock.
const DateLayout = "2006/01/02 15:04:05"

// SeparatorGap is the silence after which a time separator is shown.
const SeparatorGap = 5 * time.Minute

// FormatDate formats t in local time. The zero time formats as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DateLayout)
}

// NeedsSeparator reports whether two consecutive messages are at least
// SeparatorGap apart, in either order. Zero times never need one.
func NeedsSeparator(prev, cur time.Time) bool {
	if prev.IsZero() || cur.IsZero() {
		return false
	}
	d := cur.Sub(prev)
	if d < 0 {
		d = -d
	}
	return d >= SeparatorGap
}
