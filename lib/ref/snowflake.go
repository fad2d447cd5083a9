// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxSnowflakeLen bounds the accepted ID length. Snowflakes are 64-bit
// integers; twenty decimal digits covers the full range.
const maxSnowflakeLen = 20

// validateSnowflake checks that raw is a plausible platform snowflake:
// non-empty, decimal digits only, and within 64-bit length. The kind
// string names the identity type in error messages.
func validateSnowflake(kind, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", kind)
	}
	if len(raw) > maxSnowflakeLen {
		return fmt.Errorf("%s %q exceeds %d digits", kind, raw, maxSnowflakeLen)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return fmt.Errorf("%s %q contains non-digit character %q", kind, raw, raw[i])
		}
	}
	return nil
}
