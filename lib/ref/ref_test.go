// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseUserID(t *testing.T) {
	t.Run("valid snowflake", func(t *testing.T) {
		id, err := ParseUserID("123456789012345678")
		if err != nil {
			t.Fatalf("ParseUserID failed: %v", err)
		}
		if id.String() != "123456789012345678" {
			t.Errorf("String() = %q, want %q", id.String(), "123456789012345678")
		}
		if id.IsZero() {
			t.Error("parsed ID reports IsZero")
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		if _, err := ParseUserID(""); err == nil {
			t.Error("empty input accepted")
		}
	})

	t.Run("rejects non-digits", func(t *testing.T) {
		if _, err := ParseUserID("12ab34"); err == nil {
			t.Error("non-digit input accepted")
		}
	})

	t.Run("rejects overlong", func(t *testing.T) {
		if _, err := ParseUserID("123456789012345678901"); err == nil {
			t.Error("21-digit input accepted")
		}
	})
}

func TestEveryoneRole(t *testing.T) {
	guild := MustParseGuildID("99887766")
	role := guild.EveryoneRole()
	if role.String() != "99887766" {
		t.Errorf("EveryoneRole() = %q, want the guild snowflake", role.String())
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	cases := []string{"user:123", "role:456"}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			subject, err := ParseSubject(raw)
			if err != nil {
				t.Fatalf("ParseSubject(%q) failed: %v", raw, err)
			}
			if subject.String() != raw {
				t.Errorf("String() = %q, want %q", subject.String(), raw)
			}

			data, err := json.Marshal(subject)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			var back Subject
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if back != subject {
				t.Errorf("round trip changed subject: %v != %v", back, subject)
			}
		})
	}
}

func TestSubjectRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "123", "guild:123", "user:", "user:abc"} {
		if _, err := ParseSubject(raw); err == nil {
			t.Errorf("ParseSubject(%q) accepted malformed input", raw)
		}
	}
}

func TestSubjectAccessors(t *testing.T) {
	user := MustParseUserID("42")
	subject := UserSubject(user)
	if !subject.IsUser() || subject.IsRole() {
		t.Error("user subject misreports kind")
	}
	if subject.UserID() != user {
		t.Errorf("UserID() = %v, want %v", subject.UserID(), user)
	}
	if !subject.RoleID().IsZero() {
		t.Error("RoleID() of a user subject is non-zero")
	}
}

func TestZeroMarshalBehavior(t *testing.T) {
	// Required identities refuse to marshal when zero; optional ones
	// (CategoryID, ThreadID) marshal to the empty string instead.
	if _, err := (UserID{}).MarshalText(); err == nil {
		t.Error("zero UserID marshalled")
	}
	if _, err := (ChannelID{}).MarshalText(); err == nil {
		t.Error("zero ChannelID marshalled")
	}
	data, err := (ThreadID{}).MarshalText()
	if err != nil {
		t.Fatalf("zero ThreadID refused to marshal: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("zero ThreadID marshalled to %q, want empty", data)
	}
	var thread ThreadID
	if err := thread.UnmarshalText(nil); err != nil {
		t.Fatalf("empty ThreadID text rejected: %v", err)
	}
	if !thread.IsZero() {
		t.Error("empty ThreadID text produced non-zero value")
	}
}
