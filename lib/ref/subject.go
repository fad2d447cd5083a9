// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// SubjectKind distinguishes the two identity kinds an access policy
// entry can target.
type SubjectKind string

const (
	// SubjectUser targets a single user.
	SubjectUser SubjectKind = "user"
	// SubjectRole targets every holder of a role.
	SubjectRole SubjectKind = "role"
)

// Subject is a policy target: either a user or a role. Allow-list and
// deny-list entries, permission overwrites, and policy commands all
// speak in Subjects.
//
// The canonical string form is "user:123456" or "role:123456". Subject
// is comparable, so it can key maps directly.
type Subject struct {
	kind SubjectKind
	id   string
}

// UserSubject wraps a UserID as a policy subject.
func UserSubject(user UserID) Subject {
	return Subject{kind: SubjectUser, id: user.id}
}

// RoleSubject wraps a RoleID as a policy subject.
func RoleSubject(role RoleID) Subject {
	return Subject{kind: SubjectRole, id: role.id}
}

// ParseSubject parses the canonical "kind:id" form.
func ParseSubject(raw string) (Subject, error) {
	kind, id, found := strings.Cut(raw, ":")
	if !found {
		return Subject{}, fmt.Errorf("subject %q is not in kind:id form", raw)
	}
	switch SubjectKind(kind) {
	case SubjectUser:
		user, err := ParseUserID(id)
		if err != nil {
			return Subject{}, fmt.Errorf("subject %q: %w", raw, err)
		}
		return UserSubject(user), nil
	case SubjectRole:
		role, err := ParseRoleID(id)
		if err != nil {
			return Subject{}, fmt.Errorf("subject %q: %w", raw, err)
		}
		return RoleSubject(role), nil
	default:
		return Subject{}, fmt.Errorf("subject %q has unknown kind %q", raw, kind)
	}
}

// MustParseSubject is ParseSubject that panics on invalid input.
func MustParseSubject(raw string) Subject {
	subject, err := ParseSubject(raw)
	if err != nil {
		panic(err)
	}
	return subject
}

// Kind returns the subject kind (user or role).
func (s Subject) Kind() SubjectKind { return s.kind }

// IsUser reports whether the subject targets a single user.
func (s Subject) IsUser() bool { return s.kind == SubjectUser }

// IsRole reports whether the subject targets a role.
func (s Subject) IsRole() bool { return s.kind == SubjectRole }

// UserID returns the wrapped user identity. Zero when the subject is a
// role.
func (s Subject) UserID() UserID {
	if s.kind != SubjectUser {
		return UserID{}
	}
	return UserID{id: s.id}
}

// RoleID returns the wrapped role identity. Zero when the subject is a
// user.
func (s Subject) RoleID() RoleID {
	if s.kind != SubjectRole {
		return RoleID{}
	}
	return RoleID{id: s.id}
}

// IsZero reports whether the Subject is the zero value.
func (s Subject) IsZero() bool { return s.id == "" }

// String returns the canonical "kind:id" form.
func (s Subject) String() string {
	if s.id == "" {
		return ""
	}
	return string(s.kind) + ":" + s.id
}

// MarshalText implements encoding.TextMarshaler.
func (s Subject) MarshalText() ([]byte, error) {
	if s.id == "" {
		return nil, fmt.Errorf("cannot marshal zero Subject")
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Subject) UnmarshalText(data []byte) error {
	parsed, err := ParseSubject(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal Subject: %w", err)
	}
	*s = parsed
	return nil
}
