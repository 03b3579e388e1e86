package models

// AccessScope is the set of schools (and, for students, the single student) a caller may see.
// Every report and ingestion query receives one explicitly.
type AccessScope struct {
	All       bool     `json:"all"`
	SchoolIDs []string `json:"school_ids,omitempty"`
	StudentID string   `json:"student_id,omitempty"`
}

// FullAccess grants visibility over every school.
func FullAccess() AccessScope {
	return AccessScope{All: true}
}

// ScopeForClaims derives the access scope carried by an access token.
func ScopeForClaims(claims *JWTClaims) AccessScope {
	if claims == nil {
		return AccessScope{}
	}
	if claims.Role == RoleAdmin {
		return FullAccess()
	}
	scope := AccessScope{SchoolIDs: dedupe(claims.SchoolIDs)}
	if claims.Role == RoleStudent {
		scope.StudentID = claims.StudentID
	}
	return scope
}

// Allows reports whether the school is visible.
func (s AccessScope) Allows(schoolID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.SchoolIDs {
		if id == schoolID {
			return true
		}
	}
	return false
}

// AllowsStudent reports whether a student's data is visible within an allowed school.
func (s AccessScope) AllowsStudent(studentID string) bool {
	return s.StudentID == "" || s.StudentID == studentID
}

// Empty reports whether the scope grants nothing.
func (s AccessScope) Empty() bool {
	return !s.All && len(s.SchoolIDs) == 0
}

// Narrow intersects the scope with explicitly requested schools. An empty request keeps the
// scope unchanged.
func (s AccessScope) Narrow(requested []string) AccessScope {
	requested = dedupe(requested)
	if len(requested) == 0 {
		return s
	}
	narrowed := AccessScope{StudentID: s.StudentID, SchoolIDs: make([]string, 0, len(requested))}
	for _, id := range requested {
		if s.Allows(id) {
			narrowed.SchoolIDs = append(narrowed.SchoolIDs, id)
		}
	}
	return narrowed
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
