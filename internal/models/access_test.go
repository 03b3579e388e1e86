package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeForClaims(t *testing.T) {
	admin := ScopeForClaims(&JWTClaims{Role: RoleAdmin})
	assert.True(t, admin.All)
	assert.True(t, admin.Allows("any"))

	director := ScopeForClaims(&JWTClaims{Role: RoleDirector, SchoolIDs: []string{"s1", "s2", "s1", ""}})
	assert.Equal(t, []string{"s1", "s2"}, director.SchoolIDs)
	assert.True(t, director.Allows("s2"))
	assert.False(t, director.Allows("s3"))

	student := ScopeForClaims(&JWTClaims{Role: RoleStudent, SchoolIDs: []string{"s1"}, StudentID: "st1"})
	assert.True(t, student.AllowsStudent("st1"))
	assert.False(t, student.AllowsStudent("st2"))

	assert.True(t, ScopeForClaims(nil).Empty())
}

func TestAccessScopeNarrow(t *testing.T) {
	scope := AccessScope{SchoolIDs: []string{"s1", "s2"}}
	assert.Equal(t, scope, scope.Narrow(nil))
	assert.Equal(t, []string{"s2"}, scope.Narrow([]string{"s2", "s3"}).SchoolIDs)
	assert.True(t, scope.Narrow([]string{"s3"}).Empty())
	assert.Equal(t, []string{"s3"}, FullAccess().Narrow([]string{"s3"}).SchoolIDs)
}
