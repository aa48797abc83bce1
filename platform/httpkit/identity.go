// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Roles carried in the access token.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleArchitect  = "architect"
	RoleCommercial = "commercial"
)

// Identity represents the authenticated user's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access user information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Email returns the user's login email.
	Email() string
	// Name returns the user's display name.
	Name() string
	// Role returns the user's role.
	Role() string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsPrivileged reports whether the user sees every record.
	IsPrivileged() bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

// IsPrivilegedRole reports whether role bypasses record-level scoping.
func IsPrivilegedRole(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

// identity is the concrete implementation of Identity.
type identity struct {
	userID        uuid.UUID
	email         string
	name          string
	role          string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID        { return i.userID }
func (i *identity) Email() string            { return i.email }
func (i *identity) Name() string             { return i.name }
func (i *identity) Role() string             { return i.role }
func (i *identity) HasRole(role string) bool { return i.role == role }
func (i *identity) IsPrivileged() bool       { return IsPrivilegedRole(i.role) }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// NewIdentity builds an authenticated identity. Used by background jobs and tests.
func NewIdentity(userID uuid.UUID, email, name, role string) Identity {
	return &identity{userID: userID, email: email, name: name, role: role, authenticated: true}
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	return &identity{
		userID:        uid,
		email:         c.GetString(ContextEmailKey),
		name:          c.GetString(ContextNameKey),
		role:          c.GetString(ContextRoleKey),
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
