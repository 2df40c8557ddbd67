package service

import (
	"time"
)

// EntityType is the kind of catalog entry
type EntityType string

const (
	// EntityTypeAgent is an autonomous AI agent
	EntityTypeAgent EntityType = "agent"
	// EntityTypeTool is a callable tool
	EntityTypeTool EntityType = "tool"
	// EntityTypeMCPServer is a Model Context Protocol server
	EntityTypeMCPServer EntityType = "mcp_server"
)

// EntityTypes lists every valid entity type
var EntityTypes = []EntityType{EntityTypeAgent, EntityTypeTool, EntityTypeMCPServer}

// IsValid reports whether t is one of the known entity types
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeAgent, EntityTypeTool, EntityTypeMCPServer:
		return true
	default:
		return false
	}
}

// Entity is the full projection of a catalog row
type Entity struct {
	UID           string         `json:"id"`
	Type          EntityType     `json:"type"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Summary       string         `json:"summary"`
	Description   string         `json:"description"`
	Capabilities  []string       `json:"capabilities"`
	Frameworks    []string       `json:"frameworks"`
	Providers     []string       `json:"providers"`
	License       *string        `json:"license"`
	Homepage      *string        `json:"homepage"`
	SourceURL     *string        `json:"source_url"`
	QualityScore  float64        `json:"quality_score"`
	ReleaseTS     *time.Time     `json:"release_ts"`
	ReadmeBlobRef *string        `json:"readme_blob_ref"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Protocols     []string       `json:"protocols"`
	Manifests     map[string]any `json:"manifests"`
}

// ToSummary returns the lightweight listing projection of the entity
func (e *Entity) ToSummary() EntitySummary {
	return EntitySummary{
		UID:          e.UID,
		Type:         e.Type,
		Name:         e.Name,
		Version:      e.Version,
		Summary:      e.Summary,
		Capabilities: nonNil(e.Capabilities),
		Frameworks:   nonNil(e.Frameworks),
		Providers:    nonNil(e.Providers),
		Score:        e.QualityScore,
	}
}

// EntitySummary is the listing projection of a catalog row
type EntitySummary struct {
	UID          string     `json:"id"`
	Type         EntityType `json:"type"`
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Summary      string     `json:"summary"`
	Capabilities []string   `json:"capabilities"`
	Frameworks   []string   `json:"frameworks"`
	Providers    []string   `json:"providers"`
	Score        float64    `json:"score"`
}

// Credential is a stored login record. PasswordHash is never serialized.
type Credential struct {
	ID           string
	PasswordHash string
	Name         string
	Role         string
	Email        string
	AvatarURL    string
	CreatedAt    time.Time
}

// RegisterRequest carries the fields needed to create a credential record
type RegisterRequest struct {
	AgentID  string `json:"agent_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned on successful login, registration or guest access
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	IsGuest     bool   `json:"is_guest"`
	AvatarURL   string `json:"avatar_url"`
}

// Profile is the public view of a user
type Profile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Email     *string    `json:"email"`
	AvatarURL string     `json:"avatar_url"`
	CreatedAt *time.Time `json:"created_at"`
}

// Acknowledgement is returned by operations that have no payload
type Acknowledgement struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
