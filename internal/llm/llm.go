// Package llm defines the text-generation collaborator contract and its
// OpenAI-backed implementation. The engine treats generator output as
// untrusted: all validation of candidate sections happens in the
// revision package, never here.
package llm

import (
	"context"

	"github.com/dialtone-ai/greenroom/internal/script"
)

// BusinessProfile describes the business an initial script is generated
// for.
type BusinessProfile struct {
	Name     string
	Business string // free-text self-description from onboarding
}

// ReviseRequest asks the generator to revise script sections from a
// free-text instruction under global formatting constraints.
type ReviseRequest struct {
	Sections    script.Sections
	Instruction string
	Constraints []string
}

// Generator produces and revises script section sets. Implementations
// may fail; callers must leave engine state unchanged when they do.
type Generator interface {
	// GenerateScript produces a complete initial script for a business.
	GenerateScript(ctx context.Context, profile BusinessProfile) (script.Sections, error)

	// ReviseSections returns a candidate section set applying the
	// instruction. The contract requires sections not implicated by the
	// instruction to be echoed back unchanged; enforcement is the
	// caller's job.
	ReviseSections(ctx context.Context, req ReviseRequest) (script.Sections, error)
}

// DefaultConstraints are the global formatting constraints applied to
// every revision request.
var DefaultConstraints = []string{
	"Keep every section under its existing marker; never invent new sections.",
	"Return sections you were not asked to change byte-for-byte unchanged.",
	"Never leave a previously written section empty.",
	"Write for a voice conversation: short sentences, no markdown lists in spoken sections.",
}
