package types

import "github.com/google/uuid"

// SkillLevel is an optional proficiency attached to a profile skill.
type SkillLevel string

const (
	SkillLevelBeginner     SkillLevel = "beginner"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelAdvanced     SkillLevel = "advanced"
)

// ProfileSkill is a skill the candidate claims, with optional proficiency.
type ProfileSkill struct {
	Name  string     `json:"name"`
	Level SkillLevel `json:"level,omitempty"`
}

// WorkHistoryEntry is one prior role on the candidate's profile.
type WorkHistoryEntry struct {
	Company   string `json:"company"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"` // YYYY-MM
	EndDate   string `json:"end_date,omitempty"`
}

// CandidateProfile is the candidate data the matching and workflow engines
// consume. Profile storage is owned elsewhere; the pipeline only reads it.
type CandidateProfile struct {
	ID                  uuid.UUID          `json:"id"`
	Skills              []ProfileSkill     `json:"skills"`
	WorkHistory         []WorkHistoryEntry `json:"work_history"`
	TargetRoles         []string           `json:"target_roles"`
	PreferredLocations  []string           `json:"preferred_locations"`
	RequiresSponsorship bool               `json:"requires_sponsorship"`
}

// SkillNames returns the profile's skill names in declaration order.
func (p *CandidateProfile) SkillNames() []string {
	names := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		names = append(names, s.Name)
	}
	return names
}
