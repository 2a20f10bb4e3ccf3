package agent

import "strings"

// MaxSkillInstructionsChars caps the enabled-skill-instructions section
// before truncation (spec §4.H, "hard cap ~12 000 chars").
const MaxSkillInstructionsChars = 12000

const skillTruncationWarning = "\n[... skill instructions truncated: exceeded 12000 char budget ...]"

// SystemPromptSections holds the inputs to the Agent Loop's system-prompt
// composition, in the spec's stable order (spec §4.H):
//  1. Default system prompt (engine config)
//  2. Soul/identity block (lean at session init; full when about to use
//     peer/tool-aware tools)
//  3. Enabled skill instructions (capped, credentials injected literally
//     only for non-server-side-executed skills)
//  4. Community skill instructions scoped to the agent
//  5. Role-specific preamble (worker/boss)
//  6. Channel-specific context preamble (Channel Agent Runner, spec §4.K)
type SystemPromptSections struct {
	DefaultPrompt       string
	SoulBlock           string
	SkillInstructions   string
	CommunitySkillBlock string
	RolePreamble        string
	ChannelPreamble     string
}

// ComposeSystemPrompt joins the non-empty sections, in stable order, with
// "---" separators, truncating the skill-instructions section at a line
// boundary if it exceeds MaxSkillInstructionsChars.
func ComposeSystemPrompt(s SystemPromptSections) string {
	sections := []string{
		strings.TrimSpace(s.DefaultPrompt),
		strings.TrimSpace(s.SoulBlock),
		truncateSkillInstructions(strings.TrimSpace(s.SkillInstructions)),
		strings.TrimSpace(s.CommunitySkillBlock),
		strings.TrimSpace(s.RolePreamble),
		strings.TrimSpace(s.ChannelPreamble),
	}

	parts := make([]string, 0, len(sections))
	for _, sec := range sections {
		if sec != "" {
			parts = append(parts, sec)
		}
	}
	return strings.Join(parts, "\n---\n")
}

func truncateSkillInstructions(s string) string {
	if len(s) <= MaxSkillInstructionsChars {
		return s
	}
	budget := MaxSkillInstructionsChars - len(skillTruncationWarning)
	if budget < 0 {
		budget = 0
	}
	cut := s[:budget]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + skillTruncationWarning
}

// SoulVariant selects between the lean and full identity block.
type SoulVariant int

const (
	SoulLean SoulVariant = iota
	SoulFull
)

// WorkerPreamble is the role-specific preamble for a worker agent.
func WorkerPreamble(task string) string {
	return "You have been delegated a task:\n\n" + task +
		"\n\nCall report_progress with status=done|blocked|error when finished."
}

// BossPreamble is the role-specific preamble for a boss agent overseeing a
// project with the given goal and agent roster.
func BossPreamble(goal string, roster []string) string {
	var b strings.Builder
	b.WriteString("Project goal:\n\n")
	b.WriteString(goal)
	if len(roster) > 0 {
		b.WriteString("\n\nAgents available for delegation:\n")
		for _, a := range roster {
			b.WriteString("- " + a + "\n")
		}
	}
	b.WriteString("\nCall project_complete(summary, status) when the project is finished.")
	return b.String()
}
