package services

import (
	"fmt"
	"strings"

	"github.com/refcheckai/refcheck-backend/internal/models"
)

// GenerateReferenceQuestions builds the question set the voice agent works
// through: employment confirmation first, then claim verification, then
// open-ended quality questions, then anything role-specific or custom.
func GenerateReferenceQuestions(job *models.Job, candidate *models.Candidate, custom []string) []string {
	if job == nil {
		job = &models.Job{}
	}
	company := job.Company
	if company == "" {
		company = "the company"
	}
	title := job.Title
	if title == "" {
		title = "their role"
	}
	name := candidate.Name

	questions := []string{
		fmt.Sprintf("Can you confirm that %s worked at %s as a %s?", name, company, title),
		fmt.Sprintf("What was your working relationship with %s?", name),
		fmt.Sprintf("Can you confirm the dates %s was employed there?", name),
	}

	if len(job.Responsibilities) > 0 {
		questions = append(questions,
			fmt.Sprintf("The candidate mentioned responsibilities including: %s. Can you confirm?", job.Responsibilities[0]))
	}

	achievements := job.Achievements
	if len(achievements) > 3 {
		achievements = achievements[:3]
	}
	for _, achievement := range achievements {
		questions = append(questions,
			fmt.Sprintf("The candidate claims: '%s'. Can you verify this?", achievement))
	}

	questions = append(questions,
		fmt.Sprintf("How would you describe %s's work quality and reliability?", name),
		fmt.Sprintf("What were %s's greatest strengths?", name),
		"Were there any areas for improvement?",
		fmt.Sprintf("Would you rehire %s?", name),
	)

	questions = append(questions, targetRoleQuestions(candidate)...)
	questions = append(questions, "Is there anything else we should know?")

	for _, q := range custom {
		if strings.TrimSpace(q) != "" {
			questions = append(questions, strings.TrimSpace(q))
		}
	}

	return questions
}

func targetRoleQuestions(candidate *models.Candidate) []string {
	var out []string
	name := candidate.Name

	switch candidate.TargetRoleCategory {
	case "Executive / Leadership":
		out = append(out, fmt.Sprintf("Did %s demonstrate leadership or strategic thinking abilities?", name))
	case "Engineering / Technical":
		out = append(out, fmt.Sprintf("How would you rate %s's technical problem-solving skills?", name))
	case "Sales / Business Development":
		out = append(out, fmt.Sprintf("Can you speak to %s's ability to build relationships and close deals?", name))
	case "Customer Support / Success":
		out = append(out, fmt.Sprintf("How did %s handle difficult customer situations?", name))
	case "Product / Design":
		out = append(out, fmt.Sprintf("How did %s approach product decisions and user feedback?", name))
	}

	if details := candidate.TargetRoleDetails; details != "" {
		if len(details) > 100 {
			details = details[:100]
		}
		out = append(out, fmt.Sprintf("Based on your experience, would %s be well-suited for a role involving %s?", name, details))
	}
	return out
}

// BuildAssistantPrompt renders the system prompt for the voice agent.
func BuildAssistantPrompt(candidate *models.Candidate, referenceName string, job *models.Job, questions []string) string {
	if job == nil {
		job = &models.Job{}
	}
	company := job.Company
	if company == "" {
		company = "the company"
	}
	title := job.Title
	if title == "" {
		title = "their role"
	}

	var qb strings.Builder
	for _, q := range questions {
		qb.WriteString("- ")
		qb.WriteString(q)
		qb.WriteString("\n")
	}

	targetContext := ""
	if candidate.TargetRoleCategory != "" || candidate.TargetRoleDetails != "" {
		category := candidate.TargetRoleCategory
		if category == "" {
			category = "new"
		}
		details := ""
		if candidate.TargetRoleDetails != "" {
			details = fmt.Sprintf(" involving %s", candidate.TargetRoleDetails)
		}
		targetContext = fmt.Sprintf("\n\nNote: %s is being considered for a %s position%s.\nPay special attention to skills and experiences that would be relevant to this target role.",
			candidate.Name, category, details)
	}

	return fmt.Sprintf(`You are a professional reference checker calling on behalf of a company conducting background verification. You are speaking with %s.

IMPORTANT: Do NOT mention you are an AI. Present yourself as Sarah from the hiring verification team.

Goal: Verify information about %s who worked at %s as %s.%s

Call Flow:
1. "Hello, this is Sarah from the hiring verification team. I'm calling regarding a reference check for %s. Is this %s?"
2. If confirmed: "Thank you. %s listed you as a reference. Do you have 5-10 minutes to answer a few questions about their time at %s?"
3. Ask these questions naturally:
%s4. Thank them and end professionally.

Guidelines:
- Be conversational, not robotic
- Ask follow-up questions when appropriate
- Note any hesitation or red flags
- Keep under 10 minutes
- Be respectful of their time`,
		referenceName,
		candidate.Name, company, title, targetContext,
		candidate.Name, referenceName,
		candidate.Name, company,
		qb.String(),
	)
}
